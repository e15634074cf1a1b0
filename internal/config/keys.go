package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "BLOODLINK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "BLOODLINK_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "llm.base_url", typ: kString, env: "BLOODLINK_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.model", typ: kString, env: "BLOODLINK_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.timeout_seconds", typ: kInt, env: "BLOODLINK_LLM_TIMEOUT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.LLM.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.TimeoutSeconds },
	},
	{
		key: "llm.api_key", typ: kString, env: "BLOODLINK_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "hasura.url", typ: kString, env: "BLOODLINK_HASURA_URL",
		apply:   func(cfg *Config, v any) { cfg.Hasura.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Hasura.URL },
	},
	{
		key: "hasura.role", typ: kString, env: "BLOODLINK_HASURA_ROLE",
		apply:   func(cfg *Config, v any) { cfg.Hasura.Role = v.(string) },
		extract: func(cfg Config) any { return cfg.Hasura.Role },
	},
	{
		key: "hasura.admin_secret", typ: kString, env: "BLOODLINK_HASURA_ADMIN_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Hasura.AdminSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Hasura.AdminSecret },
	},
	{
		key: "storage.data_dir", typ: kString, env: "BLOODLINK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "history.cache_size", typ: kInt, env: "BLOODLINK_HISTORY_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.History.CacheSize = v.(int) },
		extract: func(cfg Config) any { return cfg.History.CacheSize },
	},
	{
		key: "history.cache_ttl", typ: kInt, env: "BLOODLINK_HISTORY_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.History.CacheTTL = v.(int) },
		extract: func(cfg Config) any { return cfg.History.CacheTTL },
	},
	{
		key: "history.window", typ: kInt, env: "BLOODLINK_HISTORY_WINDOW",
		apply:   func(cfg *Config, v any) { cfg.History.Window = v.(int) },
		extract: func(cfg Config) any { return cfg.History.Window },
	},
	{
		key: "agent.max_tool_loops", typ: kInt, env: "BLOODLINK_AGENT_MAX_TOOL_LOOPS",
		apply:   func(cfg *Config, v any) { cfg.Agent.MaxToolLoops = v.(int) },
		extract: func(cfg Config) any { return cfg.Agent.MaxToolLoops },
	},
	{
		key: "log.level", typ: kString, env: "BLOODLINK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
