package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Hasura  HasuraConfig
	Storage StorageConfig
	History HistoryConfig
	Agent   AgentConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type LLMConfig struct {
	BaseURL        string
	Model          string
	APIKey         string
	TimeoutSeconds int
}

type HasuraConfig struct {
	URL         string
	Role        string
	AdminSecret string
}

type StorageConfig struct {
	DataDir string
}

type HistoryConfig struct {
	CacheSize int
	CacheTTL  int // seconds
	Window    int
}

type AgentConfig struct {
	MaxToolLoops int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
		},
		Hasura: HasuraConfig{
			Role: "bloodbank",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		History: HistoryConfig{
			CacheSize: 1000,
			CacheTTL:  1800,
			Window:    6,
		},
		Agent: AgentConfig{
			MaxToolLoops: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.bloodlink.app) and
// secrets fall back to macOS Keychain. On Linux the backend is a JSON file
// at $XDG_CONFIG_HOME/bloodlink/config.json with a secrets file under the
// data directory.
//
// Environment variables (BLOODLINK_*) override backend values on all
// platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Secrets missing from the environment fall back to the platform
	// secret store.
	if cfg.LLM.APIKey == "" {
		if key, err := kc.Get("bloodlink", "openai_api_key"); err == nil && key != "" {
			cfg.LLM.APIKey = key
		}
	}
	if cfg.Hasura.AdminSecret == "" {
		if key, err := kc.Get("bloodlink", "hasura_admin_secret"); err == nil && key != "" {
			cfg.Hasura.AdminSecret = key
		}
	}
	if cfg.Server.APIToken == "" {
		if key, err := kc.Get("bloodlink", "api_token"); err == nil && key != "" {
			cfg.Server.APIToken = key
		}
	}

	var missing []string
	if cfg.LLM.APIKey == "" {
		missing = append(missing, "LLM API key (BLOODLINK_OPENAI_API_KEY"+secretHint("openai_api_key")+")")
	}
	if cfg.Hasura.URL == "" {
		missing = append(missing, "Hasura endpoint (BLOODLINK_HASURA_URL)")
	}
	if cfg.Hasura.AdminSecret == "" {
		missing = append(missing, "Hasura admin secret (BLOODLINK_HASURA_ADMIN_SECRET"+secretHint("hasura_admin_secret")+")")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainRead(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
