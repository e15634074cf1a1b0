package config

import (
	"strings"
	"testing"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]any
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *mapBackend) Delete(key string) error          { delete(b.data, key); return nil }

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	values map[string]string
}

func (m mockKeychain) Get(service, account string) (string, error) {
	return m.values[account], nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
	}
}

func requiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BLOODLINK_OPENAI_API_KEY", "test-key")
	t.Setenv("BLOODLINK_HASURA_URL", "http://localhost:8080/v1/graphql")
	t.Setenv("BLOODLINK_HASURA_ADMIN_SECRET", "test-secret")
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	requiredEnv(t)

	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.TimeoutSeconds != 60 {
		t.Errorf("LLM.TimeoutSeconds = %d", cfg.LLM.TimeoutSeconds)
	}
	if cfg.Hasura.Role != "bloodbank" {
		t.Errorf("Hasura.Role = %q", cfg.Hasura.Role)
	}
	if cfg.History.CacheSize != 1000 || cfg.History.CacheTTL != 1800 || cfg.History.Window != 6 {
		t.Errorf("History defaults = %+v", cfg.History)
	}
	if cfg.Agent.MaxToolLoops != 3 {
		t.Errorf("Agent.MaxToolLoops = %d", cfg.Agent.MaxToolLoops)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestBackendValues(t *testing.T) {
	clearEnv(t)
	requiredEnv(t)

	backend := &mapBackend{data: map[string]any{
		"server.port":          5001,
		"llm.model":            "gpt-4o",
		"history.window":       10,
		"agent.max_tool_loops": 5,
	}}
	cfg, err := loadWith(backend, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5001 {
		t.Errorf("Server.Port = %d, want 5001", cfg.Server.Port)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.History.Window != 10 {
		t.Errorf("History.Window = %d", cfg.History.Window)
	}
	if cfg.Agent.MaxToolLoops != 5 {
		t.Errorf("Agent.MaxToolLoops = %d", cfg.Agent.MaxToolLoops)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	clearEnv(t)
	requiredEnv(t)
	t.Setenv("BLOODLINK_LLM_MODEL", "env-model")

	backend := &mapBackend{data: map[string]any{"llm.model": "backend-model"}}
	cfg, err := loadWith(backend, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.Model != "env-model" {
		t.Errorf("LLM.Model = %q, want env-model", cfg.LLM.Model)
	}
}

func TestKeychainFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("BLOODLINK_HASURA_URL", "http://localhost:8080/v1/graphql")

	kc := mockKeychain{values: map[string]string{
		"openai_api_key":      "kc-key",
		"hasura_admin_secret": "kc-secret",
	}}
	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.APIKey != "kc-key" {
		t.Errorf("LLM.APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.Hasura.AdminSecret != "kc-secret" {
		t.Errorf("Hasura.AdminSecret = %q", cfg.Hasura.AdminSecret)
	}
}

func TestMissingRequired(t *testing.T) {
	clearEnv(t)

	_, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{})
	if err == nil {
		t.Fatal("expected error for missing required config")
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Errorf("error = %q", err)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	clearEnv(t)
	requiredEnv(t)

	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, info := range ShowAll(cfg) {
		if info.Key == "llm.api_key" || info.Key == "hasura.admin_secret" || info.Key == "server.api_token" {
			t.Errorf("secret key %s exposed by ShowAll", info.Key)
		}
		if info.Value == "test-key" || info.Value == "test-secret" {
			t.Errorf("secret value leaked through key %s", info.Key)
		}
	}
}
