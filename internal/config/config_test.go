package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relaybot.json", `{}`)

	cfg, err := Load(LoadOptions{
		Path: path,
		Getenv: envMap(map[string]string{
			EnvBotToken: "123:abc",
			EnvAPIKey:   "sk-or-test",
		}),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.BotToken != "123:abc" || cfg.LLM.APIKey != "sk-or-test" {
		t.Errorf("secrets not taken from env: %+v", cfg.Redacted())
	}
	if cfg.LLM.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.LLM.BaseURL, DefaultBaseURL)
	}
	if !reflect.DeepEqual(cfg.LLM.Models, DefaultModels) {
		t.Errorf("Models = %v, want defaults", cfg.LLM.Models)
	}
	if cfg.Messages.Exhausted != DefaultExhausted || cfg.Messages.Critical != DefaultCritical {
		t.Errorf("failure messages not defaulted: %+v", cfg.Messages)
	}
	if cfg.Source != path {
		t.Errorf("Source = %q, want %q", cfg.Source, path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFileFormats(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"relaybot.json", `{"llm": {"models": ["a/one", "b/two"], "baseURL": "http://localhost:1234/v1"}, "messages": {"welcome": "hi"}}`},
		{"relaybot.toml", "[llm]\nmodels = [\"a/one\", \"b/two\"]\nbaseURL = \"http://localhost:1234/v1\"\n\n[messages]\nwelcome = \"hi\"\n"},
		{"relaybot.yaml", "llm:\n  models:\n    - a/one\n    - b/two\n  baseURL: http://localhost:1234/v1\nmessages:\n  welcome: hi\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.name, tt.content)
			cfg, err := Load(LoadOptions{Path: path, Getenv: envMap(nil)})
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if want := []string{"a/one", "b/two"}; !reflect.DeepEqual(cfg.LLM.Models, want) {
				t.Errorf("Models = %v, want %v", cfg.LLM.Models, want)
			}
			if cfg.LLM.BaseURL != "http://localhost:1234/v1" {
				t.Errorf("BaseURL = %q", cfg.LLM.BaseURL)
			}
			if cfg.Messages.Welcome != "hi" {
				t.Errorf("Welcome = %q, want %q", cfg.Messages.Welcome, "hi")
			}
			// Untouched fields still come from defaults
			if cfg.LLM.SystemPrompt != DefaultSystemPrompt {
				t.Errorf("SystemPrompt not defaulted")
			}
		})
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relaybot.json", `{"llm": {"apiKey": "from-file", "models": ["file/model"]}}`)

	cfg, err := Load(LoadOptions{
		Path: path,
		Getenv: envMap(map[string]string{
			EnvAPIKey:   "from-env",
			EnvModels:   " x/one , ,y/two ",
			EnvLogLevel: "debug",
		}),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want env value", cfg.LLM.APIKey)
	}
	if want := []string{"x/one", "y/two"}; !reflect.DeepEqual(cfg.LLM.Models, want) {
		t.Errorf("Models = %v, want %v", cfg.LLM.Models, want)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadDotenvDoesNotOverrideEnvironment(t *testing.T) {
	// Register cleanup for both keys, then clear the token so dotenv can set it.
	t.Setenv(EnvBotToken, "")
	t.Setenv(EnvAPIKey, "real-env-key")
	os.Unsetenv(EnvBotToken)

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "relaybot.json", `{}`)
	envPath := writeFile(t, dir, ".env", EnvBotToken+"=999:fromdotenv\n"+EnvAPIKey+"=dotenv-key\n")

	cfg, err := Load(LoadOptions{Path: cfgPath, EnvFile: envPath})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Telegram.BotToken != "999:fromdotenv" {
		t.Errorf("BotToken = %q, want value from dotenv", cfg.Telegram.BotToken)
	}
	if cfg.LLM.APIKey != "real-env-key" {
		t.Errorf("APIKey = %q, real environment must win over dotenv", cfg.LLM.APIKey)
	}
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "relaybot.json", `{}`)
	_, err := Load(LoadOptions{
		Path:    cfgPath,
		EnvFile: filepath.Join(dir, "does-not-exist.env"),
		Getenv:  envMap(nil),
	})
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing env file", err)
	}
}

func TestReadFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	ini := writeFile(t, dir, "relaybot.ini", "x=1")
	if _, err := ReadFile(ini); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("ReadFile(.ini) error = %v, want unsupported format", err)
	}

	bad := writeFile(t, dir, "relaybot.json", "{not json")
	if _, err := ReadFile(bad); err == nil {
		t.Error("expected parse error for invalid JSON")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Telegram.BotToken = "123:abc"
		c.LLM.APIKey = "sk"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing token", func(c *Config) { c.Telegram.BotToken = "" }, EnvBotToken},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }, EnvAPIKey},
		{"no models", func(c *Config) { c.LLM.Models = nil }, "no candidate models"},
		{"blank model", func(c *Config) { c.LLM.Models = []string{"a", " "} }, "blank"},
		{"duplicate model", func(c *Config) { c.LLM.Models = []string{"a", "a"} }, "listed twice"},
		{"empty exhausted", func(c *Config) { c.Messages.Exhausted = "  " }, "exhausted message"},
		{"empty critical", func(c *Config) { c.Messages.Critical = "" }, "critical message"},
		{"empty welcome", func(c *Config) { c.Messages.Welcome = "" }, "welcome message"},
		{"negative shutdown grace", func(c *Config) { c.Telegram.ShutdownGraceSeconds = -1 }, "shutdown grace"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateLLMIgnoresTelegram(t *testing.T) {
	c := Default()
	c.LLM.APIKey = "sk"
	if err := c.ValidateLLM(); err != nil {
		t.Errorf("ValidateLLM() error = %v, want nil without a bot token", err)
	}
}

func TestRedacted(t *testing.T) {
	c := Default()
	c.Telegram.BotToken = "123456789:ABCDEFGHIJ"
	c.LLM.APIKey = "short"

	r := c.Redacted()
	if strings.Contains(r.Telegram.BotToken, "ABCDEFGH") {
		t.Errorf("bot token not masked: %q", r.Telegram.BotToken)
	}
	if r.LLM.APIKey != "****" {
		t.Errorf("APIKey = %q, want ****", r.LLM.APIKey)
	}
	if c.Telegram.BotToken != "123456789:ABCDEFGHIJ" {
		t.Error("Redacted() modified the original")
	}
	if js := c.JSON(); strings.Contains(js, "ABCDEFGHIJ") || !strings.Contains(js, `"models"`) {
		t.Errorf("JSON() leaked secret or lost fields:\n%s", js)
	}
}
