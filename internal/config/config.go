// Package config loads the relaybot configuration from defaults, an optional
// config file, a dotenv file and the process environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/roelfdiedericks/relaybot/internal/logging"
)

// Environment variables read on startup
const (
	EnvBotToken     = "TELEGRAM_BOT_TOKEN"
	EnvAPIKey       = "OPENROUTER_API_KEY"
	EnvBaseURL      = "RELAYBOT_BASE_URL"
	EnvModels       = "RELAYBOT_MODELS"
	EnvSystemPrompt = "RELAYBOT_SYSTEM_PROMPT"
	EnvLogLevel     = "RELAYBOT_LOG_LEVEL"
)

// Config represents the merged relaybot configuration.
// Built once at startup and treated as read-only afterwards.
type Config struct {
	Telegram TelegramConfig `json:"telegram" toml:"telegram" yaml:"telegram"`
	LLM      LLMConfig      `json:"llm" toml:"llm" yaml:"llm"`
	Messages MessagesConfig `json:"messages" toml:"messages" yaml:"messages"`
	Logging  LoggingConfig  `json:"logging" toml:"logging" yaml:"logging"`

	// Source is the config file the values were read from ("" if none)
	Source string `json:"-" toml:"-" yaml:"-"`
}

// TelegramConfig holds the Telegram bot connection settings
type TelegramConfig struct {
	BotToken             string `json:"botToken" toml:"botToken" yaml:"botToken"`
	// Bot API server, empty for api.telegram.org
	APIURL               string `json:"apiURL,omitempty" toml:"apiURL" yaml:"apiURL,omitempty"`
	PollTimeoutSeconds   int    `json:"pollTimeoutSeconds,omitempty" toml:"pollTimeoutSeconds" yaml:"pollTimeoutSeconds,omitempty"`
	// How long shutdown waits for replies still being generated
	ShutdownGraceSeconds int    `json:"shutdownGraceSeconds,omitempty" toml:"shutdownGraceSeconds" yaml:"shutdownGraceSeconds,omitempty"`
}

// LLMConfig holds the completion endpoint and the candidate chain
type LLMConfig struct {
	APIKey         string   `json:"apiKey" toml:"apiKey" yaml:"apiKey"`
	BaseURL        string   `json:"baseURL" toml:"baseURL" yaml:"baseURL"`
	Models         []string `json:"models" toml:"models" yaml:"models"` // First = primary, rest = fallbacks
	SystemPrompt   string   `json:"systemPrompt" toml:"systemPrompt" yaml:"systemPrompt"`
	TimeoutSeconds int      `json:"timeoutSeconds,omitempty" toml:"timeoutSeconds" yaml:"timeoutSeconds,omitempty"`
	Referer        string   `json:"referer,omitempty" toml:"referer" yaml:"referer,omitempty"` // OpenRouter attribution
	Title          string   `json:"title,omitempty" toml:"title" yaml:"title,omitempty"`       // OpenRouter attribution
}

// MessagesConfig holds the fixed user-facing texts
type MessagesConfig struct {
	Welcome   string `json:"welcome" toml:"welcome" yaml:"welcome"`
	Exhausted string `json:"exhausted" toml:"exhausted" yaml:"exhausted"`
	Critical  string `json:"critical" toml:"critical" yaml:"critical"`
}

// LoggingConfig controls the process logger
type LoggingConfig struct {
	Level      string `json:"level" toml:"level" yaml:"level"`
	TimeFormat string `json:"timeFormat,omitempty" toml:"timeFormat" yaml:"timeFormat,omitempty"`
	ShowCaller bool   `json:"showCaller,omitempty" toml:"showCaller" yaml:"showCaller,omitempty"`
}

// DefaultModels is the candidate chain used when none is configured.
// Free-tier ids come and go; run `relaybot check` to spot retired ones.
var DefaultModels = []string{
	"mistralai/mistral-7b-instruct:free",
	"google/gemma-7b-it:free",
	"nousresearch/nous-hermes-2-mixtral-8x7b-dpo:free",
	"openchat/openchat-7b:free",
	"huggingfaceh4/zephyr-7b-beta:free",
	"openrouter/cinematika-7b:free",
	"cognitivecomputations/dolphin-mixtral-8x7b:free",
	"gryphe/gryphe-mistral-7b-v2:free",
	"undi95/toppy-m-7b:free",
	"rwkv/rwkv-5-world-3b:free",
}

const (
	DefaultBaseURL      = "https://openrouter.ai/api/v1"
	DefaultSystemPrompt = "You are a helpful AI assistant. Always provide a response. If you cannot answer a question directly due to safety reasons or lack of information, you must explain that you cannot answer and state the reason why. Do not provide an empty response."
	DefaultWelcome      = "Hello! I am a resilient AI assistant. I will try multiple AI models to always get you an answer. Ask me anything!"
	DefaultExhausted    = "Sorry, all available AI models failed to provide a response. Please try again later."
	DefaultCritical     = "Sorry, I encountered a critical error."
)

// Default returns the built-in configuration. Secrets are left empty.
func Default() Config {
	return Config{
		Telegram: TelegramConfig{
			PollTimeoutSeconds:   10,
			ShutdownGraceSeconds: 30,
		},
		LLM: LLMConfig{
			BaseURL:        DefaultBaseURL,
			Models:         append([]string(nil), DefaultModels...),
			SystemPrompt:   DefaultSystemPrompt,
			TimeoutSeconds: 60,
			Referer:        "https://github.com/roelfdiedericks/relaybot",
			Title:          "relaybot",
		},
		Messages: MessagesConfig{
			Welcome:   DefaultWelcome,
			Exhausted: DefaultExhausted,
			Critical:  DefaultCritical,
		},
		Logging: LoggingConfig{
			Level:      "info",
			TimeFormat: "15:04:05",
		},
	}
}

// applyEnv overrides config values with non-empty environment variables
func (c *Config) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvBotToken)); v != "" {
		c.Telegram.BotToken = v
	}
	if v := strings.TrimSpace(getenv(EnvAPIKey)); v != "" {
		c.LLM.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		c.LLM.BaseURL = v
	}
	if v := getenv(EnvModels); strings.TrimSpace(v) != "" {
		c.LLM.Models = splitList(v)
	}
	if v := getenv(EnvSystemPrompt); strings.TrimSpace(v) != "" {
		c.LLM.SystemPrompt = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = v
	}
}

// splitList splits a comma separated list, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the startup preconditions for running the bot.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.BotToken == "" {
		errs = append(errs, fmt.Errorf("telegram bot token not configured (set %s)", EnvBotToken))
	}
	if c.Telegram.PollTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("telegram poll timeout must not be negative"))
	}
	if c.Telegram.ShutdownGraceSeconds < 0 {
		errs = append(errs, fmt.Errorf("telegram shutdown grace must not be negative"))
	}
	if err := c.ValidateLLM(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Messages.Welcome) == "" {
		errs = append(errs, fmt.Errorf("welcome message is empty"))
	}
	return errors.Join(errs...)
}

// ValidateLLM checks only what the fallback chain needs (used by one-shot commands).
func (c *Config) ValidateLLM() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("provider API key not configured (set %s)", EnvAPIKey))
	}
	if len(c.LLM.Models) == 0 {
		errs = append(errs, fmt.Errorf("no candidate models configured"))
	}
	seen := make(map[string]bool, len(c.LLM.Models))
	for i, m := range c.LLM.Models {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, fmt.Errorf("candidate model %d is blank", i+1))
			continue
		}
		if seen[m] {
			errs = append(errs, fmt.Errorf("candidate model %q listed twice", m))
		}
		seen[m] = true
	}
	if c.LLM.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("llm timeout must not be negative"))
	}
	if strings.TrimSpace(c.Messages.Exhausted) == "" {
		errs = append(errs, fmt.Errorf("exhausted message is empty"))
	}
	if strings.TrimSpace(c.Messages.Critical) == "" {
		errs = append(errs, fmt.Errorf("critical message is empty"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoggingOptions converts the logging section into logging.Config.
// Unknown levels fall back to info; Validate reports them.
func (c *Config) LoggingOptions() *logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return &logging.Config{
		Level:      level,
		TimeFormat: c.Logging.TimeFormat,
		ShowCaller: c.Logging.ShowCaller,
		Output:     os.Stderr,
	}
}

// Redacted returns a copy with secrets masked, safe to print or log.
func (c Config) Redacted() Config {
	c.Telegram.BotToken = mask(c.Telegram.BotToken)
	c.LLM.APIKey = mask(c.LLM.APIKey)
	c.LLM.Models = append([]string(nil), c.LLM.Models...)
	return c
}

// JSON renders the redacted config for display
func (c Config) JSON() string {
	data, err := json.MarshalIndent(c.Redacted(), "", "  ")
	if err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return string(data)
}

func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "****" + secret[len(secret)-2:]
	}
}
