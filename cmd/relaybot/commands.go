package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/roelfdiedericks/relaybot/internal/channels/telegram"
	"github.com/roelfdiedericks/relaybot/internal/config"
	"github.com/roelfdiedericks/relaybot/internal/llm"
	. "github.com/roelfdiedericks/relaybot/internal/logging"
	"github.com/roelfdiedericks/relaybot/internal/metrics"
	"github.com/roelfdiedericks/relaybot/internal/responder"
)

// loadConfig reads the configuration and initializes logging from it
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		Path:    g.Config,
		EnvFile: g.EnvFile,
	})
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}

	Init(cfg.LoggingOptions())
	if cfg.Source != "" {
		L_debug("config loaded", "path", cfg.Source)
	}
	return cfg, nil
}

// stack is the completion side shared by run and ask
type stack struct {
	metrics   *metrics.Manager
	provider  *llm.OpenAIProvider
	responder *responder.Responder
}

func newStack(cfg *config.Config) (*stack, error) {
	m := metrics.New()
	provider, err := llm.NewOpenAIProvider("openrouter", llm.ProviderConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
	}, m)
	if err != nil {
		return nil, err
	}

	r := responder.New(provider, responder.Options{
		Candidates:       cfg.LLM.Models,
		SystemPrompt:     cfg.LLM.SystemPrompt,
		ExhaustedMessage: cfg.Messages.Exhausted,
		CriticalMessage:  cfg.Messages.Critical,
		Metrics:          m,
	})
	return &stack{metrics: m, provider: provider, responder: r}, nil
}

func telegramConfig(cfg *config.Config) *telegram.Config {
	return &telegram.Config{
		BotToken:      cfg.Telegram.BotToken,
		APIURL:        cfg.Telegram.APIURL,
		PollTimeout:   time.Duration(cfg.Telegram.PollTimeoutSeconds) * time.Second,
		Welcome:       cfg.Messages.Welcome,
		ShutdownGrace: time.Duration(cfg.Telegram.ShutdownGraceSeconds) * time.Second,
	}
}

// RunCmd starts the bot
type RunCmd struct{}

func (c *RunCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	L_info("relaybot starting", "version", version, "models", len(cfg.LLM.Models), "primary", cfg.LLM.Models[0])

	s, err := newStack(cfg)
	if err != nil {
		return err
	}

	bot, err := telegram.New(telegramConfig(cfg), s.responder)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot.Start()
	L_info("relaybot ready", "channel", bot.Name())

	<-ctx.Done()
	L_info("shutdown signal received", "channel", bot.Name())
	bot.Stop()

	L_info("final stats\n" + s.responder.Summary())
	L_info("provider stats\n" + s.provider.Stats(cfg.LLM.Models))
	return nil
}

// AskCmd runs a single message through the chain
type AskCmd struct {
	Text    []string      `arg:"" help:"Message text."`
	Timeout time.Duration `default:"5m" help:"Give up after this long."`
}

func (c *AskCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateLLM(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	s, err := newStack(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Println(s.responder.Respond(ctx, strings.Join(c.Text, " ")))
	L_debug("provider stats\n" + s.provider.Stats(cfg.LLM.Models))
	return nil
}

// CheckCmd verifies credentials and the candidate list
type CheckCmd struct{}

func (c *CheckCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	failed := false
	if err := cfg.Validate(); err != nil {
		fmt.Printf("config: %v\n", err)
		failed = true
	}

	if cfg.Telegram.BotToken != "" {
		username, err := telegram.TestToken(*telegramConfig(cfg))
		if err != nil {
			fmt.Printf("telegram: %v\n", err)
			failed = true
		} else {
			fmt.Printf("telegram: connected as @%s\n", username)
		}
	}

	if cfg.LLM.APIKey != "" {
		s, err := newStack(cfg)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		missing, err := s.provider.MissingModels(ctx, cfg.LLM.Models)
		switch {
		case err != nil:
			fmt.Printf("models: %v\n", err)
			failed = true
		case len(missing) == 0:
			fmt.Printf("models: all %d candidates are listed by %s\n", len(cfg.LLM.Models), s.provider.BaseURL())
		default:
			fmt.Printf("models: %d of %d candidates are not listed by %s:\n", len(missing), len(cfg.LLM.Models), s.provider.BaseURL())
			for _, m := range missing {
				fmt.Printf("  - %s\n", m)
			}
			if len(missing) == len(cfg.LLM.Models) {
				failed = true
			}
		}
	}

	if failed {
		return fmt.Errorf("check failed")
	}
	return nil
}

// ConfigCmd prints the effective configuration
type ConfigCmd struct{}

func (c *ConfigCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Source != "" {
		fmt.Fprintf(os.Stderr, "source: %s\n", cfg.Source)
	}
	fmt.Println(cfg.JSON())
	return nil
}

// VersionCmd prints the version
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Printf("relaybot %s\n", version)
	return nil
}
