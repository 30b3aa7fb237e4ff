package telegram

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/roelfdiedericks/relaybot/internal/logging"
)

// Config holds the Telegram bot configuration
type Config struct {
	BotToken    string
	APIURL      string        // Bot API server, empty for api.telegram.org
	PollTimeout time.Duration // long poll timeout, default 10s
	Welcome     string        // reply to /start

	// ShutdownGrace bounds how long Stop waits for in-flight replies
	// before cancelling them, default 30s
	ShutdownGrace time.Duration
}

func (c *Config) shutdownGrace() time.Duration {
	if c.ShutdownGrace <= 0 {
		return 30 * time.Second
	}
	return c.ShutdownGrace
}

// settings builds the telebot settings for a live, polling bot
func (c *Config) settings() tele.Settings {
	timeout := c.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return tele.Settings{
		Token:  c.BotToken,
		URL:    strings.TrimRight(c.APIURL, "/"),
		Poller: &tele.LongPoller{Timeout: timeout},
		OnError: func(err error, ctx tele.Context) {
			chatID := int64(0)
			if ctx != nil && ctx.Chat() != nil {
				chatID = ctx.Chat().ID
			}
			logging.L_error("telegram: handler error", "chatID", chatID, "error", err)
		},
	}
}

// TestToken validates the bot token by calling getMe and returns the bot username
func TestToken(cfg Config) (string, error) {
	if cfg.BotToken == "" {
		return "", fmt.Errorf("bot token is empty")
	}

	pref := cfg.settings()
	pref.Client = &http.Client{Timeout: 10 * time.Second}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	logging.L_debug("telegram: validated token", "username", bot.Me.Username)
	return bot.Me.Username, nil
}
