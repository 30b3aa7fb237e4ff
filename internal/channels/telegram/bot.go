// Package telegram provides the Telegram bot adapter for relaybot.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/roelfdiedericks/relaybot/internal/logging"
	"github.com/roelfdiedericks/relaybot/internal/responder"
)

const helpText = `Send me any text and I will ask the configured AI models, one after another, until one of them answers.

/start - welcome message
/help - this text
/status - model order and how each model has been doing`

// Responder turns user text into a reply. Respond never returns an empty
// string; failures come back as a fixed apology.
type Responder interface {
	Respond(ctx context.Context, userText string) string
	Summary() string
}

// Bot represents the Telegram bot
type Bot struct {
	bot       *tele.Bot
	responder Responder
	config    *Config

	ctx    context.Context
	cancel context.CancelFunc

	// in-flight message handlers, drained on Stop
	mu       sync.Mutex
	stopping bool
	inflight sync.WaitGroup
}

// New creates a new Telegram bot and verifies the token with getMe
func New(cfg *Config, r Responder) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}

	logging.L_debug("telegram: creating bot", "tokenLength", len(cfg.BotToken))

	b, err := newBot(cfg, r, cfg.settings())
	if err != nil {
		return nil, err
	}

	logging.L_info("telegram: connected",
		"bot", "@"+b.bot.Me.Username,
		"name", b.bot.Me.FirstName,
		"id", b.bot.Me.ID,
	)
	return b, nil
}

func newBot(cfg *Config, r Responder, pref tele.Settings) (*Bot, error) {
	if r == nil {
		return nil, fmt.Errorf("telegram: no responder")
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		bot:       bot,
		responder: r,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	b.setupHandlers()
	logging.L_debug("telegram: handlers registered")
	return b, nil
}

// setupHandlers registers message handlers
func (b *Bot) setupHandlers() {
	b.bot.Handle("/start", func(c tele.Context) error {
		logging.L_debug("telegram: /start", "chatID", c.Chat().ID)
		return c.Send(b.config.Welcome)
	})

	b.bot.Handle("/help", func(c tele.Context) error {
		return c.Send(helpText)
	})

	b.bot.Handle("/status", func(c tele.Context) error {
		return c.Send(b.responder.Summary())
	})

	// Unknown commands also land here
	b.bot.Handle(tele.OnText, b.handleMessage)
}

// handleMessage relays one text message through the responder. Each update
// runs on its own goroutine, so a slow chain only delays its own chat.
func (b *Bot) handleMessage(c tele.Context) error {
	text := c.Text()
	chatID := c.Chat().ID

	if strings.HasPrefix(text, "/") {
		logging.L_debug("telegram: ignoring unknown command", "chatID", chatID, "command", strings.Fields(text)[0])
		return nil
	}

	if !b.track() {
		logging.L_warn("telegram: shutting down, message dropped", "chatID", chatID)
		return nil
	}
	defer b.inflight.Done()

	reqID := uuid.NewString()
	var userID int64
	if sender := c.Sender(); sender != nil {
		userID = sender.ID
	}

	logging.L_info("telegram: message received",
		"req", reqID,
		"chatID", chatID,
		"userID", userID,
		"text", truncate(text, 50),
	)

	_ = c.Notify(tele.Typing)

	start := time.Now()
	ctx := responder.WithRequestID(b.ctx, reqID)
	reply := b.responder.Respond(ctx, text)

	if err := b.SendText(chatID, reply); err != nil {
		return fmt.Errorf("reply to chat %d: %w", chatID, err)
	}
	logging.L_elapsed(start, "telegram: reply sent", "req", reqID, "chatID", chatID, "length", len(reply))
	return nil
}

// Start starts the bot polling
func (b *Bot) Start() {
	logging.L_info("telegram: starting polling", "bot", "@"+b.bot.Me.Username)
	go b.bot.Start()
}

// Stop stops polling, then waits up to the shutdown grace period for
// in-flight replies to be sent. Replies still running after that are
// cancelled. Only valid after Start.
func (b *Bot) Stop() {
	logging.L_info("stopping telegram bot")
	b.bot.Stop()
	b.drain(b.config.shutdownGrace())
}

// track registers one in-flight message; false once draining has begun
func (b *Bot) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopping {
		return false
	}
	b.inflight.Add(1)
	return true
}

// drain refuses new messages and waits for in-flight ones. After grace the
// shared context is cancelled so the remaining handlers finish quickly.
func (b *Bot) drain(grace time.Duration) {
	b.mu.Lock()
	b.stopping = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.L_debug("telegram: in-flight messages drained")
	case <-time.After(grace):
		logging.L_warn("telegram: shutdown grace expired, cancelling in-flight messages", "grace", grace)
		b.cancel()
		<-done
	}
	b.cancel()
}

// Name returns the channel name
func (b *Bot) Name() string {
	return "telegram"
}

// SendText sends plain text to a chat, split into chunks that fit Telegram's limit.
func (b *Bot) SendText(chatID int64, text string) error {
	chat := &tele.Chat{ID: chatID}

	chunks := splitMessage(text, maxTelegramMessage)
	for i, chunk := range chunks {
		msg, err := b.bot.Send(chat, chunk)
		if err != nil {
			return fmt.Errorf("failed to send text chunk %d: %w", i+1, err)
		}
		logging.L_debug("telegram: sent text message", "chatID", chatID, "msgID", msg.ID, "chunk", i+1, "length", len(chunk))
	}
	return nil
}

// truncate shortens s to at most maxLen bytes without splitting a rune
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:runeBoundary(s, maxLen)] + "..."
}

// runeBoundary returns the largest index <= i that starts a rune
func runeBoundary(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// maxTelegramMessage is the maximum message length for Telegram (4096 chars).
// We use 4000 to leave some headroom.
const maxTelegramMessage = 4000

// splitMessage splits a long message into chunks that fit within Telegram's limit.
// It tries to split at natural boundaries: paragraphs, then sentences, then words.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len(remaining) > 0 {
		if len(remaining) <= maxLen {
			chunks = append(chunks, remaining)
			break
		}

		splitAt := findSplitPoint(remaining, maxLen)
		if chunk := strings.TrimSpace(remaining[:splitAt]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimSpace(remaining[splitAt:])
	}

	return chunks
}

// findSplitPoint finds the best position to split text, preferring natural boundaries.
func findSplitPoint(text string, maxLen int) int {
	if len(text) <= maxLen {
		return len(text)
	}

	searchArea := text[:maxLen]

	if idx := strings.LastIndex(searchArea, "\n\n"); idx > maxLen/2 {
		return idx + 2
	}

	if idx := strings.LastIndex(searchArea, "\n"); idx > maxLen/2 {
		return idx + 1
	}

	for _, sep := range []string{". ", "! ", "? "} {
		if idx := strings.LastIndex(searchArea, sep); idx > maxLen/2 {
			return idx + len(sep)
		}
	}

	if idx := strings.LastIndex(searchArea, " "); idx > maxLen/2 {
		return idx + 1
	}

	// Hard split, backed off to a rune boundary
	if at := runeBoundary(text, maxLen); at > 0 {
		return at
	}
	return maxLen
}
