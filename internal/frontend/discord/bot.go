// Package discord rolls dice for prefixed chat messages through a Discord bot.
package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroller/internal/config"
	"github.com/cory-johannsen/diceroller/internal/roller"
)

// maxMessageLength is Discord's message content limit.
const maxMessageLength = 2000

// ParseCommand reports whether content invokes prefix and returns the roll
// text that follows it. The prefix match is case-insensitive and must be
// followed by whitespace or the end of the message.
func ParseCommand(content, prefix string) (string, bool) {
	content = strings.TrimSpace(content)
	if len(content) < len(prefix) || !strings.EqualFold(content[:len(prefix)], prefix) {
		return "", false
	}
	rest := content[len(prefix):]
	if rest != "" && !unicode.IsSpace(rune(rest[0])) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// FormatReply renders the reply for mention, truncated to Discord's limit.
//
// Postcondition: the result is at most maxMessageLength runes and valid UTF-8
// whenever the lines are.
func FormatReply(mention string, lines []string) string {
	reply := fmt.Sprintf("%s roll results:\n%s", mention, strings.Join(lines, "\n"))
	if runes := []rune(reply); len(runes) > maxMessageLength {
		reply = string(runes[:maxMessageLength-3]) + "..."
	}
	return reply
}

// messageSender is the subset of *discordgo.Session used to reply.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot listens for roll commands on a Discord gateway session.
type Bot struct {
	session *discordgo.Session
	prefix  string
	roller  roller.Roller
	logger  *zap.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewBot creates a Bot for the configured token.
//
// Precondition: cfg.Token and cfg.Prefix must be non-empty.
func NewBot(cfg config.DiscordConfig, r roller.Roller, logger *zap.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	return &Bot{
		session: dg,
		prefix:  cfg.Prefix,
		roller:  r,
		logger:  logger,
		ctx:     context.Background(),
	}, nil
}

// Name identifies the bot in lifecycle logs.
func (b *Bot) Name() string { return "discord" }

// Run opens the gateway connection and handles messages until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	b.session.AddHandler(b.onMessageCreate)
	b.session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord connection: %w", err)
	}
	b.logger.Info("discord bot connected", zap.String("prefix", b.prefix))

	<-ctx.Done()
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("closing discord connection: %w", err)
	}
	b.logger.Info("discord bot stopped")
	return nil
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()
	b.handle(ctx, s, selfID, m)
}

// handle rolls m when it carries the command prefix and was not sent by the
// bot itself.
func (b *Bot) handle(ctx context.Context, sender messageSender, selfID string, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.ID == selfID {
		return
	}
	text, ok := ParseCommand(m.Content, b.prefix)
	if !ok {
		return
	}

	lines := b.roller.Roll(ctx, roller.Request{
		Frontend:  "discord",
		UserID:    m.Author.ID,
		ChannelID: m.ChannelID,
		Text:      text,
	})
	if _, err := sender.ChannelMessageSend(m.ChannelID, FormatReply(m.Author.Mention(), lines)); err != nil {
		b.logger.Error("sending discord reply",
			zap.String("channel_id", m.ChannelID),
			zap.Error(err),
		)
	}
}
