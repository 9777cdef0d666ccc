// Package telegram rolls dice for /roll commands through a Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroller/internal/config"
	"github.com/cory-johannsen/diceroller/internal/roller"
)

const (
	// Command is the bot command that triggers a roll.
	Command = "/roll"

	maxRetries  = 3
	retryBase   = 2 * time.Second
	retryGrowth = 2
)

// ParseCommand reports whether text is a /roll command addressed to this bot
// and returns its arguments. "/roll@name" is accepted only when name matches
// botName, case-insensitively.
func ParseCommand(text, botName string) (string, bool) {
	text = strings.TrimSpace(text)
	head, args := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, args = text[:i], text[i:]
	}
	cmd, target, addressed := strings.Cut(head, "@")
	if !strings.EqualFold(cmd, Command) {
		return "", false
	}
	if addressed && !strings.EqualFold(target, botName) {
		return "", false
	}
	return strings.TrimSpace(args), true
}

// Mention names the sender of a message for the reply header.
func Mention(u *tgbotapi.User) string {
	switch {
	case u == nil:
		return "someone"
	case u.UserName != "":
		return "@" + u.UserName
	default:
		return u.FirstName
	}
}

// FormatReply renders a Markdown reply for mention.
func FormatReply(mention string, lines []string) string {
	return fmt.Sprintf("%s roll results:\n%s",
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, mention), strings.Join(lines, "\n"))
}

// messageSender is the subset of *tgbotapi.BotAPI used to reply.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot long-polls Telegram for roll commands.
type Bot struct {
	api         *tgbotapi.BotAPI
	pollTimeout time.Duration
	roller      roller.Roller
	logger      *zap.Logger
}

// NewBot authenticates with the Telegram API, retrying transient failures.
//
// Precondition: cfg.Token must be non-empty.
// Postcondition: Returns a Bot or the last connection error after all retries.
func NewBot(ctx context.Context, cfg config.TelegramConfig, r roller.Roller, logger *zap.Logger) (*Bot, error) {
	var (
		api *tgbotapi.BotAPI
		err error
	)
	delay := retryBase
	for attempt := 1; attempt <= maxRetries; attempt++ {
		api, err = tgbotapi.NewBotAPI(cfg.Token)
		if err == nil {
			break
		}
		if attempt == maxRetries {
			break
		}
		logger.Warn("telegram api connection failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= retryGrowth
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram after %d attempts: %w", maxRetries, err)
	}

	return &Bot{
		api:         api,
		pollTimeout: cfg.PollTimeout,
		roller:      r,
		logger:      logger,
	}, nil
}

// Name identifies the bot in lifecycle logs.
func (b *Bot) Name() string { return "telegram" }

// Run polls for updates and answers roll commands until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout.Seconds())
	u.AllowedUpdates = []string{"message"}
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram bot polling", zap.String("bot", b.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, b.api, b.api.Self.UserName, update.Message)
		}
	}
}

// handle answers msg when it is a roll command from someone other than a bot.
func (b *Bot) handle(ctx context.Context, sender messageSender, botName string, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil || (msg.From != nil && msg.From.IsBot) {
		return
	}
	text, ok := ParseCommand(msg.Text, botName)
	if !ok {
		return
	}

	userID := ""
	if msg.From != nil {
		userID = fmt.Sprint(msg.From.ID)
	}
	lines := b.roller.Roll(ctx, roller.Request{
		Frontend:  "telegram",
		UserID:    userID,
		ChannelID: fmt.Sprint(msg.Chat.ID),
		Text:      text,
	})

	reply := tgbotapi.NewMessage(msg.Chat.ID, FormatReply(Mention(msg.From), lines))
	reply.ReplyToMessageID = msg.MessageID
	reply.ParseMode = tgbotapi.ModeMarkdown
	_, err := sender.Send(reply)
	if err == nil {
		return
	}
	b.logger.Debug("markdown reply rejected, resending as plain text", zap.Error(err))

	reply.ParseMode = ""
	reply.Text = fmt.Sprintf("%s roll results:\n%s", Mention(msg.From), strings.Join(lines, "\n"))
	if _, err = sender.Send(reply); err != nil {
		b.logger.Error("sending telegram reply",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Error(err),
		)
	}
}
