package telnet

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroller/internal/roller"
)

const (
	// Prompt is written before every input line.
	Prompt = "roll> "

	banner = "Dice roller. Enter a roll such as 2d6+3, 'help' for usage, 'quit' to leave."
)

// RollHandler is a SessionHandler that rolls every line the client sends.
type RollHandler struct {
	roller roller.Roller
	width  int
	logger *zap.Logger
}

// NewRollHandler creates a RollHandler that wraps output to width columns.
// A width of zero disables wrapping.
//
// Precondition: r and logger must be non-nil.
func NewRollHandler(r roller.Roller, width int, logger *zap.Logger) *RollHandler {
	return &RollHandler{roller: r, width: width, logger: logger}
}

// HandleSession prompts, rolls and replies until the client quits, the
// connection drops, or ctx is cancelled.
//
// Postcondition: Returns nil when the client quits or ctx is cancelled.
func (h *RollHandler) HandleSession(ctx context.Context, conn *Conn) error {
	if err := conn.WriteLine(banner); err != nil {
		return err
	}

	user := remoteHost(conn.RemoteAddr())
	for {
		if err := conn.WritePrompt(Prompt); err != nil {
			return err
		}
		line, err := conn.ReadLine()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				_ = conn.WriteLine("Idle timeout.")
			}
			return err
		}

		text := strings.TrimSpace(line)
		switch strings.ToLower(text) {
		case "":
			continue
		case "quit", "exit":
			return conn.WriteLine("Goodbye.")
		}

		h.logger.Debug("telnet roll request",
			zap.String("remote_host", user),
			zap.String("text", text),
		)
		for _, out := range h.roller.Roll(ctx, roller.Request{
			Frontend: "telnet",
			UserID:   user,
			Text:     text,
		}) {
			if err := conn.WriteLine(Wrap(RenderMarkdown(out), h.width)); err != nil {
				return err
			}
		}
	}
}

func remoteHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
