package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroller/internal/roller"
)

// ClientName identifies this process to the NATS server.
const ClientName = "diceroller"

var _ roller.Recorder = (*Publisher)(nil)

// Publisher publishes one RollEvent per recorded roll.
type Publisher struct {
	conn    *nats.Conn
	prefix  string
	logger  *zap.Logger
	ownConn bool
}

// Connect dials the NATS server at url, reconnecting indefinitely after the
// first successful connection.
//
// Precondition: url must be non-empty; logger must be non-nil.
func Connect(url string, timeout time.Duration, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(ClientName),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrlRedacted()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return conn, nil
}

// Dial connects to the NATS server at url and returns a Publisher that owns
// the connection.
//
// Precondition: url and prefix must be non-empty; logger must be non-nil.
// Postcondition: Returns a connected Publisher or a non-nil error.
func Dial(url, prefix string, timeout time.Duration, logger *zap.Logger) (*Publisher, error) {
	conn, err := Connect(url, timeout, logger)
	if err != nil {
		return nil, err
	}
	p := NewPublisher(conn, prefix, logger)
	p.ownConn = true
	return p, nil
}

// NewPublisher creates a Publisher on an existing connection. The caller
// keeps ownership of conn.
//
// Precondition: conn and logger must be non-nil; prefix must be non-empty.
func NewPublisher(conn *nats.Conn, prefix string, logger *zap.Logger) *Publisher {
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Record publishes rec on "<prefix>.<frontend>". Delivery is at most once;
// a nil return means the event was buffered for the server.
func (p *Publisher) Record(ctx context.Context, rec roller.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(NewRollEvent(rec))
	if err != nil {
		return fmt.Errorf("encoding roll event: %w", err)
	}
	subject := Subject(p.prefix, rec.Frontend)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	p.logger.Debug("roll event published",
		zap.String("subject", subject),
		zap.Stringer("id", rec.ID),
	)
	return nil
}

// Flush waits until the server has received every published event.
func (p *Publisher) Flush(timeout time.Duration) error {
	return p.conn.FlushTimeout(timeout)
}

// Close drains the connection if the Publisher owns it.
func (p *Publisher) Close() {
	if !p.ownConn {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("draining nats connection", zap.Error(err))
		p.conn.Close()
	}
}

// Watch subscribes to every roll event under prefix and calls fn for each
// one until ctx is cancelled. Undecodable payloads are logged and skipped.
//
// Precondition: conn, fn, and logger must be non-nil.
// Postcondition: Returns nil when ctx is cancelled, or the subscription error.
func Watch(ctx context.Context, conn *nats.Conn, prefix string, fn func(RollEvent), logger *zap.Logger) error {
	sub, err := conn.Subscribe(WatchSubject(prefix), func(msg *nats.Msg) {
		event, err := Decode(msg.Data)
		if err != nil {
			logger.Warn("skipping roll event",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}
		fn(event)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", WatchSubject(prefix), err)
	}
	if err := conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("confirming subscription: %w", err)
	}

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return err
	}
	return nil
}
