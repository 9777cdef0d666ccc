// Package roller is the roll service shared by every transport. It expands
// presets, dispatches rolls through the logged dice roller, and records
// history when a recorder is configured.
package roller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroller/internal/dice"
	"github.com/cory-johannsen/diceroller/internal/preset"
)

// Request identifies who asked for a roll and through which transport.
type Request struct {
	Frontend  string // "slack", "discord", "telegram", "telnet", "cli"
	UserID    string
	ChannelID string
	Text      string
}

// Record is one persisted roll request.
type Record struct {
	ID        uuid.UUID
	Frontend  string
	UserID    string
	ChannelID string
	Request   string
	RollType  string
	Total     int
	Line      string
	Failed    bool
	CreatedAt time.Time
}

// Roller is the transport-facing side of Service.
type Roller interface {
	Roll(ctx context.Context, req Request) []string
}

// Recorder persists roll records.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Service rolls requests for all transports. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	dice      *dice.Roller
	presets   *preset.Set
	recorders []Recorder
	logger    *zap.Logger
	now       func() time.Time
}

var _ Roller = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithPresets expands presets before rolling.
func WithPresets(set *preset.Set) Option {
	return func(s *Service) { s.presets = set }
}

// WithRecorder records every rolled request. It may be given more than once;
// each recorder receives every record.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorders = append(s.recorders, r) }
}

// WithClock overrides the timestamp source for records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
//
// Precondition: roller and logger must be non-nil.
func NewService(roller *dice.Roller, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{dice: roller, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Roll evaluates req.Text and returns one formatted line per comma-separated
// request. Recording failures are logged and never fail the roll.
//
// Postcondition: len(result) >= 1.
func (s *Service) Roll(ctx context.Context, req Request) []string {
	text := s.presets.Expand(req.Text)
	results := s.dice.RollAll(text)

	for _, res := range results {
		if len(s.recorders) == 0 {
			break
		}
		if res.Outcome != nil && res.Outcome.Type == dice.ShowUsage {
			continue
		}
		rec := s.record(req, res)
		for _, r := range s.recorders {
			if err := r.Record(ctx, rec); err != nil {
				s.logger.Warn("recording roll",
					zap.String("frontend", req.Frontend),
					zap.String("user_id", req.UserID),
					zap.Error(err),
				)
			}
		}
	}
	return dice.Lines(results)
}

func (s *Service) record(req Request, res dice.Result) Record {
	rec := Record{
		ID:        uuid.New(),
		Frontend:  req.Frontend,
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
		Request:   res.Request,
		Line:      res.Line,
		Failed:    res.Failed(),
		CreatedAt: s.now().UTC(),
	}
	if res.Outcome != nil {
		rec.RollType = res.Outcome.Type.String()
		rec.Total = res.Outcome.Total
	}
	return rec
}
