package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged multi-roll dispatch.
// Every request is logged at debug level with its roll type, total, and discards.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each request to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// RollAll evaluates every comma-separated request in text and logs each result.
// Failed requests are logged at warn level.
func (r *Roller) RollAll(text string) []Result {
	results := RollAll(text, r.src)
	for _, res := range results {
		if res.Err != nil {
			r.logger.Warn("dice roll failed",
				zap.String("request", res.Request),
				zap.Error(res.Err),
			)
			continue
		}
		o := res.Outcome
		if o.Type == ShowUsage {
			r.logger.Debug("dice usage requested", zap.String("request", res.Request))
			continue
		}
		r.logger.Debug("dice roll",
			zap.String("request", res.Request),
			zap.Stringer("roll_type", o.Type),
			zap.String("label", o.Label),
			zap.Int("total", o.Total),
			zap.Ints("discarded", o.Discarded),
		)
	}
	return results
}

// Lines rolls text and returns only the formatted lines.
func (r *Roller) Lines(text string) []string {
	return Lines(r.RollAll(text))
}
