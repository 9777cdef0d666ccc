// Package events publishes roll records to NATS and lets consumers watch
// them. A Publisher is a roller.Recorder, so it runs alongside the database
// history without the roll path knowing about the broker.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/diceroller/internal/roller"
)

// RollEvent is the JSON payload published for every recorded roll.
type RollEvent struct {
	ID        uuid.UUID `json:"id"`
	Frontend  string    `json:"frontend"`
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id,omitempty"`
	Request   string    `json:"request"`
	RollType  string    `json:"roll_type,omitempty"`
	Total     int       `json:"total"`
	Line      string    `json:"line"`
	Failed    bool      `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRollEvent converts a roll record into its wire form.
func NewRollEvent(rec roller.Record) RollEvent {
	return RollEvent{
		ID:        rec.ID,
		Frontend:  rec.Frontend,
		UserID:    rec.UserID,
		ChannelID: rec.ChannelID,
		Request:   rec.Request,
		RollType:  rec.RollType,
		Total:     rec.Total,
		Line:      rec.Line,
		Failed:    rec.Failed,
		CreatedAt: rec.CreatedAt,
	}
}

// Record converts the event back into a roll record.
func (e RollEvent) Record() roller.Record {
	return roller.Record{
		ID:        e.ID,
		Frontend:  e.Frontend,
		UserID:    e.UserID,
		ChannelID: e.ChannelID,
		Request:   e.Request,
		RollType:  e.RollType,
		Total:     e.Total,
		Line:      e.Line,
		Failed:    e.Failed,
		CreatedAt: e.CreatedAt,
	}
}

// Subject returns the subject an event from frontend publishes on.
//
// Postcondition: The result has exactly one more token than prefix.
func Subject(prefix, frontend string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, frontend)
	if token == "" {
		token = "unknown"
	}
	return prefix + "." + token
}

// WatchSubject returns the wildcard subject matching every frontend under prefix.
func WatchSubject(prefix string) string {
	return prefix + ".>"
}

// Decode parses a published event payload.
func Decode(data []byte) (RollEvent, error) {
	var e RollEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return RollEvent{}, fmt.Errorf("decoding roll event: %w", err)
	}
	return e, nil
}
