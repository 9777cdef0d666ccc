// Package slack serves the Slack slash-command endpoint over HTTP.
package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroller/internal/roller"
)

const (
	// RollPath receives slash-command posts.
	RollPath = "/slack/roll"

	// HealthPath reports service health.
	HealthPath = "/healthz"

	headerTimestamp  = "X-Slack-Request-Timestamp"
	headerSignature  = "X-Slack-Signature"
	signatureVersion = "v0"
	attachmentColor  = "#36a64f"
	maxBodyBytes     = 64 << 10
)

var (
	// ErrMissingSignature is returned when signing is enabled and a request
	// lacks the timestamp or signature header.
	ErrMissingSignature = errors.New("missing slack signature headers")
	// ErrStaleRequest is returned when the request timestamp is outside the allowed skew.
	ErrStaleRequest = errors.New("slack request timestamp outside allowed skew")
	// ErrBadSignature is returned when the signature does not match the body.
	ErrBadSignature = errors.New("slack signature mismatch")
)

// Attachment is one message attachment in a slash-command response.
type Attachment struct {
	Text     string `json:"text"`
	Color    string `json:"color"`
	Markdown bool   `json:"mrkdwn"`
}

// Response is the JSON body returned to Slack.
type Response struct {
	ResponseType string       `json:"response_type"`
	Text         string       `json:"text"`
	Attachments  []Attachment `json:"attachments"`
}

// NewResponse builds the in-channel reply mentioning userID.
func NewResponse(userID string, lines []string) Response {
	return Response{
		ResponseType: "in_channel",
		Text:         fmt.Sprintf("<@%s> roll results:", userID),
		Attachments: []Attachment{{
			Text:     strings.Join(lines, "\n"),
			Color:    attachmentColor,
			Markdown: true,
		}},
	}
}

// Verifier checks Slack request signatures. A zero-value secret disables
// verification.
type Verifier struct {
	secret  string
	maxSkew time.Duration
	now     func() time.Time
}

// NewVerifier creates a Verifier for the given signing secret.
func NewVerifier(secret string, maxSkew time.Duration) *Verifier {
	return &Verifier{secret: secret, maxSkew: maxSkew, now: time.Now}
}

// Enabled reports whether a signing secret is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && v.secret != ""
}

// Sign computes the v0 signature header value for body sent at timestamp.
func (v *Verifier) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(v.secret))
	fmt.Fprintf(mac, "%s:%s:", signatureVersion, timestamp)
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the timestamp and signature headers against body.
//
// Postcondition: Returns nil when verification is disabled.
func (v *Verifier) Verify(header http.Header, body []byte) error {
	if !v.Enabled() {
		return nil
	}
	timestamp := header.Get(headerTimestamp)
	signature := header.Get(headerSignature)
	if timestamp == "" || signature == "" {
		return ErrMissingSignature
	}

	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: timestamp %q", ErrStaleRequest, timestamp)
	}
	if skew := v.now().Sub(time.Unix(secs, 0)).Abs(); skew > v.maxSkew {
		return fmt.Errorf("%w: %s", ErrStaleRequest, skew)
	}

	if !hmac.Equal([]byte(signature), []byte(v.Sign(timestamp, body))) {
		return ErrBadSignature
	}
	return nil
}

// Handler routes slash-command and health requests.
type Handler struct {
	roller   roller.Roller
	verifier *Verifier
	health   func(context.Context) error
	logger   *zap.Logger
	mux      *http.ServeMux
}

// NewHandler creates a Handler. health may be nil, in which case /healthz
// always reports ok.
//
// Precondition: r and logger must be non-nil.
func NewHandler(r roller.Roller, verifier *Verifier, health func(context.Context) error, logger *zap.Logger) *Handler {
	h := &Handler{
		roller:   r,
		verifier: verifier,
		health:   health,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	h.mux.HandleFunc("POST "+RollPath, h.handleRoll)
	h.mux.HandleFunc("GET "+HealthPath, h.handleHealth)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleRoll(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := h.verifier.Verify(r.Header, body); err != nil {
		h.logger.Warn("rejecting slack request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	userID := form.Get("user_id")
	lines := h.roller.Roll(r.Context(), roller.Request{
		Frontend:  "slack",
		UserID:    userID,
		ChannelID: form.Get("channel_id"),
		Text:      form.Get("text"),
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(NewResponse(userID, lines)); err != nil {
		h.logger.Error("writing slack response", zap.Error(err))
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}
