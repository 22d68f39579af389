package authgate

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/dlanzer/authgate/internal/audit"
	"github.com/dlanzer/authgate/internal/guard"
)

// Identity is the authenticated principal held by the [Manager]. It is
// created on successful login or signup and cleared on logout.
type Identity struct {
	ID            string
	Email         string
	Name          string
	AvatarURL     string
	EmailVerified bool
	LastLoginAt   time.Time
}

// TokenPair is the unit of session state: an opaque access token, the
// refresh token used to exchange it, and the absolute access expiry.
// A TokenPair is always replaced as a whole, never field by field.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the pair holds an access token that has not
// expired at the given instant.
func (p TokenPair) Valid(now time.Time) bool {
	return p.AccessToken != "" && p.ExpiresAt.After(now)
}

// SignupRequest is the input for [Manager.Signup]. Email and Name are
// sanitized by the credential validator before they reach the
// [Authenticator]; Password is passed through verbatim.
type SignupRequest struct {
	Email    string
	Name     string
	Password string
}

// Authenticator is the upstream identity provider contract that callers
// must implement to integrate authgate. Secret verification, password
// storage, and token minting all happen behind this interface; the
// [Manager] owns everything after the tokens come back.
//
// Authenticate and Register must return an error wrapping
// [ErrInvalidCredentials] for credential rejections so the manager can
// distinguish them from transport failures; only rejections are counted
// against the login attempt guard.
type Authenticator interface {
	Authenticate(ctx context.Context, email, secret string) (Identity, TokenPair, error)
	Register(ctx context.Context, req SignupRequest) (Identity, TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (Identity, TokenPair, error)
}

// GuardStore is the login attempt guard contract: a sliding-window record
// of failed attempts per normalized identity and action. Implementations
// must serialize read-modify-write per key.
type GuardStore = guard.Store

// AuditEvent is a structured audit record emitted by the manager and
// dispatcher.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
