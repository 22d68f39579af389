package jwtauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	authgate "github.com/dlanzer/authgate"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour

	refreshTokenBytes = 32
)

// Config defines a public type used by authgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// SigningKey is the HS256 secret. Required.
	SigningKey []byte
	// AccessTTL bounds access token lifetime. Default 15 minutes.
	AccessTTL time.Duration
	// RefreshTTL bounds how long an unused refresh token stays
	// redeemable. Default 30 days.
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
	// Leeway tolerates clock skew during verification.
	Leeway time.Duration
}

type refreshRecord struct {
	user      User
	expiresAt time.Time
}

// Authenticator defines a public type used by authgate APIs.
//
// Authenticator implements [authgate.Authenticator] with HS256 access
// tokens and opaque single-use refresh tokens. Each refresh consumes the
// presented token and mints a new pair; a consumed token can never be
// redeemed again.
type Authenticator struct {
	config Config
	source UserSource
	now    func() time.Time

	mu      sync.Mutex
	refresh map[string]refreshRecord
}

// NewAuthenticator describes the newauthenticator operation and its observable behavior.
//
// NewAuthenticator may return an error when input validation, dependency calls, or security checks fail.
// NewAuthenticator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewAuthenticator(cfg Config, source UserSource) (*Authenticator, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("signing key required")
	}
	if source == nil {
		return nil, errors.New("user source required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Authenticator{
		config:  cfg,
		source:  source,
		now:     time.Now,
		refresh: make(map[string]refreshRecord),
	}, nil
}

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate may return an error when input validation, dependency calls, or security checks fail.
// Authenticate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Authenticator) Authenticate(ctx context.Context, email, secret string) (authgate.Identity, authgate.TokenPair, error) {
	user, err := a.source.Lookup(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return authgate.Identity{}, authgate.TokenPair{}, fmt.Errorf("%w: unknown account", authgate.ErrInvalidCredentials)
		}
		return authgate.Identity{}, authgate.TokenPair{}, err
	}

	ok, err := a.source.VerifySecret(ctx, user.ID, secret)
	if err != nil {
		return authgate.Identity{}, authgate.TokenPair{}, err
	}
	if !ok {
		return authgate.Identity{}, authgate.TokenPair{}, fmt.Errorf("%w: secret mismatch", authgate.ErrInvalidCredentials)
	}

	return a.issue(user)
}

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Authenticator) Register(ctx context.Context, req authgate.SignupRequest) (authgate.Identity, authgate.TokenPair, error) {
	user, err := a.source.Create(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		return authgate.Identity{}, authgate.TokenPair{}, err
	}
	return a.issue(user)
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Authenticator) Refresh(_ context.Context, refreshToken string) (authgate.Identity, authgate.TokenPair, error) {
	a.mu.Lock()
	record, ok := a.refresh[refreshToken]
	if ok {
		// Single use: the presented token is consumed whether or not it
		// is still redeemable.
		delete(a.refresh, refreshToken)
	}
	a.mu.Unlock()

	if !ok || !a.now().Before(record.expiresAt) {
		return authgate.Identity{}, authgate.TokenPair{}, fmt.Errorf("%w: refresh token not redeemable", authgate.ErrSessionExpired)
	}

	return a.issue(record.user)
}

func (a *Authenticator) issue(user User) (authgate.Identity, authgate.TokenPair, error) {
	now := a.now()
	expiresAt := now.Add(a.config.AccessTTL)

	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		Issuer:    a.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	if a.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{a.config.Audience}
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.config.SigningKey)
	if err != nil {
		return authgate.Identity{}, authgate.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return authgate.Identity{}, authgate.TokenPair{}, err
	}

	a.mu.Lock()
	a.refresh[refreshToken] = refreshRecord{
		user:      user,
		expiresAt: now.Add(a.config.RefreshTTL),
	}
	a.mu.Unlock()

	identity := authgate.Identity{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		AvatarURL:     user.AvatarURL,
		EmailVerified: user.EmailVerified,
		LastLoginAt:   now,
	}
	pair := authgate.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	return identity, pair, nil
}

// ParseAccess verifies an access token and returns its claims.
func (a *Authenticator) ParseAccess(tokenString string) (*jwt.RegisteredClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.config.Leeway),
	}
	if a.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		options = append(options, jwt.WithAudience(a.config.Audience))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.config.SigningKey, nil
	}, options...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func newRefreshToken() (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
