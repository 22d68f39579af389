package jwtauth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEmailTaken is an exported constant or variable used by the session core.
var ErrEmailTaken = errors.New("email already registered")

// ErrUserNotFound is an exported constant or variable used by the session core.
var ErrUserNotFound = errors.New("user not found")

// User is the provider-side account record surfaced to the authenticator.
type User struct {
	ID            string
	Email         string
	Name          string
	AvatarURL     string
	EmailVerified bool
	CreatedAt     time.Time
}

// UserSource is the account backend contract: lookup, secret verification,
// and account creation. Implementations decide how secrets are stored.
type UserSource interface {
	Lookup(ctx context.Context, email string) (User, error)
	VerifySecret(ctx context.Context, userID, secret string) (bool, error)
	Create(ctx context.Context, email, name, secret string) (User, error)
}

type memoryUser struct {
	user       User
	secretHash [sha256.Size]byte
}

// InMemorySource is a map-backed [UserSource] for tests and single-binary
// deployments. Secrets are stored as SHA-256 digests and compared in
// constant time.
type InMemorySource struct {
	mu     sync.RWMutex
	byMail map[string]*memoryUser
	byID   map[string]*memoryUser
}

// NewInMemorySource creates an empty [InMemorySource].
func NewInMemorySource() *InMemorySource {
	return &InMemorySource{
		byMail: make(map[string]*memoryUser),
		byID:   make(map[string]*memoryUser),
	}
}

// AddUser registers an account directly, bypassing signup validation.
func (s *InMemorySource) AddUser(email, name, secret string) (User, error) {
	return s.Create(context.Background(), email, name, secret)
}

func (s *InMemorySource) Lookup(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byMail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return entry.user, nil
}

func (s *InMemorySource) VerifySecret(_ context.Context, userID, secret string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byID[userID]
	if !ok {
		return false, ErrUserNotFound
	}
	digest := sha256.Sum256([]byte(secret))
	return subtle.ConstantTimeCompare(digest[:], entry.secretHash[:]) == 1, nil
}

func (s *InMemorySource) Create(_ context.Context, email, name, secret string) (User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byMail[normalized]; exists {
		return User{}, ErrEmailTaken
	}

	entry := &memoryUser{
		user: User{
			ID:        uuid.NewString(),
			Email:     normalized,
			Name:      name,
			CreatedAt: time.Now().UTC(),
		},
		secretHash: sha256.Sum256([]byte(secret)),
	}
	s.byMail[normalized] = entry
	s.byID[entry.user.ID] = entry

	return entry.user, nil
}
