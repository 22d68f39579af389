package authgate

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	internalaudit "github.com/dlanzer/authgate/internal/audit"
	"github.com/dlanzer/authgate/internal/guard"
	"github.com/dlanzer/authgate/tokenstore"
	"github.com/dlanzer/authgate/validator"
)

const actionLogin = "login"

// Manager defines a public type used by authgate APIs.
//
// Manager owns the session lifecycle: login, signup, logout, encrypted
// persistence, background refresh, and ordered change notifications.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config  Config
	guard   guard.Store
	store   tokenstore.Store
	cipher  *tokenstore.Cipher
	auth    Authenticator
	audit   *internalaudit.Dispatcher
	metrics *Metrics
	now     func() time.Time

	dispatcher *Dispatcher

	guardBackend string
	storeBackend string

	// loginMu serializes the whole check-authenticate-record sequence per
	// normalized identity, so concurrent logins cannot slip past the
	// guard once the attempt limit is reached.
	loginMu keyedMutex

	mu           sync.RWMutex
	identity     *Identity
	tokens       *TokenPair
	refreshTimer *time.Timer
	closed       bool

	// notifyMu is acquired while mu is still held, then released after
	// the callbacks run. That hands notification order to state-change
	// order without holding mu during user code.
	notifyMu sync.Mutex
	subs     subscribers
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.closed = true
	m.stopRefreshLocked()
	m.mu.Unlock()

	if m.audit != nil {
		m.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) AuditDropped() uint64 {
	if m == nil || m.audit == nil {
		return 0
	}
	return m.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

func (m *Manager) metricObserve(id MetricID, d time.Duration) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Observe(id, d)
}

func (m *Manager) warnf(format string, args ...any) {
	if m != nil && m.config.Warn != nil {
		m.config.Warn(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Login(ctx context.Context, email, secret string) (Identity, error) {
	if m == nil || m.auth == nil {
		return Identity{}, ErrManagerNotReady
	}

	emailResult := validator.ValidateEmail(email)
	normalized := emailResult.Sanitized

	unlock := m.loginMu.lock(guard.Key(normalized, actionLogin))
	defer unlock()

	allowed, err := m.guard.CheckAllowed(ctx, normalized, actionLogin)
	if err != nil {
		m.emitAudit(ctx, auditEventLoginFailure, false, "", normalized, ErrGuardUnavailable, nil)
		return Identity{}, errors.Join(ErrGuardUnavailable, err)
	}
	if !allowed {
		m.metricInc(MetricLoginLockedOut)
		m.emitAudit(ctx, auditEventLoginLockedOut, false, "", normalized, ErrLockedOut, nil)
		return Identity{}, ErrLockedOut
	}

	if !emailResult.Valid || secret == "" {
		if err := m.guard.RecordFailure(ctx, normalized, actionLogin); err != nil {
			m.warnf("authgate: failed to record login attempt: %v", err)
		}
		m.metricInc(MetricLoginFailure)
		m.emitAudit(ctx, auditEventLoginFailure, false, "", normalized, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "malformed_credentials",
			}
		})
		return Identity{}, ErrInvalidCredentials
	}

	identity, tokens, err := m.auth.Authenticate(ctx, normalized, secret)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			if recErr := m.guard.RecordFailure(ctx, normalized, actionLogin); recErr != nil {
				m.warnf("authgate: failed to record login attempt: %v", recErr)
			}
			m.metricInc(MetricLoginFailure)
			m.emitAudit(ctx, auditEventLoginFailure, false, "", normalized, ErrInvalidCredentials, func() map[string]string {
				return map[string]string{
					"reason": "rejected",
				}
			})
			return Identity{}, ErrInvalidCredentials
		}
		// Transport or provider failures do not consume attempt budget.
		m.emitAudit(ctx, auditEventLoginFailure, false, "", normalized, err, func() map[string]string {
			return map[string]string{
				"reason": "provider_failure",
			}
		})
		return Identity{}, err
	}

	if err := m.guard.Clear(ctx, normalized, actionLogin); err != nil {
		m.warnf("authgate: failed to clear login attempts: %v", err)
	}

	m.swapSession(ctx, identity, tokens, true, "")

	m.metricInc(MetricLoginSuccess)
	m.emitAudit(ctx, auditEventLoginSuccess, true, identity.ID, identity.Email, nil, nil)
	return identity, nil
}

// Signup describes the signup operation and its observable behavior.
//
// Signup may return an error when input validation, dependency calls, or security checks fail.
// Signup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Signup(ctx context.Context, req SignupRequest) (Identity, error) {
	if m == nil || m.auth == nil {
		return Identity{}, ErrManagerNotReady
	}

	emailResult := validator.ValidateEmail(req.Email)
	nameResult := validator.ValidateName(req.Name)
	passwordResult := validator.ValidatePassword(req.Password)

	var reasons []string
	reasons = append(reasons, emailResult.Errors...)
	reasons = append(reasons, nameResult.Errors...)
	reasons = append(reasons, passwordResult.Errors...)
	if len(reasons) > 0 {
		m.metricInc(MetricSignupValidationFailed)
		m.emitAudit(ctx, auditEventSignupValidationFailed, false, "", emailResult.Sanitized, ErrValidationFailed, func() map[string]string {
			return map[string]string{
				"violations": strconv.Itoa(len(reasons)),
			}
		})
		return Identity{}, &ValidationError{Reasons: reasons}
	}

	identity, tokens, err := m.auth.Register(ctx, SignupRequest{
		Email:    emailResult.Sanitized,
		Name:     nameResult.Sanitized,
		Password: req.Password,
	})
	if err != nil {
		m.emitAudit(ctx, auditEventSignupValidationFailed, false, "", emailResult.Sanitized, err, func() map[string]string {
			return map[string]string{
				"reason": "provider_rejected",
			}
		})
		return Identity{}, err
	}

	m.swapSession(ctx, identity, tokens, true, "")

	m.metricInc(MetricSignupSuccess)
	m.emitAudit(ctx, auditEventSignupSuccess, true, identity.ID, identity.Email, nil, nil)
	return identity, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Logout(ctx context.Context) error {
	if m == nil {
		return ErrManagerNotReady
	}

	m.dropSession(ctx, "")
	return nil
}

// dropSession clears the live and persisted session. When
// expectRefreshToken is non-empty the drop aborts under mu unless the
// live pair still carries that refresh token, so a failed stale refresh
// cannot destroy a session installed by a newer login.
func (m *Manager) dropSession(ctx context.Context, expectRefreshToken string) bool {
	m.mu.Lock()
	if expectRefreshToken != "" &&
		(m.tokens == nil || m.tokens.RefreshToken != expectRefreshToken) {
		m.mu.Unlock()
		return false
	}
	wasAuthenticated := m.identity != nil
	var userID, email string
	if m.identity != nil {
		userID, email = m.identity.ID, m.identity.Email
	}
	m.identity = nil
	m.tokens = nil
	m.stopRefreshLocked()
	m.notifyMu.Lock()
	m.mu.Unlock()
	defer m.notifyMu.Unlock()

	// Persisted state is cleared even when already logged out, so a
	// stale blob can never outlive an explicit logout.
	if err := m.store.Clear(ctx); err != nil {
		m.warnf("authgate: failed to clear persisted session: %v", err)
	}

	if wasAuthenticated {
		m.metricInc(MetricLogout)
		m.emitAudit(ctx, auditEventLogout, true, userID, email, nil, nil)
		m.notifyLocked(nil, false)
	}
	return true
}

// CurrentIdentity describes the currentidentity operation and its observable behavior.
//
// CurrentIdentity may return an error when input validation, dependency calls, or security checks fail.
// CurrentIdentity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) CurrentIdentity() (Identity, bool) {
	if m == nil {
		return Identity{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return Identity{}, false
	}
	return *m.identity, true
}

// IsAuthenticated describes the isauthenticated operation and its observable behavior.
//
// IsAuthenticated may return an error when input validation, dependency calls, or security checks fail.
// IsAuthenticated does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) IsAuthenticated() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity != nil && m.tokens != nil && m.tokens.Valid(m.now())
}

// Subscribe describes the subscribe operation and its observable behavior.
//
// Subscribe may return an error when input validation, dependency calls, or security checks fail.
// Subscribe does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Subscribe(fn SessionListener) func() {
	if m == nil || fn == nil {
		return func() {}
	}
	return m.subs.add(fn)
}

// bearerToken returns the current access token if the session is live.
func (m *Manager) bearerToken() (string, bool) {
	if m == nil {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil || m.tokens == nil || !m.tokens.Valid(m.now()) {
		return "", false
	}
	return m.tokens.AccessToken, true
}

// notifyLocked invokes every listener in registration order. Callers hold
// notifyMu (and must NOT hold mu).
func (m *Manager) notifyLocked(identity *Identity, authenticated bool) {
	for _, sub := range m.subs.snapshot() {
		sub.fn(identity, authenticated)
	}
}

// swapSession installs a new identity and token pair, persists the sealed
// session, reschedules the refresh timer, and notifies listeners. When
// expectRefreshToken is non-empty the swap aborts unless the live pair
// still carries that refresh token, which discards stale refresh results.
func (m *Manager) swapSession(ctx context.Context, identity Identity, tokens TokenPair, persist bool, expectRefreshToken string) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if expectRefreshToken != "" &&
		(m.tokens == nil || m.tokens.RefreshToken != expectRefreshToken) {
		m.mu.Unlock()
		return false
	}

	idCopy := identity
	tkCopy := tokens
	m.identity = &idCopy
	m.tokens = &tkCopy
	m.scheduleRefreshLocked()
	m.notifyMu.Lock()
	m.mu.Unlock()
	defer m.notifyMu.Unlock()

	if persist {
		m.persist(ctx, idCopy, tkCopy)
	}
	m.notifyLocked(&idCopy, true)
	return true
}

func (m *Manager) persist(ctx context.Context, identity Identity, tokens TokenPair) {
	sess := &tokenstore.Session{
		UserID:        identity.ID,
		Email:         identity.Email,
		Name:          identity.Name,
		AvatarURL:     identity.AvatarURL,
		EmailVerified: identity.EmailVerified,
		AccessToken:   tokens.AccessToken,
		RefreshToken:  tokens.RefreshToken,
		LastLoginAt:   identity.LastLoginAt.Unix(),
		ExpiresAt:     tokens.ExpiresAt.Unix(),
	}

	plain, err := tokenstore.Encode(sess)
	if err != nil {
		m.warnf("authgate: failed to encode session: %v", err)
		return
	}
	sealed, err := m.cipher.Seal(plain)
	if err != nil {
		m.warnf("authgate: failed to seal session: %v", err)
		return
	}

	ttl := tokens.ExpiresAt.Sub(m.now())
	if err := m.store.Save(ctx, sealed, ttl); err != nil {
		m.warnf("authgate: failed to persist session: %v", err)
	}
}

// restore loads the persisted session during Build. Every failure mode —
// absent, unreadable, tampered, expired — lands in the same logged-out
// state; only diagnostics distinguish them.
func (m *Manager) restore(ctx context.Context) {
	blob, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNoSession) {
			m.warnf("authgate: failed to load persisted session: %v", err)
		}
		return
	}

	reject := func(reason string) {
		if err := m.store.Clear(ctx); err != nil {
			m.warnf("authgate: failed to clear rejected session: %v", err)
		}
		m.metricInc(MetricSessionRestoreRejected)
		m.emitAudit(ctx, auditEventSessionRestoreRejected, false, "", "", ErrSessionExpired, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
	}

	plain, err := m.cipher.Open(blob)
	if err != nil {
		reject("unsealable")
		return
	}
	sess, err := tokenstore.Decode(plain)
	if err != nil {
		reject("undecodable")
		return
	}

	tokens := TokenPair{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    time.Unix(sess.ExpiresAt, 0),
	}
	if !tokens.Valid(m.now()) {
		reject("expired")
		return
	}

	identity := Identity{
		ID:            sess.UserID,
		Email:         sess.Email,
		Name:          sess.Name,
		AvatarURL:     sess.AvatarURL,
		EmailVerified: sess.EmailVerified,
		LastLoginAt:   time.Unix(sess.LastLoginAt, 0),
	}

	// Already persisted; only the in-memory state and timer need setup.
	m.swapSession(ctx, identity, tokens, false, "")

	m.metricInc(MetricSessionRestored)
	m.emitAudit(ctx, auditEventSessionRestored, true, identity.ID, identity.Email, nil, nil)
}

// keyedMutex hands out one mutex per key, reference counted so idle keys
// do not accumulate.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*keyedMutexEntry)
	}
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedMutexEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
