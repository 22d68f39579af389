package authgate

import (
	"context"
	"errors"
	"net/http"
	"time"

	internalaudit "github.com/dlanzer/authgate/internal/audit"
	"github.com/dlanzer/authgate/internal/guard"
	"github.com/dlanzer/authgate/tokenstore"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by authgate APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	auth       Authenticator
	httpClient *http.Client
	auditSink  AuditSink
	guardStore guard.Store
	tokenStore tokenstore.Store

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuthenticator describes the withauthenticator operation and its observable behavior.
//
// WithAuthenticator may return an error when input validation, dependency calls, or security checks fail.
// WithAuthenticator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuthenticator(auth Authenticator) *Builder {
	b.auth = auth
	return b
}

// WithHTTPClient describes the withhttpclient operation and its observable behavior.
//
// WithHTTPClient may return an error when input validation, dependency calls, or security checks fail.
// WithHTTPClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithGuardStore describes the withguardstore operation and its observable behavior.
//
// WithGuardStore may return an error when input validation, dependency calls, or security checks fail.
// WithGuardStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithGuardStore(store GuardStore) *Builder {
	b.guardStore = store
	return b
}

// WithTokenStore describes the withtokenstore operation and its observable behavior.
//
// WithTokenStore may return an error when input validation, dependency calls, or security checks fail.
// WithTokenStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenStore(store tokenstore.Store) *Builder {
	b.tokenStore = store
	return b
}

// WithBaseURL describes the withbaseurl operation and its observable behavior.
//
// WithBaseURL may return an error when input validation, dependency calls, or security checks fail.
// WithBaseURL does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.Dispatch.BaseURL = baseURL
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if b.auth == nil {
		return nil, errors.New("authenticator required")
	}

	// -------- ATTEMPT GUARD --------
	guardStore := b.guardStore
	guardBackend := "custom"
	if guardStore == nil {
		guardCfg := guard.Config{
			MaxAttempts: cfg.Guard.MaxAttempts,
			Window:      cfg.Guard.Window,
		}
		if b.redis != nil {
			guardStore = guard.NewRedis(b.redis, cfg.Guard.RedisPrefix, guardCfg)
			guardBackend = "redis"
		} else {
			guardStore = guard.NewMemory(guardCfg)
			guardBackend = "memory"
		}
	}

	// -------- TOKEN STORE --------
	tokenStore := b.tokenStore
	storeBackend := "custom"
	if tokenStore == nil {
		if b.redis != nil {
			tokenStore = tokenstore.NewRedis(b.redis, cfg.Store.RedisPrefix, cfg.Store.StorageKey)
			storeBackend = "redis"
		} else {
			tokenStore = tokenstore.NewMemory()
			storeBackend = "memory"
		}
	}

	// -------- SEALING CIPHER --------
	key := cfg.Store.Key
	if len(key) == 0 {
		generated, err := tokenstore.NewKey()
		if err != nil {
			return nil, err
		}
		key = generated
	}
	cipher, err := tokenstore.NewCipher(key)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		config:       cfg,
		guard:        guardStore,
		store:        tokenStore,
		cipher:       cipher,
		auth:         b.auth,
		metrics:      NewMetrics(cfg.Metrics),
		now:          time.Now,
		guardBackend: guardBackend,
		storeBackend: storeBackend,
	}

	if cfg.Audit.Enabled {
		manager.audit = internalaudit.NewDispatcher(internalaudit.DispatcherConfig{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink)
	}

	manager.dispatcher = newDispatcher(manager, b.httpClient, cfg.Dispatch)

	restoreCtx, cancel := context.WithTimeout(context.Background(), cfg.Dispatch.Timeout)
	defer cancel()
	manager.restore(restoreCtx)

	b.built = true

	return manager, nil
}
