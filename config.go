package authgate

import (
	"errors"
	"time"
)

// Config defines a public type used by authgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Guard    GuardConfig
	Tokens   TokenConfig
	Dispatch DispatchConfig
	Store    StoreConfig
	Audit    AuditConfig
	Metrics  MetricsConfig

	// Warn receives printf-style diagnostics for non-fatal background
	// failures (persistence write errors, guard clears after success).
	// Defaults to log.Printf.
	Warn func(format string, args ...any)
}

/*
====================================
GUARD CONFIG
====================================
*/

// GuardConfig tunes the login attempt guard.
//
// GuardConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GuardConfig struct {
	// MaxAttempts is the number of failed attempts tolerated inside the
	// window before the identity is locked out. Default 5.
	MaxAttempts int
	// Window is the sliding interval over which failures are counted.
	// Attempts older than the window are pruned before every read and
	// write. Default 15 minutes.
	Window time.Duration
	// RedisPrefix namespaces guard keys when a Redis backend is used.
	RedisPrefix string
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig tunes the background refresh schedule.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	// AutoRefresh enables the single-shot background refresh timer.
	AutoRefresh bool
	// EarlyRefresh is how long before access expiry the refresh fires.
	// Default 5 minutes.
	EarlyRefresh time.Duration
	// MinRefreshDelay floors the computed refresh delay. Default 1 minute.
	MinRefreshDelay time.Duration
}

/*
====================================
DISPATCH CONFIG
====================================
*/

// DispatchConfig tunes the secure request dispatcher.
//
// DispatchConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DispatchConfig struct {
	// BaseURL is prepended to every sanitized endpoint path.
	BaseURL string
	// Timeout bounds each outbound call unless overridden per request.
	// Default 30 seconds.
	Timeout time.Duration
	// MaxUploadBytes caps UploadFile payloads. Default 10 MiB.
	MaxUploadBytes int64
	// AllowedMIMETypes is the upload content-type allow-list. Defaults to
	// common image, document, and text types.
	AllowedMIMETypes []string
	// MaxResponseBytes caps how much of a response body is read into
	// memory. Default 32 MiB.
	MaxResponseBytes int64
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig tunes session persistence.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	// Key is the 32-byte sealing key for the persisted session blob.
	// When empty a random per-process key is generated, which scopes
	// persistence to the current process lifetime.
	Key []byte
	// StorageKey is the fixed key the sealed blob is stored under.
	// Default "authgate:session".
	StorageKey string
	// RedisPrefix namespaces store keys when a Redis backend is used.
	RedisPrefix string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig tunes the asynchronous audit dispatcher.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is
	// full; dropped events are counted and reported via AuditDropped.
	DropIfFull bool
}

// MetricsConfig tunes the in-process metrics collector.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const (
	defaultGuardMaxAttempts = 5
	defaultGuardWindow      = 15 * time.Minute
	defaultEarlyRefresh     = 5 * time.Minute
	defaultMinRefreshDelay  = time.Minute
	defaultRequestTimeout   = 30 * time.Second
	defaultMaxUploadBytes   = 10 << 20
	defaultMaxResponseBytes = 32 << 20
	defaultStorageKey       = "authgate:session"
	defaultRedisPrefix      = "ag"
)

func defaultAllowedMIMETypes() []string {
	return []string{
		"image/png",
		"image/jpeg",
		"image/gif",
		"image/webp",
		"application/pdf",
		"application/json",
		"text/plain",
		"text/csv",
	}
}

// DefaultConfig returns the configuration the [Builder] starts from.
func DefaultConfig() Config {
	return Config{
		Guard: GuardConfig{
			MaxAttempts: defaultGuardMaxAttempts,
			Window:      defaultGuardWindow,
			RedisPrefix: defaultRedisPrefix,
		},
		Tokens: TokenConfig{
			AutoRefresh:     true,
			EarlyRefresh:    defaultEarlyRefresh,
			MinRefreshDelay: defaultMinRefreshDelay,
		},
		Dispatch: DispatchConfig{
			Timeout:          defaultRequestTimeout,
			MaxUploadBytes:   defaultMaxUploadBytes,
			AllowedMIMETypes: defaultAllowedMIMETypes(),
			MaxResponseBytes: defaultMaxResponseBytes,
		},
		Store: StoreConfig{
			StorageKey:  defaultStorageKey,
			RedisPrefix: defaultRedisPrefix,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Store.Key != nil {
		out.Store.Key = append([]byte(nil), cfg.Store.Key...)
	}
	if cfg.Dispatch.AllowedMIMETypes != nil {
		out.Dispatch.AllowedMIMETypes = append([]string(nil), cfg.Dispatch.AllowedMIMETypes...)
	}
	return out
}

func validateConfig(cfg Config) error {
	if cfg.Guard.MaxAttempts <= 0 {
		return errors.New("guard max attempts must be positive")
	}
	if cfg.Guard.Window <= 0 {
		return errors.New("guard window must be positive")
	}
	if cfg.Tokens.EarlyRefresh < 0 {
		return errors.New("early refresh must not be negative")
	}
	if cfg.Tokens.MinRefreshDelay <= 0 {
		return errors.New("min refresh delay must be positive")
	}
	if cfg.Dispatch.Timeout <= 0 {
		return errors.New("dispatch timeout must be positive")
	}
	if cfg.Dispatch.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}
	if cfg.Dispatch.MaxResponseBytes <= 0 {
		return errors.New("max response bytes must be positive")
	}
	if len(cfg.Store.Key) != 0 && len(cfg.Store.Key) != 32 {
		return errors.New("store key must be 32 bytes when provided")
	}
	if cfg.Store.StorageKey == "" {
		return errors.New("storage key must not be empty")
	}
	return nil
}
