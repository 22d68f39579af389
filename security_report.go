package authgate

import "time"

type SecurityReport struct {
	GuardMaxAttempts   int
	GuardWindow        time.Duration
	GuardBackend       string
	SealedStorage      bool
	StoreBackend       string
	AutoRefreshEnabled bool
	EarlyRefresh       time.Duration
	MinRefreshDelay    time.Duration
	RequestTimeout     time.Duration
	MaxUploadBytes     int64
	AuditEnabled       bool
	MetricsEnabled     bool
}

func (m *Manager) SecurityReport() SecurityReport {
	if m == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		GuardMaxAttempts:   m.config.Guard.MaxAttempts,
		GuardWindow:        m.config.Guard.Window,
		GuardBackend:       backendName(m.guardBackend),
		SealedStorage:      true,
		StoreBackend:       backendName(m.storeBackend),
		AutoRefreshEnabled: m.config.Tokens.AutoRefresh,
		EarlyRefresh:       m.config.Tokens.EarlyRefresh,
		MinRefreshDelay:    m.config.Tokens.MinRefreshDelay,
		RequestTimeout:     m.config.Dispatch.Timeout,
		MaxUploadBytes:     m.config.Dispatch.MaxUploadBytes,
		AuditEnabled:       m.config.Audit.Enabled,
		MetricsEnabled:     m.config.Metrics.Enabled,
	}
}

func backendName(name string) string {
	if name == "" {
		return "custom"
	}
	return name
}
