package authgate

import (
	"context"
	"time"
)

// scheduleRefreshLocked arms the single-shot refresh timer for the live
// token pair. Callers hold mu. Any previously armed timer is cancelled
// first, so at most one refresh is ever pending.
func (m *Manager) scheduleRefreshLocked() {
	m.stopRefreshLocked()
	if !m.config.Tokens.AutoRefresh || m.closed || m.tokens == nil {
		return
	}

	delay := m.tokens.ExpiresAt.Sub(m.now()) - m.config.Tokens.EarlyRefresh
	if delay < m.config.Tokens.MinRefreshDelay {
		// The floor stops a near-expired pair from spinning the timer.
		delay = m.config.Tokens.MinRefreshDelay
	}

	m.refreshTimer = time.AfterFunc(delay, m.refreshNow)
}

func (m *Manager) stopRefreshLocked() {
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
}

func (m *Manager) refreshNow() {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.Dispatch.Timeout)
	defer cancel()
	_ = m.Refresh(ctx)
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Refresh(ctx context.Context) error {
	if m == nil || m.auth == nil {
		return ErrManagerNotReady
	}

	m.mu.RLock()
	if m.closed || m.tokens == nil {
		m.mu.RUnlock()
		return ErrAuthenticationRequired
	}
	refreshToken := m.tokens.RefreshToken
	m.mu.RUnlock()

	identity, tokens, err := m.auth.Refresh(ctx, refreshToken)
	if err != nil {
		m.metricInc(MetricRefreshFailure)
		m.emitAudit(ctx, auditEventRefreshFailure, false, "", "", err, nil)
		// A refresh token the provider no longer honors means the session
		// is gone; drop local state rather than retry against a dead pair.
		// The drop is conditional on the same token the refresh started
		// from, so a pair installed by a newer login survives.
		m.dropSession(context.WithoutCancel(ctx), refreshToken)
		return err
	}

	// Another login or logout may have replaced the pair while the
	// provider round-trip was in flight; its result wins.
	if !m.swapSession(ctx, identity, tokens, true, refreshToken) {
		return nil
	}

	m.metricInc(MetricRefreshSuccess)
	m.emitAudit(ctx, auditEventRefreshSuccess, true, identity.ID, identity.Email, nil, nil)
	return nil
}
