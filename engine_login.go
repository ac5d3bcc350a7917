package hybridAuth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MrEthical07/hybridAuth/internal/rate"
)

// IssueCSRFToken generates the single-use token the next Login must present.
// Issuing again replaces the pending token.
func (e *Engine) IssueCSRFToken(ctx context.Context) (string, error) {
	if e.isClosed() {
		return "", e.closedError(CodeLogin)
	}
	tok, err := e.csrf.Issue(ctx)
	if err != nil {
		return "", e.recordError(newError(CodeLogin, err))
	}
	return tok, nil
}

// Login runs the magic-link flow for email.
//
// The attempt is counted against the email before anything else, then the
// CSRF token is consumed, then the provider and the server validate the
// login. Only a fully validated login fills the email slot. Failures return
// an *Error with code LOGIN_ERROR and leave the session untouched.
func (e *Engine) Login(ctx context.Context, email, csrfToken string) (Snapshot, error) {
	start := time.Now()

	if e.isClosed() {
		return e.Snapshot(), e.closedError(CodeLogin)
	}

	normalized, err := e.identity.ValidateEmail(email)
	if err != nil {
		return e.Snapshot(), e.loginFailure(ctx, MetricLoginFailure, auditEventLoginFailure, err)
	}

	if err := e.limiter.CheckAndRecordAttempt(ctx, normalized); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			err = fmt.Errorf("%w: %w", ErrLoginRateLimited, err)
			return e.Snapshot(), e.loginFailure(ctx, MetricLoginRateLimited, auditEventLoginRateLimited, err)
		}
		return e.Snapshot(), e.loginFailure(ctx, MetricLoginFailure, auditEventLoginFailure, err)
	}

	if e.config.Security.CSRFProtection && !e.csrf.Validate(ctx, csrfToken) {
		return e.Snapshot(), e.loginFailure(ctx, MetricCSRFRejected, auditEventCSRFRejected, ErrCSRFTokenInvalid)
	}

	ident, err := e.identity.Login(ctx, normalized)
	if err != nil {
		return e.Snapshot(), e.loginFailure(ctx, MetricLoginFailure, auditEventLoginFailure, err)
	}
	// The caller gave up while the provider was finishing; do not apply
	// a session nobody is waiting for.
	if err := ctx.Err(); err != nil {
		return e.Snapshot(), e.loginFailure(ctx, MetricLoginFailure, auditEventLoginFailure, err)
	}

	if e.config.Security.ClearAttemptsOnLogin {
		if err := e.limiter.Clear(ctx, normalized); err != nil {
			log.Print("hybridAuth: clear login attempts: ", err)
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return e.Snapshot(), e.closedError(CodeLogin)
	}
	e.email = ident
	snap := e.publishLocked()
	e.startRefreshLocked()
	e.mu.Unlock()

	e.metricInc(MetricLoginSuccess)
	if e.metrics != nil {
		e.metrics.Observe(MetricLoginLatency, time.Since(start))
	}
	e.emitAudit(ctx, auditEventLoginSuccess, true, nil, nil)
	e.fireContinuations(snap)

	return snap, nil
}

func (e *Engine) loginFailure(ctx context.Context, metric MetricID, event string, err error) error {
	if !isCancellation(err) {
		e.metricInc(metric)
	}
	e.emitAudit(ctx, event, false, err, nil)
	return e.recordError(newError(CodeLogin, err))
}

// Logout ends the custodial session. The email slot is cleared and the
// refresh timer cancelled even when the provider call fails; that failure is
// returned with code LOGOUT_ERROR. A connected wallet stays connected.
func (e *Engine) Logout(ctx context.Context) error {
	err := e.identity.Logout(ctx)

	e.mu.Lock()
	e.email = nil
	e.stopRefreshLocked()
	if !e.closed {
		e.publishLocked()
	}
	e.mu.Unlock()

	if err != nil {
		e.metricInc(MetricLogoutFailure)
		e.emitAudit(ctx, auditEventLogout, false, err, nil)
		return e.recordError(newError(CodeLogout, err))
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, nil, nil)
	return nil
}
