package hybridAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/hybridAuth/backend"
	"github.com/MrEthical07/hybridAuth/identity"
	"github.com/MrEthical07/hybridAuth/wallet"
)

const (
	auditEventSessionRestored      = "session_restored"
	auditEventSessionRestoreFailed = "session_restore_failed"
	auditEventSessionExpired       = "session_expired"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventCSRFRejected         = "csrf_rejected"
	auditEventLogout               = "logout"
	auditEventWalletConnected      = "wallet_connected"
	auditEventWalletConnectFailure = "wallet_connect_failure"
	auditEventWalletDisconnected   = "wallet_disconnected"
	auditEventWalletChanged        = "wallet_changed"
	auditEventChainSwitchFailure   = "chain_switch_failure"
	auditEventWalletLinked         = "wallet_linked"
	auditEventWalletUnlinked       = "wallet_unlinked"
	auditEventCustodialClaimed     = "custodial_claimed"
	auditEventCertificateMinted    = "certificate_minted"
	auditEventAccessDenied         = "access_denied"
	auditEventAuthPrompt           = "auth_prompt"
	auditEventConversion           = "conversion"
)

// AuditErrorCode is the coarse failure class written into AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrCSRF            AuditErrorCode = "csrf_invalid"
	auditErrInvalidInput    AuditErrorCode = "invalid_input"
	auditErrTokenRejected   AuditErrorCode = "token_rejected"
	auditErrUserRejected    AuditErrorCode = "user_rejected"
	auditErrNoProvider      AuditErrorCode = "no_provider"
	auditErrNotConnected    AuditErrorCode = "not_connected"
	auditErrAccessDenied    AuditErrorCode = "access_denied"
	auditErrBackendRejected AuditErrorCode = "backend_rejected"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrCancelled       AuditErrorCode = "cancelled"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["request_id"] = rid
	}

	snap := e.Snapshot()
	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    snap.Profile.ID,
		SessionID: e.sessionID,
		AuthState: snap.State.String(),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var rpcErr *wallet.RPCError
	var statusErr *backend.StatusError

	switch {
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrCSRFTokenInvalid):
		return auditErrCSRF
	case errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidWalletAddress):
		return auditErrInvalidInput
	case errors.Is(err, identity.ErrTokenRejected):
		return auditErrTokenRejected
	case errors.As(err, &rpcErr) && rpcErr.UserRejected():
		return auditErrUserRejected
	case errors.Is(err, ErrNoProviderDetected),
		errors.Is(err, identity.ErrNoProvider):
		return auditErrNoProvider
	case errors.Is(err, ErrWalletNotConnected),
		errors.Is(err, ErrNotLoggedIn):
		return auditErrNotConnected
	case errors.Is(err, ErrEmailRequired),
		errors.Is(err, ErrWalletRequired),
		errors.Is(err, ErrHybridRequired),
		errors.Is(err, ErrWalletNotLinked):
		return auditErrAccessDenied
	case errors.As(err, &statusErr):
		return auditErrBackendRejected
	case errors.Is(err, backend.ErrUnavailable),
		errors.Is(err, ErrBackendNotConfigured):
		return auditErrUnavailable
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, wallet.ErrConnectCancelled):
		return auditErrCancelled
	default:
		return auditErrInternal
	}
}
