package hybridAuth

import (
	"context"
	"fmt"

	"github.com/MrEthical07/hybridAuth/conversion"
)

// CheckAccess reports whether the current profile grants resource. Unknown
// resources are denied.
func (e *Engine) CheckAccess(resource string) bool {
	return Check(e.Snapshot().Profile.Permissions, resource)
}

// RequestAccess is CheckAccess returning why access was denied. The error is
// an *AccessError naming the cheapest upgrade; match it with
// errors.Is(err, ErrEmailRequired) or errors.Is(err, ErrWalletRequired).
func (e *Engine) RequestAccess(ctx context.Context, resource string) error {
	if !e.policy.Known(resource) {
		return fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}

	snap := e.Snapshot()
	if Check(snap.Profile.Permissions, resource) {
		return nil
	}

	err := &AccessError{
		Resource: resource,
		Required: e.policy.requiredUpgrade(snap.State, resource),
	}
	e.metricInc(MetricAccessDenied)
	e.emitAudit(ctx, auditEventAccessDenied, false, err, func() map[string]string {
		return map[string]string{"resource": resource}
	})
	return err
}

// ShowAuthModal records a soft-gate attempt for intent and returns the prompt
// to render. onSuccess, when non-nil, runs once after the first successful
// login or wallet connect whose resulting state grants intent, with that
// snapshot; that run also counts as a conversion. Close drops continuations
// that never ran.
func (e *Engine) ShowAuthModal(ctx context.Context, intent conversion.Intent, onSuccess func(Snapshot)) conversion.Prompt {
	prompt := e.tracker.ShowAuthModal(intent)
	if onSuccess != nil && !e.isClosed() {
		e.addContinuation(intent, onSuccess)
	}

	e.metricInc(MetricAuthPromptShown)
	e.emitAudit(ctx, auditEventAuthPrompt, true, nil, func() map[string]string {
		return map[string]string{
			"intent":             string(intent),
			"recommended_method": string(prompt.RecommendedMethod),
		}
	})
	return prompt
}

// TrackIntent records a gated action without showing a prompt.
func (e *Engine) TrackIntent(intent conversion.Intent, metadata map[string]string) {
	e.tracker.TrackIntent(intent, metadata)
}
