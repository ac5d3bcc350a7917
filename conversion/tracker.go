// Package conversion records soft-gate attempts and the conversions that follow
// them.
package conversion

import (
	"sync"
	"time"
)

// Intent is a gated action the user tried to perform.
type Intent string

const (
	IntentPurchase     Intent = "purchase"
	IntentSave         Intent = "save"
	IntentContact      Intent = "contact"
	IntentVerification Intent = "verification"
	IntentMint         Intent = "mint"
)

// Method is the authentication path a prompt recommends.
type Method string

const (
	MethodEmail  Method = "email"
	MethodWallet Method = "wallet"
)

// Attempt is one recorded intent.
type Attempt struct {
	Intent   Intent
	Metadata map[string]string
	At       time.Time
}

// Metrics is a point-in-time copy of the tracker counters.
type Metrics struct {
	TotalAttempts         uint64
	SuccessfulConversions uint64
	// ConversionRate is SuccessfulConversions / TotalAttempts, 0 when there are no attempts.
	ConversionRate  float64
	IntentBreakdown map[Intent]uint64
	LastAttempt     *Attempt
}

// Prompt is what the UI renders as the authentication modal.
type Prompt struct {
	Intent            Intent
	Title             string
	Message           string
	RecommendedMethod Method
}

// Tracker accumulates conversion counters for one session. The zero value is
// not usable; call [NewTracker].
type Tracker struct {
	now func() time.Time

	mu          sync.Mutex
	total       uint64
	conversions uint64
	breakdown   map[Intent]uint64
	last        *Attempt
}

// NewTracker returns an empty tracker. now defaults to time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:       now,
		breakdown: make(map[Intent]uint64),
	}
}

// TrackIntent records an attempt at a gated action.
func (t *Tracker) TrackIntent(intent Intent, metadata map[string]string) {
	a := &Attempt{
		Intent:   intent,
		Metadata: copyMetadata(metadata),
		At:       t.now(),
	}

	t.mu.Lock()
	t.total++
	t.breakdown[intent]++
	t.last = a
	t.mu.Unlock()
}

// TrackConversion records a successful authentication that followed a prompt.
func (t *Tracker) TrackConversion() {
	t.mu.Lock()
	t.conversions++
	t.mu.Unlock()
}

// Metrics returns a snapshot of the counters.
func (t *Tracker) Metrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := Metrics{
		TotalAttempts:         t.total,
		SuccessfulConversions: t.conversions,
		IntentBreakdown:       make(map[Intent]uint64, len(t.breakdown)),
	}
	if t.total > 0 {
		m.ConversionRate = float64(t.conversions) / float64(t.total)
	}
	for k, v := range t.breakdown {
		m.IntentBreakdown[k] = v
	}
	if t.last != nil {
		last := *t.last
		last.Metadata = copyMetadata(t.last.Metadata)
		m.LastAttempt = &last
	}
	return m
}

// ShowAuthModal records intent and returns the prompt to render.
func (t *Tracker) ShowAuthModal(intent Intent) Prompt {
	t.TrackIntent(intent, map[string]string{"source": "auth_modal"})
	return PromptFor(intent)
}

// PromptFor returns the copy for intent without recording anything.
func PromptFor(intent Intent) Prompt {
	p := Prompt{Intent: intent, RecommendedMethod: MethodEmail}
	switch intent {
	case IntentPurchase:
		p.Title = "Sign in to complete your purchase"
		p.Message = "Enter your email and we will send you a secure login link."
	case IntentSave:
		p.Title = "Sign in to save this piece"
		p.Message = "Keep track of the work you love across devices."
	case IntentContact:
		p.Title = "Sign in to contact the artist"
		p.Message = "The artist will reply to the email on your account."
	case IntentVerification:
		p.Title = "Connect a wallet to verify ownership"
		p.Message = "Ownership records live on chain and need a connected wallet."
		p.RecommendedMethod = MethodWallet
	case IntentMint:
		p.Title = "Connect a wallet to mint"
		p.Message = "Certificates are minted to the wallet you connect."
		p.RecommendedMethod = MethodWallet
	default:
		p.Title = "Sign in to continue"
		p.Message = "Use your email or connect a wallet."
	}
	return p
}

func copyMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
