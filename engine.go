package hybridAuth

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/hybridAuth/backend"
	"github.com/MrEthical07/hybridAuth/conversion"
	"github.com/MrEthical07/hybridAuth/identity"
	"github.com/MrEthical07/hybridAuth/internal/csrf"
	"github.com/MrEthical07/hybridAuth/internal/rate"
	"github.com/MrEthical07/hybridAuth/wallet"
	"github.com/go-playground/validator/v10"
)

// Engine is the hybrid auth state machine. It owns the email and wallet
// identity slots and republishes the merged state after every change.
//
// Engine methods are safe for concurrent use. Construct it with [New].
type Engine struct {
	config    Config
	policy    *AccessPolicy
	identity  *identity.Client
	wallet    *wallet.Connector
	limiter   rate.Limiter
	csrf      *csrf.Manager
	backend   *backend.Client
	tracker   *conversion.Tracker
	audit     *auditDispatcher
	metrics   *Metrics
	validate  *validator.Validate
	sessionID string
	now       func() time.Time

	// schedule arms the session refresh timer. Tests replace it.
	schedule func(d time.Duration, fn func()) (stop func() bool)

	mu            sync.Mutex
	email         *EmailIdentity
	walletIdent   *WalletIdentity
	walletLinked  bool
	refreshGen    uint64
	refreshStop   func() bool
	continuations []continuation
	closed        bool

	snapshot atomic.Pointer[Snapshot]
	lastErr  atomic.Pointer[Error]

	subsMu sync.Mutex
	subs   map[uint64]chan Snapshot
	nextID uint64
}

func scheduleAfter(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Initialize restores an existing custodial session and an already-authorized
// wallet. It never fails: problems are recorded in the error slot with code
// AUTH_ERROR and the affected slot stays empty.
func (e *Engine) Initialize(ctx context.Context) Snapshot {
	if e.isClosed() || !e.config.Session.RestoreOnInitialize {
		return e.Snapshot()
	}

	ident, err := e.identity.Restore(ctx)
	switch {
	case err != nil:
		e.recordError(newError(CodeAuth, err))
		e.emitAudit(ctx, auditEventSessionRestoreFailed, false, err, nil)
	case ident != nil:
		e.mu.Lock()
		if !e.closed {
			e.email = ident
			e.publishLocked()
			e.startRefreshLocked()
		}
		e.mu.Unlock()
		e.metricInc(MetricSessionRestored)
		e.emitAudit(ctx, auditEventSessionRestored, true, nil, nil)
	}

	if e.wallet.ProviderDetected() {
		w, err := e.wallet.Restore(ctx)
		switch {
		case err != nil:
			e.recordError(newError(CodeAuth, err))
		case w != nil:
			e.metricInc(MetricWalletConnected)
			e.emitAudit(ctx, auditEventWalletConnected, true, nil, func() map[string]string {
				return map[string]string{"chain_id": wallet.FormatChainID(w.ChainID), "restored": "true"}
			})
		}
	}

	return e.Snapshot()
}

// State returns the current merged state.
func (e *Engine) State() AuthState {
	return e.Snapshot().State
}

// Profile returns the profile derived for the current state.
func (e *Engine) Profile() UserProfile {
	return e.Snapshot().Profile
}

// Snapshot returns state and profile from the same recompute.
func (e *Engine) Snapshot() Snapshot {
	if s := e.snapshot.Load(); s != nil {
		return *s
	}
	return Snapshot{
		State:   StateAnonymous,
		Profile: BuildProfile(e.policy, StateAnonymous, nil, nil),
	}
}

// EmailIdentity returns a copy of the email slot, or nil.
func (e *Engine) EmailIdentity() *EmailIdentity {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.email == nil {
		return nil
	}
	out := *e.email
	return &out
}

// WalletIdentity returns a copy of the wallet slot, or nil.
func (e *Engine) WalletIdentity() *WalletIdentity {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.walletIdent == nil {
		return nil
	}
	out := *e.walletIdent
	return &out
}

// Subscribe returns a channel that receives every published snapshot. Slow
// readers only see the latest one. The returned func unsubscribes and closes
// the channel.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	e.subsMu.Lock()
	if e.subs == nil {
		e.subs = make(map[uint64]chan Snapshot)
	}
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	e.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subsMu.Lock()
			if _, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(ch)
			}
			e.subsMu.Unlock()
		})
	}
}

// LastError returns the most recent recorded failure, or nil.
func (e *Engine) LastError() *Error {
	return e.lastErr.Load()
}

func (e *Engine) ClearError() {
	e.lastErr.Store(nil)
}

func (e *Engine) recordError(err *Error) *Error {
	e.lastErr.Store(err)
	return err
}

// publishLocked rebuilds the snapshot from the slots. Callers hold e.mu.
func (e *Engine) publishLocked() Snapshot {
	state := DeriveState(e.email, e.walletIdent)
	if !state.HasEmail() || !state.HasWallet() {
		e.walletLinked = false
	}
	profile := BuildProfile(e.policy, state, e.email, e.walletIdent)
	profile.WalletLinked = e.walletLinked

	snap := &Snapshot{State: state, Profile: profile}
	e.snapshot.Store(snap)
	e.broadcast(*snap)
	return *snap
}

func (e *Engine) broadcast(s Snapshot) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	for _, ch := range e.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// onWalletError records provider events the connector had to discard.
func (e *Engine) onWalletError(err error) {
	if e.isClosed() {
		return
	}
	log.Printf("hybridAuth: wallet event ignored: %v", err)
	e.emitAudit(context.Background(), auditEventWalletChanged, false, err, nil)
	e.recordError(newError(CodeWallet, err))
}

// onWalletChange mirrors the connector into the wallet slot.
func (e *Engine) onWalletChange(next *wallet.Identity) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	prev := e.walletIdent
	if prev != nil && next != nil && !wallet.SameAddress(prev.Address, next.Address) {
		e.walletLinked = false
	}
	e.walletIdent = next
	e.publishLocked()
	e.mu.Unlock()

	ctx := context.Background()
	switch {
	case prev != nil && next == nil:
		e.metricInc(MetricWalletDisconnected)
		e.emitAudit(ctx, auditEventWalletDisconnected, true, nil, nil)
	case prev != nil && next != nil && !wallet.SameAddress(prev.Address, next.Address):
		e.metricInc(MetricWalletAccountChanged)
		e.emitAudit(ctx, auditEventWalletChanged, true, nil, func() map[string]string {
			return map[string]string{"change": "account"}
		})
	case prev != nil && next != nil && prev.ChainID != next.ChainID:
		e.metricInc(MetricWalletChainChanged)
		e.emitAudit(ctx, auditEventWalletChanged, true, nil, func() map[string]string {
			return map[string]string{"change": "chain", "chain_id": wallet.FormatChainID(next.ChainID)}
		})
	}
}

/*
====================================
SESSION REFRESH
====================================
*/

// startRefreshLocked (re)arms the refresh timer. Callers hold e.mu.
func (e *Engine) startRefreshLocked() {
	e.stopRefreshLocked()
	interval := e.config.Session.RefreshInterval
	if interval <= 0 || e.email == nil {
		return
	}
	gen := e.refreshGen
	e.refreshStop = e.schedule(interval, func() {
		e.refreshSession(gen)
	})
}

// stopRefreshLocked cancels the timer and invalidates any callback already
// running. Callers hold e.mu.
func (e *Engine) stopRefreshLocked() {
	e.refreshGen++
	if e.refreshStop != nil {
		e.refreshStop()
		e.refreshStop = nil
	}
}

func (e *Engine) refreshSession(gen uint64) {
	e.mu.Lock()
	if e.closed || gen != e.refreshGen {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	ctx := context.Background()
	if timeout := e.config.Backend.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	valid, err := e.identity.StillValid(ctx)

	e.mu.Lock()
	if e.closed || gen != e.refreshGen {
		e.mu.Unlock()
		return
	}
	if err != nil {
		log.Print("hybridAuth: session refresh failed: ", err)
		e.recordError(newError(CodeAuth, err))
		e.startRefreshLocked()
		e.mu.Unlock()
		return
	}
	if valid {
		e.startRefreshLocked()
		e.mu.Unlock()
		return
	}

	e.email = nil
	e.stopRefreshLocked()
	e.publishLocked()
	e.mu.Unlock()

	e.recordError(newError(CodeAuth, identity.ErrNotLoggedIn))
	e.metricInc(MetricSessionExpired)
	e.emitAudit(ctx, auditEventSessionExpired, false, ErrNotLoggedIn, nil)
}

/*
====================================
CONTINUATIONS
====================================
*/

// continuation is a ShowAuthModal callback waiting for a state that grants
// its intent.
type continuation struct {
	intent conversion.Intent
	fn     func(Snapshot)
}

// ready reports whether state unlocks the gated action. Intents that name no
// known resource are released by any successful authentication.
func (c continuation) ready(p *AccessPolicy, state AuthState) bool {
	if !p.Known(string(c.intent)) {
		return true
	}
	return p.Allows(state, string(c.intent))
}

func (e *Engine) addContinuation(intent conversion.Intent, fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.continuations = append(e.continuations, continuation{intent: intent, fn: fn})
}

// fireContinuations runs, once and in registration order, every pending
// continuation whose intent snap now grants. The rest stay queued. One
// conversion is counted when any ran.
func (e *Engine) fireContinuations(snap Snapshot) {
	e.mu.Lock()
	var ready []continuation
	kept := e.continuations[:0]
	for _, c := range e.continuations {
		if c.ready(e.policy, snap.State) {
			ready = append(ready, c)
		} else {
			kept = append(kept, c)
		}
	}
	e.continuations = kept
	e.mu.Unlock()

	if len(ready) == 0 {
		return
	}

	e.tracker.TrackConversion()
	e.metricInc(MetricConversion)
	e.emitAudit(context.Background(), auditEventConversion, true, nil, func() map[string]string {
		return map[string]string{"intent": string(ready[0].intent)}
	})

	for _, c := range ready {
		c.fn(snap)
	}
}

/*
====================================
LIFECYCLE / OBSERVABILITY
====================================
*/

// Close cancels the refresh timer, disconnects the wallet and flushes audit
// events. Pending continuations are dropped. Close is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.stopRefreshLocked()
	e.continuations = nil
	e.mu.Unlock()

	e.wallet.Disconnect()

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.subsMu.Lock()
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
	e.subsMu.Unlock()

	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// ConversionMetrics returns the soft-gate attempt and conversion counters.
func (e *Engine) ConversionMetrics() conversion.Metrics {
	return e.tracker.Metrics()
}

// AuditDropped reports how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) closedError(code ErrorCode) error {
	return e.recordError(newError(code, ErrEngineClosed))
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
