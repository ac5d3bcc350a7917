package hybridAuth

import (
	"context"
	"fmt"
	"slices"

	"github.com/MrEthical07/hybridAuth/backend"
	"github.com/MrEthical07/hybridAuth/wallet"
)

// ConnectWallet prompts the wallet provider for an account. An empty kind
// uses Config.Wallet.DefaultConnector. A successful connect counts as an
// authentication and releases pending ShowAuthModal continuations.
func (e *Engine) ConnectWallet(ctx context.Context, kind wallet.ConnectorKind) (Snapshot, error) {
	if e.isClosed() {
		return e.Snapshot(), e.closedError(CodeWallet)
	}
	if kind == "" {
		kind = wallet.ConnectorKind(e.config.Wallet.DefaultConnector)
	}
	if !kind.Valid() {
		return e.Snapshot(), e.walletFailure(ctx, MetricWalletConnectFailure, auditEventWalletConnectFailure,
			fmt.Errorf("%w: %q", ErrUnknownConnector, kind))
	}

	ident, err := e.wallet.Connect(ctx, kind)
	if err != nil {
		return e.Snapshot(), e.walletFailure(ctx, MetricWalletConnectFailure, auditEventWalletConnectFailure, err)
	}
	if err := e.validate.Var(ident.Address, "required,eth_addr"); err != nil {
		e.wallet.Disconnect()
		return e.Snapshot(), e.walletFailure(ctx, MetricWalletConnectFailure, auditEventWalletConnectFailure,
			fmt.Errorf("%w: %q", ErrInvalidWalletAddress, ident.Address))
	}

	// The connector delivers its own commit before Connect returns, so a
	// snapshot without a wallet means a newer event already dropped it.
	snap := e.Snapshot()
	if !snap.State.HasWallet() {
		return snap, e.walletFailure(ctx, MetricWalletConnectFailure, auditEventWalletConnectFailure, wallet.ErrAccountsRevoked)
	}

	e.metricInc(MetricWalletConnected)
	e.emitAudit(ctx, auditEventWalletConnected, true, nil, func() map[string]string {
		return map[string]string{
			"connector": string(ident.ConnectorKind),
			"chain_id":  wallet.FormatChainID(ident.ChainID),
		}
	})
	e.fireContinuations(snap)

	return snap, nil
}

// DisconnectWallet forgets the wallet. The email slot is kept, so Hybrid
// becomes Email and Wallet becomes Anonymous.
func (e *Engine) DisconnectWallet() Snapshot {
	e.wallet.Disconnect()
	return e.Snapshot()
}

// SwitchChain asks the wallet to change network. The wallet slot keeps the
// old chain until the provider confirms the switch.
func (e *Engine) SwitchChain(ctx context.Context, chainID int64) error {
	if e.isClosed() {
		return e.closedError(CodeWallet)
	}
	if allowed := e.config.Wallet.AllowedChains; len(allowed) > 0 && !slices.Contains(allowed, chainID) {
		return e.walletFailure(ctx, MetricChainSwitchFailure, auditEventChainSwitchFailure,
			fmt.Errorf("%w: %d", ErrChainNotAllowed, chainID))
	}
	if err := e.wallet.SwitchChain(ctx, chainID); err != nil {
		return e.walletFailure(ctx, MetricChainSwitchFailure, auditEventChainSwitchFailure, err)
	}
	return nil
}

// LinkWallet registers the connected wallet with the custodial account. It
// needs both identities; the profile is marked linked only after the server
// accepts the link.
func (e *Engine) LinkWallet(ctx context.Context) (Snapshot, error) {
	if e.isClosed() {
		return e.Snapshot(), e.closedError(CodeWallet)
	}
	email, w := e.EmailIdentity(), e.WalletIdentity()
	if email == nil || w == nil {
		return e.Snapshot(), e.walletFailure(ctx, metricNone, auditEventWalletLinked, ErrHybridRequired)
	}
	if e.backend == nil {
		return e.Snapshot(), e.walletFailure(ctx, metricNone, auditEventWalletLinked, ErrBackendNotConfigured)
	}

	bearer, err := e.identity.BearerToken(ctx)
	if err != nil {
		return e.Snapshot(), e.walletFailure(ctx, metricNone, auditEventWalletLinked, err)
	}
	if err := e.backend.LinkWallet(ctx, bearer, w.Address, w.ChainID); err != nil {
		return e.Snapshot(), e.walletFailure(ctx, metricNone, auditEventWalletLinked, err)
	}

	e.mu.Lock()
	if e.email == nil || e.walletIdent == nil || !wallet.SameAddress(e.walletIdent.Address, w.Address) {
		// Logout, disconnect or an account switch landed while the request was in flight.
		e.mu.Unlock()
		return e.Snapshot(), e.walletFailure(ctx, metricNone, auditEventWalletLinked, ErrHybridRequired)
	}
	e.walletLinked = true
	snap := e.publishLocked()
	e.mu.Unlock()

	e.metricInc(MetricWalletLinked)
	e.emitAudit(ctx, auditEventWalletLinked, true, nil, func() map[string]string {
		return map[string]string{"chain_id": wallet.FormatChainID(w.ChainID)}
	})
	return snap, nil
}

// UnlinkWallet removes the server-side link and disconnects the wallet,
// moving Hybrid back to Email.
func (e *Engine) UnlinkWallet(ctx context.Context) (Snapshot, error) {
	if e.isClosed() {
		return e.Snapshot(), e.closedError(CodeWallet)
	}
	if !e.Snapshot().Profile.WalletLinked {
		return e.Snapshot(), e.walletFailure(ctx, metricNone, auditEventWalletUnlinked, ErrWalletNotLinked)
	}
	if e.backend == nil {
		return e.Snapshot(), e.walletFailure(ctx, metricNone, auditEventWalletUnlinked, ErrBackendNotConfigured)
	}

	bearer, err := e.identity.BearerToken(ctx)
	if err != nil {
		return e.Snapshot(), e.walletFailure(ctx, metricNone, auditEventWalletUnlinked, err)
	}
	if err := e.backend.UnlinkWallet(ctx, bearer); err != nil {
		return e.Snapshot(), e.walletFailure(ctx, metricNone, auditEventWalletUnlinked, err)
	}

	e.mu.Lock()
	e.walletLinked = false
	e.mu.Unlock()
	e.wallet.Disconnect()

	e.metricInc(MetricWalletUnlinked)
	e.emitAudit(ctx, auditEventWalletUnlinked, true, nil, nil)
	return e.Snapshot(), nil
}

// ClaimCustodialNFT moves the custodial NFT to the linked wallet. It needs
// the Hybrid state with a linked wallet.
func (e *Engine) ClaimCustodialNFT(ctx context.Context) (*backend.ClaimResponse, error) {
	if e.isClosed() {
		return nil, e.closedError(CodeWallet)
	}
	snap := e.Snapshot()
	if snap.State != StateHybrid {
		return nil, e.walletFailure(ctx, metricNone, auditEventCustodialClaimed, ErrHybridRequired)
	}
	if !snap.Profile.WalletLinked {
		return nil, e.walletFailure(ctx, metricNone, auditEventCustodialClaimed, ErrWalletNotLinked)
	}
	if e.backend == nil {
		return nil, e.walletFailure(ctx, metricNone, auditEventCustodialClaimed, ErrBackendNotConfigured)
	}

	bearer, err := e.identity.BearerToken(ctx)
	if err != nil {
		return nil, e.walletFailure(ctx, metricNone, auditEventCustodialClaimed, err)
	}
	resp, err := e.backend.ClaimCustodial(ctx, bearer, snap.Profile.WalletAddress)
	if err != nil {
		return nil, e.walletFailure(ctx, metricNone, auditEventCustodialClaimed, err)
	}

	e.metricInc(MetricCustodialClaimed)
	e.emitAudit(ctx, auditEventCustodialClaimed, true, nil, func() map[string]string {
		return map[string]string{"claim_id": resp.ClaimID}
	})
	return resp, nil
}

// MintCertificate requests a certificate of authenticity for artworkID into
// the connected wallet. It needs mint access and a custodial session, since
// the server records certificates against the account.
func (e *Engine) MintCertificate(ctx context.Context, artworkID string) (*backend.MintResponse, error) {
	if e.isClosed() {
		return nil, e.closedError(CodeWallet)
	}
	if err := e.RequestAccess(ctx, ResourceMint); err != nil {
		return nil, e.recordError(newError(CodeWallet, err))
	}
	if e.backend == nil {
		return nil, e.walletFailure(ctx, metricNone, auditEventCertificateMinted, ErrBackendNotConfigured)
	}

	bearer, err := e.identity.BearerToken(ctx)
	if err != nil {
		return nil, e.walletFailure(ctx, metricNone, auditEventCertificateMinted, err)
	}
	resp, err := e.backend.MintCertificate(ctx, bearer, artworkID, e.Snapshot().Profile.WalletAddress)
	if err != nil {
		return nil, e.walletFailure(ctx, metricNone, auditEventCertificateMinted, err)
	}

	e.metricInc(MetricCertificateMinted)
	e.emitAudit(ctx, auditEventCertificateMinted, true, nil, func() map[string]string {
		return map[string]string{"artwork_id": artworkID, "certificate_id": resp.CertificateID}
	})
	return resp, nil
}

func (e *Engine) walletFailure(ctx context.Context, metric MetricID, event string, err error) error {
	if metric != metricNone && !isCancellation(err) {
		e.metricInc(metric)
	}
	e.emitAudit(ctx, event, false, err, nil)
	return e.recordError(newError(CodeWallet, err))
}
