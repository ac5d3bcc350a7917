package internaldefs

import (
	hybridAuth "github.com/MrEthical07/hybridAuth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   hybridAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   hybridAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: hybridAuth.MetricLoginSuccess, Name: "hybridauth_login_success_total", Help: "Successful magic-link logins."},
	{ID: hybridAuth.MetricLoginFailure, Name: "hybridauth_login_failure_total", Help: "Failed magic-link logins."},
	{ID: hybridAuth.MetricLoginRateLimited, Name: "hybridauth_login_rate_limited_total", Help: "Login attempts denied by the lockout limiter."},
	{ID: hybridAuth.MetricCSRFRejected, Name: "hybridauth_csrf_rejected_total", Help: "Login attempts rejected for a missing or mismatched CSRF token."},
	{ID: hybridAuth.MetricLogout, Name: "hybridauth_logout_total", Help: "Logout operations."},
	{ID: hybridAuth.MetricLogoutFailure, Name: "hybridauth_logout_failure_total", Help: "Logouts where the provider call failed."},
	{ID: hybridAuth.MetricSessionRestored, Name: "hybridauth_session_restored_total", Help: "Custodial sessions restored on initialize."},
	{ID: hybridAuth.MetricSessionExpired, Name: "hybridauth_session_expired_total", Help: "Custodial sessions dropped by periodic re-validation."},
	{ID: hybridAuth.MetricWalletConnected, Name: "hybridauth_wallet_connected_total", Help: "Successful wallet connections."},
	{ID: hybridAuth.MetricWalletConnectFailure, Name: "hybridauth_wallet_connect_failure_total", Help: "Failed wallet connections."},
	{ID: hybridAuth.MetricWalletDisconnected, Name: "hybridauth_wallet_disconnected_total", Help: "Wallet disconnects, explicit or provider-initiated."},
	{ID: hybridAuth.MetricWalletAccountChanged, Name: "hybridauth_wallet_account_changed_total", Help: "Wallet account switches reported by the provider."},
	{ID: hybridAuth.MetricWalletChainChanged, Name: "hybridauth_wallet_chain_changed_total", Help: "Wallet chain switches reported by the provider."},
	{ID: hybridAuth.MetricChainSwitchFailure, Name: "hybridauth_chain_switch_failure_total", Help: "Chain switch requests rejected by the provider."},
	{ID: hybridAuth.MetricWalletLinked, Name: "hybridauth_wallet_linked_total", Help: "Wallets linked to an email account."},
	{ID: hybridAuth.MetricWalletUnlinked, Name: "hybridauth_wallet_unlinked_total", Help: "Wallets unlinked from an email account."},
	{ID: hybridAuth.MetricCustodialClaimed, Name: "hybridauth_custodial_claimed_total", Help: "Custodial NFTs claimed into a linked wallet."},
	{ID: hybridAuth.MetricCertificateMinted, Name: "hybridauth_certificate_minted_total", Help: "Certificate mint requests accepted."},
	{ID: hybridAuth.MetricAccessDenied, Name: "hybridauth_access_denied_total", Help: "RequestAccess calls denied by the policy."},
	{ID: hybridAuth.MetricAuthPromptShown, Name: "hybridauth_auth_prompt_shown_total", Help: "Authentication prompts handed to the UI."},
	{ID: hybridAuth.MetricConversion, Name: "hybridauth_conversion_total", Help: "Prompts followed by a successful authentication."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: hybridAuth.MetricLoginLatency, Name: "hybridauth_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBounds are the upper bounds of the histogram buckets in seconds.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundSuffix are HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
