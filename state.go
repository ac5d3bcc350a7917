package hybridAuth

import (
	"github.com/MrEthical07/hybridAuth/identity"
	"github.com/MrEthical07/hybridAuth/wallet"
)

// EmailIdentity is the custodial identity held in the email slot.
type EmailIdentity = identity.Identity

// WalletIdentity is the connected wallet held in the wallet slot.
type WalletIdentity = wallet.Identity

// AuthState is the merged authentication state.
type AuthState uint8

const (
	StateAnonymous AuthState = iota
	StateEmail
	StateWallet
	StateHybrid
)

func (s AuthState) String() string {
	switch s {
	case StateEmail:
		return "email"
	case StateWallet:
		return "wallet"
	case StateHybrid:
		return "hybrid"
	default:
		return "anonymous"
	}
}

// HasEmail reports whether the state includes an email identity.
func (s AuthState) HasEmail() bool {
	return s == StateEmail || s == StateHybrid
}

// HasWallet reports whether the state includes a wallet identity.
func (s AuthState) HasWallet() bool {
	return s == StateWallet || s == StateHybrid
}

// DeriveState maps the two identity slots to an AuthState.
func DeriveState(email *EmailIdentity, w *WalletIdentity) AuthState {
	switch {
	case email != nil && w != nil:
		return StateHybrid
	case email != nil:
		return StateEmail
	case w != nil:
		return StateWallet
	default:
		return StateAnonymous
	}
}

// Permissions is the derived permission set.
type Permissions struct {
	CanBrowse     bool `json:"canBrowse"`
	CanPurchase   bool `json:"canPurchase"`
	CanMintNFT    bool `json:"canMintNFT"`
	CanAccessWeb3 bool `json:"canAccessWeb3"`
}

// Preferences are the state-dependent UI defaults.
type Preferences struct {
	Currency      string `json:"currency"`
	PaymentMethod string `json:"paymentMethod"`
	Web3Features  bool   `json:"web3Features"`
}

// UserProfile is derived from the identity slots and never mutated directly.
type UserProfile struct {
	ID            string      `json:"id"`
	Email         string      `json:"email,omitempty"`
	WalletAddress string      `json:"walletAddress,omitempty"`
	ChainID       int64       `json:"chainId,omitempty"`
	AuthState     AuthState   `json:"authState"`
	WalletLinked  bool        `json:"walletLinked"`
	Permissions   Permissions `json:"permissions"`
	Preferences   Preferences `json:"preferences"`
}

// Snapshot is the state and profile published together after a recompute.
type Snapshot struct {
	State   AuthState
	Profile UserProfile
}

const anonymousID = "anonymous"

// BuildProfile derives the profile for state from the identity slots, using
// policy for the permission set. A nil policy uses [DefaultPolicy].
func BuildProfile(policy *AccessPolicy, state AuthState, email *EmailIdentity, w *WalletIdentity) UserProfile {
	if policy == nil {
		policy = DefaultPolicy()
	}

	p := UserProfile{
		ID:          anonymousID,
		AuthState:   state,
		Permissions: policy.PermissionsFor(state),
		Preferences: preferencesFor(state),
	}
	if w != nil {
		p.ID = w.Address
		p.WalletAddress = w.Address
		p.ChainID = w.ChainID
	}
	if email != nil {
		p.ID = email.Issuer
		p.Email = email.Email
	}
	return p
}

func preferencesFor(state AuthState) Preferences {
	switch state {
	case StateWallet:
		return Preferences{Currency: "ETH", PaymentMethod: "crypto", Web3Features: true}
	case StateHybrid:
		return Preferences{Currency: "USD", PaymentMethod: "hybrid", Web3Features: true}
	default:
		return Preferences{Currency: "USD", PaymentMethod: "card", Web3Features: false}
	}
}
