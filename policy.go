package hybridAuth

import (
	"fmt"

	"github.com/MrEthical07/hybridAuth/permission"
)

// Resources checked by the access policy.
const (
	ResourceBrowse   = "browse"
	ResourcePurchase = "purchase"
	ResourceMint     = "mint"
	ResourceWeb3     = "web3"
)

// Gate aliases used by the storefront. Each maps to one of the resources above.
const (
	ResourceSave         = "save"
	ResourceContact      = "contact"
	ResourceVerification = "verification"
)

var resourceAliases = map[string]string{
	ResourceSave:         ResourcePurchase,
	ResourceContact:      ResourcePurchase,
	ResourceVerification: ResourceWeb3,
}

// AccessError is returned by RequestAccess when the current state does not
// grant the resource. Required is ErrEmailRequired or ErrWalletRequired.
type AccessError struct {
	Resource string
	Required error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("access to %s denied: %v", e.Resource, e.Required)
}

func (e *AccessError) Unwrap() error {
	return e.Required
}

// AccessPolicy maps each AuthState to a permission mask.
type AccessPolicy struct {
	registry *permission.Registry
	roles    *permission.RoleManager
}

// DefaultPolicy returns the storefront policy:
//
//	anonymous: browse
//	email:     browse, purchase
//	wallet:    browse, purchase, mint, web3
//	hybrid:    browse, purchase, mint, web3
func DefaultPolicy() *AccessPolicy {
	p, err := NewAccessPolicy(map[AuthState][]string{
		StateAnonymous: {ResourceBrowse},
		StateEmail:     {ResourceBrowse, ResourcePurchase},
		StateWallet:    {ResourceBrowse, ResourcePurchase, ResourceMint, ResourceWeb3},
		StateHybrid:    {ResourceBrowse, ResourcePurchase, ResourceMint, ResourceWeb3},
	})
	if err != nil {
		panic(err)
	}
	return p
}

// NewAccessPolicy builds a policy from per-state grants. Every grant must be
// one of the four base resources.
func NewAccessPolicy(grants map[AuthState][]string) (*AccessPolicy, error) {
	registry := permission.NewRegistry()
	for _, r := range []string{ResourceBrowse, ResourcePurchase, ResourceMint, ResourceWeb3} {
		if _, err := registry.Register(r); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	roles := permission.NewRoleManager(registry)
	for _, state := range []AuthState{StateAnonymous, StateEmail, StateWallet, StateHybrid} {
		if err := roles.RegisterRole(state.String(), grants[state]); err != nil {
			return nil, fmt.Errorf("state %s: %w", state, err)
		}
	}
	roles.Freeze()

	return &AccessPolicy{registry: registry, roles: roles}, nil
}

// Allows reports whether state grants resource. Unknown resources are denied.
func (p *AccessPolicy) Allows(state AuthState, resource string) bool {
	return p.roles.Allows(state.String(), canonicalResource(resource))
}

// Known reports whether resource or its alias is registered.
func (p *AccessPolicy) Known(resource string) bool {
	_, ok := p.registry.Bit(canonicalResource(resource))
	return ok
}

// PermissionsFor returns the permission set of state.
func (p *AccessPolicy) PermissionsFor(state AuthState) Permissions {
	return Permissions{
		CanBrowse:     p.Allows(state, ResourceBrowse),
		CanPurchase:   p.Allows(state, ResourcePurchase),
		CanMintNFT:    p.Allows(state, ResourceMint),
		CanAccessWeb3: p.Allows(state, ResourceWeb3),
	}
}

// Granted lists the resources state grants.
func (p *AccessPolicy) Granted(state AuthState) []string {
	mask, _ := p.roles.GetMask(state.String())
	return p.registry.Names(mask)
}

// Check looks resource up in an already-derived permission set.
func Check(perms Permissions, resource string) bool {
	switch canonicalResource(resource) {
	case ResourceBrowse:
		return perms.CanBrowse
	case ResourcePurchase:
		return perms.CanPurchase
	case ResourceMint:
		return perms.CanMintNFT
	case ResourceWeb3:
		return perms.CanAccessWeb3
	}
	return false
}

// requiredUpgrade names the cheapest upgrade that grants resource from state.
func (p *AccessPolicy) requiredUpgrade(state AuthState, resource string) error {
	if !state.HasEmail() && !state.HasWallet() && p.Allows(StateEmail, resource) {
		return ErrEmailRequired
	}
	if !state.HasWallet() {
		return ErrWalletRequired
	}
	return ErrEmailRequired
}

func canonicalResource(resource string) string {
	if target, ok := resourceAliases[resource]; ok {
		return target
	}
	return resource
}
