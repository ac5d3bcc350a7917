package csrf

import (
	"context"
	"crypto/subtle"

	"github.com/MrEthical07/hybridAuth/internal"
)

// Manager issues and validates tokens against a single [Slot].
type Manager struct {
	slot Slot
}

// NewManager creates a Manager. A nil slot defaults to a [MemorySlot].
func NewManager(slot Slot) *Manager {
	if slot == nil {
		slot = NewMemorySlot()
	}
	return &Manager{slot: slot}
}

// Issue generates a fresh token and stores it, replacing any pending one.
func (m *Manager) Issue(ctx context.Context) (string, error) {
	tok, err := internal.NewCSRFToken()
	if err != nil {
		return "", err
	}
	if err := m.slot.Put(ctx, tok); err != nil {
		return "", err
	}
	return tok, nil
}

// Validate consumes the pending token and reports whether presented matches it.
// Storage errors and an empty slot both yield false.
func (m *Manager) Validate(ctx context.Context, presented string) bool {
	stored, ok, err := m.slot.Take(ctx)
	if err != nil || !ok || stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
