package internal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

// CSRFTokenBytes is the amount of entropy behind every anti-forgery token (256 bits).
const CSRFTokenBytes = 32

var errShortRead = errors.New("short random read")

// NewCSRFToken returns CSRFTokenBytes random bytes, hex encoded.
func NewCSRFToken() (string, error) {
	var raw [CSRFTokenBytes]byte
	n, err := rand.Read(raw[:])
	if err != nil {
		return "", err
	}
	if n != len(raw) {
		return "", errShortRead
	}
	return hex.EncodeToString(raw[:]), nil
}

// NewSessionID returns a random identifier scoping per-session state
// (CSRF slot keys, audit events).
func NewSessionID() string {
	return uuid.NewString()
}
