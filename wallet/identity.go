package wallet

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// ConnectorKind names the wallet connector the user picked.
type ConnectorKind string

const (
	KindInjected      ConnectorKind = "injected"
	KindWalletConnect ConnectorKind = "walletconnect"
	KindCoinbase      ConnectorKind = "coinbase"
)

// Valid reports whether k is a known connector kind.
func (k ConnectorKind) Valid() bool {
	switch k {
	case KindInjected, KindWalletConnect, KindCoinbase:
		return true
	}
	return false
}

// Identity is the connected wallet. Values handed out by [Connector] are
// copies; the connector replaces its own copy when events arrive.
type Identity struct {
	Address       string
	ChainID       int64
	ConnectorKind ConnectorKind
	// Balance is the native balance in ether, empty when the provider did not report one.
	Balance string
}

// ChecksumAddress returns the EIP-55 mixed-case form of a 20-byte hex address.
func ChecksumAddress(address string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	if len(raw) != 40 {
		return "", fmt.Errorf("%w: address %q", ErrMalformedResponse, address)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("%w: address %q", ErrMalformedResponse, address)
	}

	lower := strings.ToLower(raw)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := hex.EncodeToString(h.Sum(nil))

	out := make([]byte, 0, 42)
	out = append(out, '0', 'x')
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out), nil
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ParseChainID decodes a hex ("0x1") or decimal chain id.
func ParseChainID(v string) (int64, error) {
	v = strings.TrimSpace(v)
	var (
		id  int64
		err error
	)
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		id, err = strconv.ParseInt(v[2:], 16, 64)
	} else {
		id, err = strconv.ParseInt(v, 10, 64)
	}
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: chain id %q", ErrMalformedResponse, v)
	}
	return id, nil
}

// FormatChainID renders id the way wallet_switchEthereumChain expects it.
func FormatChainID(id int64) string {
	return "0x" + strconv.FormatInt(id, 16)
}

// FormatBalance converts a hex wei quantity into an ether decimal string.
func FormatBalance(hexWei string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(hexWei, "0x"), "0X")
	if raw == "" {
		return "", fmt.Errorf("%w: balance %q", ErrMalformedResponse, hexWei)
	}
	wei, ok := new(big.Int).SetString(raw, 16)
	if !ok {
		return "", fmt.Errorf("%w: balance %q", ErrMalformedResponse, hexWei)
	}
	return decimal.NewFromBigInt(wei, -18).String(), nil
}
