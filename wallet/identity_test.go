package wallet

import (
	"errors"
	"testing"
)

func TestChecksumAddress(t *testing.T) {
	// EIP-55 reference vectors.
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range vectors {
		for _, in := range []string{want, lowerHex(want), "0X" + want[2:]} {
			got, err := ChecksumAddress(in)
			if err != nil {
				t.Fatalf("ChecksumAddress(%q) error: %v", in, err)
			}
			if got != want {
				t.Fatalf("ChecksumAddress(%q) = %q, want %q", in, got, want)
			}
		}
	}
}

func TestChecksumAddressRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "0x1234", "0xzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", "5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe"} {
		if _, err := ChecksumAddress(in); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("ChecksumAddress(%q) expected ErrMalformedResponse, got %v", in, err)
		}
	}
}

func TestParseChainID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "0x1", want: 1},
		{in: "0x89", want: 137},
		{in: "0XA", want: 10},
		{in: "11155111", want: 11155111},
		{in: " 0x2105 ", want: 8453},
		{in: "0x0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "mainnet", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseChainID(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseChainID(%q) expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseChainID(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestFormatChainIDRoundTrip(t *testing.T) {
	for _, id := range []int64{1, 10, 137, 8453, 11155111} {
		got, err := ParseChainID(FormatChainID(id))
		if err != nil || got != id {
			t.Fatalf("round trip of %d gave %d, %v", id, got, err)
		}
	}
	if FormatChainID(137) != "0x89" {
		t.Fatalf("unexpected format %q", FormatChainID(137))
	}
}

func TestFormatBalance(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "0x14d1120d7b160000", want: "1.5"},
		{in: "0x0", want: "0"},
		{in: "0xde0b6b3a7640000", want: "1"},
		{in: "0x1", want: "0.000000000000000001"},
	}
	for _, tt := range tests {
		got, err := FormatBalance(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("FormatBalance(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := FormatBalance("0x"); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if _, err := FormatBalance("0xnope"); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestSameAddress(t *testing.T) {
	if !SameAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed") {
		t.Fatal("expected case-insensitive match")
	}
	if SameAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359") {
		t.Fatal("expected mismatch")
	}
}

func TestConnectorKindValid(t *testing.T) {
	for _, k := range []ConnectorKind{KindInjected, KindWalletConnect, KindCoinbase} {
		if !k.Valid() {
			t.Fatalf("expected %s to be valid", k)
		}
	}
	if ConnectorKind("ledger").Valid() {
		t.Fatal("expected unknown kind to be invalid")
	}
}

func TestRPCErrorUserRejected(t *testing.T) {
	if !(&RPCError{Code: CodeUserRejected}).UserRejected() {
		t.Fatal("expected 4001 to be a user rejection")
	}
	if (&RPCError{Code: CodeUnrecognizedChain}).UserRejected() {
		t.Fatal("expected 4902 not to be a user rejection")
	}
}

func lowerHex(addr string) string {
	b := []byte(addr)
	for i := 2; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'F' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
