package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/hybridAuth/backend"
	"github.com/MrEthical07/hybridAuth/jwt"
)

const (
	addrA = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	addrB = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

type fixture struct {
	mr     *miniredis.Miniredis
	store  *Store
	tokens *jwt.Manager
	srv    *httptest.Server
	client *backend.Client
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tokens, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "hybridauth-test",
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	cfg := DefaultConfig()
	cfg.ValidateRate = 100
	cfg.ValidateBurst = 100
	if mutate != nil {
		mutate(&cfg)
	}

	store := NewStore(rdb, cfg.KeyPrefix, cfg.LinkTTL)
	s, err := New(cfg, tokens, store)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	n := 0
	s.newID = func() string {
		n++
		return "id-" + string(rune('0'+n))
	}

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &fixture{
		mr:     mr,
		store:  store,
		tokens: tokens,
		srv:    srv,
		client: backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil),
	}
}

func (f *fixture) token(t *testing.T, email string) string {
	t.Helper()
	tok, err := f.tokens.Issue("did:ethr:"+email, email, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func wantStatus(t *testing.T, err error, code int) {
	t.Helper()
	var se *backend.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("want status %d, got %v", code, err)
	}
	if se.StatusCode != code {
		t.Fatalf("want status %d, got %d (%s)", code, se.StatusCode, se.Message)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, &Store{}); err == nil {
		t.Fatal("expected missing verifier to fail")
	}
	bad := DefaultConfig()
	bad.ValidateRate = 0
	if _, err := New(bad, &jwt.Manager{}, &Store{}); err == nil {
		t.Fatal("expected invalid config to fail")
	}
}

func TestValidate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.client.Validate(ctx, f.token(t, "a@example.com"))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Issuer != "did:ethr:a@example.com" || res.Email != "a@example.com" {
		t.Fatalf("response: %+v", res)
	}

	wantStatus(t, f.client.ValidateDIDToken(ctx, "garbage"), http.StatusUnauthorized)
	wantStatus(t, f.client.ValidateDIDToken(ctx, ""), http.StatusBadRequest)
}

func TestValidateIsRateLimitedPerIP(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.ValidateRate = 0.001
		c.ValidateBurst = 1
	})
	ctx := context.Background()
	tok := f.token(t, "a@example.com")

	if err := f.client.ValidateDIDToken(ctx, tok); err != nil {
		t.Fatalf("first validate: %v", err)
	}
	err := f.client.ValidateDIDToken(ctx, tok)
	wantStatus(t, err, http.StatusTooManyRequests)

	var se *backend.StatusError
	errors.As(err, &se)
	if se.Message != "too many requests" {
		t.Fatalf("limiter body should use the error envelope, got %q", se.Message)
	}
}

func TestBearerRoutesRequireToken(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{
		backend.PathLinkWallet,
		backend.PathUnlinkWallet,
		backend.PathClaimCustodial,
		backend.PathMintCertificate,
	} {
		for _, header := range []string{"", "Bearer", "Bearer not-a-jwt"} {
			req, _ := http.NewRequest(http.MethodPost, f.srv.URL+path, strings.NewReader("{}"))
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("%s: %v", path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("%s with %q: want 401, got %d", path, header, resp.StatusCode)
			}
		}
	}
}

func TestLinkClaimUnlink(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	bearer := f.token(t, "a@example.com")

	wantStatus(t, f.client.LinkWallet(ctx, bearer, "not-an-address", 1), http.StatusBadRequest)
	wantStatus(t, f.client.LinkWallet(ctx, bearer, addrA, 0), http.StatusBadRequest)

	_, err := f.client.ClaimCustodial(ctx, bearer, addrA)
	wantStatus(t, err, http.StatusForbidden)

	if err := f.client.LinkWallet(ctx, bearer, strings.ToLower(addrA), 1); err != nil {
		t.Fatalf("link: %v", err)
	}
	link, err := f.store.GetLink(ctx, "did:ethr:a@example.com")
	if err != nil {
		t.Fatalf("stored link: %v", err)
	}
	if link.WalletAddress != addrA || link.ChainID != 1 {
		t.Fatalf("link should be checksummed: %+v", link)
	}

	_, err = f.client.ClaimCustodial(ctx, bearer, addrB)
	wantStatus(t, err, http.StatusForbidden)

	first, err := f.client.ClaimCustodial(ctx, bearer, addrA)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	again, err := f.client.ClaimCustodial(ctx, bearer, strings.ToLower(addrA))
	if err != nil {
		t.Fatalf("repeat claim: %v", err)
	}
	if first.ClaimID == "" || again.ClaimID != first.ClaimID {
		t.Fatalf("claims must be idempotent: %q vs %q", first.ClaimID, again.ClaimID)
	}

	if err := f.client.UnlinkWallet(ctx, bearer); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if _, err := f.store.GetLink(ctx, "did:ethr:a@example.com"); !errors.Is(err, ErrNoLink) {
		t.Fatalf("link should be gone, got %v", err)
	}
	if err := f.client.UnlinkWallet(ctx, bearer); err != nil {
		t.Fatalf("unlink twice: %v", err)
	}
}

func TestLinksAreScopedToIssuer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if err := f.client.LinkWallet(ctx, f.token(t, "a@example.com"), addrA, 1); err != nil {
		t.Fatalf("link: %v", err)
	}
	_, err := f.client.ClaimCustodial(ctx, f.token(t, "b@example.com"), addrA)
	wantStatus(t, err, http.StatusForbidden)
}

func TestMintCertificate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	bearer := f.token(t, "a@example.com")

	_, err := f.client.MintCertificate(ctx, bearer, "art-1", "")
	wantStatus(t, err, http.StatusBadRequest)

	_, err = f.client.MintCertificate(ctx, bearer, "", addrA)
	wantStatus(t, err, http.StatusBadRequest)

	explicit, err := f.client.MintCertificate(ctx, bearer, "art-1", strings.ToLower(addrB))
	if err != nil {
		t.Fatalf("mint with address: %v", err)
	}
	if explicit.CertificateID == "" || explicit.WalletAddress != addrB {
		t.Fatalf("mint response: %+v", explicit)
	}

	if err := f.client.LinkWallet(ctx, bearer, addrA, 1); err != nil {
		t.Fatalf("link: %v", err)
	}
	linked, err := f.client.MintCertificate(ctx, bearer, "art-2", "")
	if err != nil {
		t.Fatalf("mint via link: %v", err)
	}
	if linked.WalletAddress != addrA || linked.CertificateID == explicit.CertificateID {
		t.Fatalf("mint via link: %+v", linked)
	}

	certs, err := f.store.Certificates(ctx, "did:ethr:a@example.com")
	if err != nil {
		t.Fatalf("certificates: %v", err)
	}
	if len(certs) != 2 || certs[0].ArtworkID != "art-1" || certs[1].ArtworkID != "art-2" {
		t.Fatalf("certificates: %+v", certs)
	}
}

func TestRedisFailureIsInternalError(t *testing.T) {
	f := newFixture(t, nil)
	bearer := f.token(t, "a@example.com")
	f.mr.SetError("ERR injected failure")

	err := f.client.LinkWallet(context.Background(), bearer, addrA, 1)
	wantStatus(t, err, http.StatusInternalServerError)

	var se *backend.StatusError
	errors.As(err, &se)
	if se.Message != "internal error" {
		t.Fatalf("internal errors must not leak details: %q", se.Message)
	}
}

func TestRoutingEnvelope(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Get(f.srv.URL + backend.PathValidate)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET validate: want 405, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+backend.PathValidate, strings.NewReader("{"))
	req.Header.Set(RequestIDHeader, "req-42")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body: want 400, got %d", resp.StatusCode)
	}
	if resp.Header.Get(RequestIDHeader) != "req-42" {
		t.Fatalf("request id not echoed: %q", resp.Header.Get(RequestIDHeader))
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		t.Fatalf("content type: %q", resp.Header.Get("Content-Type"))
	}
}
