package hybridAuth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/hybridAuth/backend"
	"github.com/MrEthical07/hybridAuth/identity/identitytest"
	"github.com/MrEthical07/hybridAuth/jwt"
	"github.com/MrEthical07/hybridAuth/server"
	"github.com/MrEthical07/hybridAuth/wallet"
	"github.com/MrEthical07/hybridAuth/wallet/wallettest"
)

// TestEngineAgainstReferenceServer drives the whole hybrid journey through the
// real server, with identity tokens signed and verified by jwt.Manager.
func TestEngineAgainstReferenceServer(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()
	defer rdb.Close()

	tokens, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "hybridauth-e2e",
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	scfg := server.DefaultConfig()
	store := server.NewStore(rdb, scfg.KeyPrefix, 0)
	api, err := server.New(scfg, tokens, store)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	idp := identitytest.New()
	idp.SignTokens(tokens.Issue)

	cfg := DefaultConfig()
	cfg.Backend.BaseURL = srv.URL
	cfg.Session.RefreshInterval = 0

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityProvider(idp).
		WithWalletProvider(wallettest.New(testAddr)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	engine.Initialize(ctx)

	csrfToken, err := engine.IssueCSRFToken(ctx)
	if err != nil {
		t.Fatalf("csrf: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", csrfToken); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := engine.ConnectWallet(ctx, wallet.KindInjected); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if _, err := engine.ClaimCustodialNFT(ctx); !errors.Is(err, ErrWalletNotLinked) {
		t.Fatalf("claim before link: %v", err)
	}

	snap, err := engine.LinkWallet(ctx)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if snap.State != StateHybrid || !snap.Profile.WalletLinked {
		t.Fatalf("after link: %+v", snap)
	}

	issuer := identitytest.IssuerFor("alice@example.com")
	link, err := store.GetLink(ctx, issuer)
	if err != nil || link.WalletAddress != testChecksum {
		t.Fatalf("server link: %+v, %v", link, err)
	}

	claim, err := engine.ClaimCustodialNFT(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claim.WalletAddress != testChecksum {
		t.Fatalf("claim: %+v", claim)
	}

	cert, err := engine.MintCertificate(ctx, "art-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if cert.CertificateID == "" {
		t.Fatal("mint should return a certificate id")
	}

	snap, err = engine.UnlinkWallet(ctx)
	if err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if snap.State != StateEmail {
		t.Fatalf("unlink should demote to email, got %s", snap.State)
	}
	if _, err := store.GetLink(ctx, issuer); !errors.Is(err, server.ErrNoLink) {
		t.Fatalf("server link should be gone: %v", err)
	}
}

func TestLoginRejectedByReferenceServer(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()
	defer rdb.Close()

	verifier, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("server-key-0123456789abcdef012345"),
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	foreign, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("other-key-0123456789abcdef0123456"),
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	scfg := server.DefaultConfig()
	api, err := server.New(scfg, verifier, server.NewStore(rdb, scfg.KeyPrefix, 0))
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	idp := identitytest.New()
	idp.SignTokens(foreign.Issue)

	cfg := DefaultConfig()
	cfg.Backend.BaseURL = srv.URL
	cfg.Security.CSRFProtection = false

	engine, err := New().WithConfig(cfg).WithIdentityProvider(idp).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	_, err = engine.Login(context.Background(), "alice@example.com", "")
	var se *backend.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 from validate, got %v", err)
	}
	if !IsCode(err, CodeLogin) || engine.State() != StateAnonymous {
		t.Fatalf("login must fail closed: %v, %s", err, engine.State())
	}
}
