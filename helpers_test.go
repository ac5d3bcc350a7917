package hybridAuth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/hybridAuth/backend"
	"github.com/MrEthical07/hybridAuth/identity/identitytest"
	"github.com/MrEthical07/hybridAuth/wallet/wallettest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testAddr     = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	testChecksum = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	otherAddr    = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeBackend answers every endpoint with a configurable status and records
// the paths it saw.
type fakeBackend struct {
	mu     sync.Mutex
	status map[string]int
	paths  []string
	bodies map[string][]byte
}

func newFakeBackend(t *testing.T) (*fakeBackend, *backend.Client) {
	t.Helper()

	fb := &fakeBackend{
		status: make(map[string]int),
		bodies: make(map[string][]byte),
	}
	srv := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(srv.Close)

	return fb, backend.NewClient(backend.Config{BaseURL: srv.URL}, srv.Client())
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&raw)

	fb.mu.Lock()
	fb.paths = append(fb.paths, r.URL.Path)
	fb.bodies[r.URL.Path] = raw
	status, ok := fb.status[r.URL.Path]
	fb.mu.Unlock()

	if !ok {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status >= 300 {
		_ = json.NewEncoder(w).Encode(backend.ErrorResponse{Error: "rejected"})
		return
	}

	switch r.URL.Path {
	case backend.PathClaimCustodial:
		_ = json.NewEncoder(w).Encode(backend.ClaimResponse{ClaimID: "claim-1", WalletAddress: testChecksum})
	case backend.PathMintCertificate:
		_ = json.NewEncoder(w).Encode(backend.MintResponse{CertificateID: "cert-1", WalletAddress: testChecksum})
	default:
		_, _ = w.Write([]byte("{}"))
	}
}

func (fb *fakeBackend) fail(path string, status int) {
	fb.mu.Lock()
	fb.status[path] = status
	fb.mu.Unlock()
}

func (fb *fakeBackend) count(path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	n := 0
	for _, p := range fb.paths {
		if p == path {
			n++
		}
	}
	return n
}

func (fb *fakeBackend) body(path string) []byte {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.bodies[path]
}

type harness struct {
	engine    *Engine
	identity  *identitytest.Provider
	validator *identitytest.Validator
	wallet    *wallettest.Provider
	backend   *fakeBackend
	clock     *testClock
}

type harnessOption func(*harnessSetup)

type harnessSetup struct {
	cfg       Config
	noWallet  bool
	redis     bool
	auditSink AuditSink
}

func withConfig(mutate func(*Config)) harnessOption {
	return func(s *harnessSetup) { mutate(&s.cfg) }
}

func withoutWallet() harnessOption {
	return func(s *harnessSetup) { s.noWallet = true }
}

func withRedis() harnessOption {
	return func(s *harnessSetup) { s.redis = true }
}

func withAudit(sink AuditSink) harnessOption {
	return func(s *harnessSetup) {
		s.cfg.Audit.Enabled = true
		s.cfg.Audit.BufferSize = 64
		s.cfg.Audit.DropIfFull = false
		s.auditSink = sink
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	setup := harnessSetup{cfg: DefaultConfig()}
	setup.cfg.Metrics.Enabled = true
	setup.cfg.Metrics.EnableLatencyHistograms = true
	for _, opt := range opts {
		opt(&setup)
	}

	h := &harness{
		identity:  identitytest.New(),
		validator: &identitytest.Validator{},
		clock:     newTestClock(),
	}
	fb, api := newFakeBackend(t)
	h.backend = fb

	builder := New().
		WithConfig(setup.cfg).
		WithIdentityProvider(h.identity).
		WithTokenValidator(h.validator).
		WithBackend(api).
		WithClock(h.clock.Now).
		WithAuditSink(setup.auditSink)

	if !setup.noWallet {
		h.wallet = wallettest.New(testAddr)
		builder.WithWalletProvider(h.wallet)
	}
	if setup.redis {
		mr, rdb := newTestRedis(t)
		t.Cleanup(mr.Close)
		builder.WithRedis(rdb)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func (h *harness) login(t *testing.T, email string) Snapshot {
	t.Helper()

	tok, err := h.engine.IssueCSRFToken(context.Background())
	if err != nil {
		t.Fatalf("IssueCSRFToken failed: %v", err)
	}
	snap, err := h.engine.Login(context.Background(), email, tok)
	if err != nil {
		t.Fatalf("Login(%q) failed: %v", email, err)
	}
	return snap
}

func (h *harness) connect(t *testing.T) Snapshot {
	t.Helper()

	snap, err := h.engine.ConnectWallet(context.Background(), "")
	if err != nil {
		t.Fatalf("ConnectWallet failed: %v", err)
	}
	return snap
}

func waitForState(t *testing.T, e *Engine, want AuthState) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state: want %s, got %s", want, e.State())
}
