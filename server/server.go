package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth/v6/limiter"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/MrEthical07/hybridAuth/backend"
	"github.com/MrEthical07/hybridAuth/middleware"
	"github.com/MrEthical07/hybridAuth/wallet"
)

// RequestIDHeader carries the per-request id echoed on every response.
const RequestIDHeader = "X-Request-ID"

var (
	errMalformedBody = errors.New("malformed request body")
	errNoAddress     = errors.New("walletAddress required: none supplied and no wallet linked")
	errNotLinked     = errors.New("wallet is not linked to this account")
)

// Server serves the backend routes.
type Server struct {
	config   Config
	verifier middleware.Verifier
	store    *Store
	validate *validator.Validate
	newID    func() string
	now      func() time.Time
}

// New returns a server. verifier checks identity tokens on the validate route
// and bearer tokens on every other route.
func New(cfg Config, verifier middleware.Verifier, store *Store) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if verifier == nil {
		return nil, errors.New("server: verifier is required")
	}
	if store == nil {
		return nil, errors.New("server: store is required")
	}

	return &Server{
		config:   cfg,
		verifier: verifier,
		store:    store,
		validate: validator.New(),
		newID:    uuid.NewString,
		now:      time.Now,
	}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	r.Handle(backend.PathValidate, tollbooth.LimitHandler(s.validateLimiter(), http.HandlerFunc(s.handleValidate))).
		Methods(http.MethodPost)

	guard := middleware.RequireBearer(s.verifier)
	r.Handle(backend.PathLinkWallet, guard(http.HandlerFunc(s.handleLinkWallet))).Methods(http.MethodPost)
	r.Handle(backend.PathUnlinkWallet, guard(http.HandlerFunc(s.handleUnlinkWallet))).Methods(http.MethodPost)
	r.Handle(backend.PathClaimCustodial, guard(http.HandlerFunc(s.handleClaim))).Methods(http.MethodPost)
	r.Handle(backend.PathMintCertificate, guard(http.HandlerFunc(s.handleMint))).Methods(http.MethodPost)

	return r
}

func (s *Server) validateLimiter() *limiter.Limiter {
	lmt := tollbooth.NewLimiter(s.config.ValidateRate, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Hour,
	})
	lmt.SetBurst(s.config.ValidateBurst)
	if s.config.TrustForwardedFor {
		lmt.SetIPLookups([]string{"X-Forwarded-For", "X-Real-IP", "RemoteAddr"})
	} else {
		lmt.SetIPLookups([]string{"RemoteAddr"})
	}
	lmt.SetMessageContentType("application/json; charset=utf-8")
	lmt.SetMessage(`{"error":"too many requests"}`)
	return lmt
}

/* ==== HANDLERS ==== */

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req backend.ValidateRequest
	if !s.decode(w, r, &req) {
		return
	}

	claims, err := s.verifier.Verify(req.DIDToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.New("invalid identity token"))
		return
	}

	writeJSON(w, http.StatusOK, backend.ValidateResponse{
		Issuer: claims.Subject,
		Email:  claims.Email,
	})
}

func (s *Server) handleLinkWallet(w http.ResponseWriter, r *http.Request) {
	issuer, ok := issuerFrom(w, r)
	if !ok {
		return
	}

	var req backend.LinkWalletRequest
	if !s.decode(w, r, &req) {
		return
	}
	addr, err := wallet.ChecksumAddress(req.WalletAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	link := Link{WalletAddress: addr, ChainID: req.ChainID, LinkedAt: s.now().UTC()}
	if err := s.store.PutLink(r.Context(), issuer, link); err != nil {
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, link)
}

func (s *Server) handleUnlinkWallet(w http.ResponseWriter, r *http.Request) {
	issuer, ok := issuerFrom(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteLink(r.Context(), issuer); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	issuer, ok := issuerFrom(w, r)
	if !ok {
		return
	}

	var req backend.ClaimRequest
	if !s.decode(w, r, &req) {
		return
	}

	link, err := s.store.GetLink(r.Context(), issuer)
	if errors.Is(err, ErrNoLink) {
		writeError(w, http.StatusForbidden, errNotLinked)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !wallet.SameAddress(link.WalletAddress, req.WalletAddress) {
		writeError(w, http.StatusForbidden, errNotLinked)
		return
	}

	claimID, err := s.store.Claim(r.Context(), issuer, s.newID())
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, backend.ClaimResponse{
		ClaimID:       claimID,
		WalletAddress: link.WalletAddress,
	})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	issuer, ok := issuerFrom(w, r)
	if !ok {
		return
	}

	var req backend.MintRequest
	if !s.decode(w, r, &req) {
		return
	}

	addr := req.WalletAddress
	if addr == "" {
		link, err := s.store.GetLink(r.Context(), issuer)
		if errors.Is(err, ErrNoLink) {
			writeError(w, http.StatusBadRequest, errNoAddress)
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		addr = link.WalletAddress
	}
	addr, err := wallet.ChecksumAddress(addr)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cert := Certificate{
		ID:            s.newID(),
		ArtworkID:     req.ArtworkID,
		WalletAddress: addr,
		IssuedAt:      s.now().UTC(),
	}
	if err := s.store.AddCertificate(r.Context(), issuer, cert); err != nil {
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, backend.MintResponse{
		CertificateID: cert.ID,
		WalletAddress: cert.WalletAddress,
	})
}

/* ==== HELPERS ==== */

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, errMalformedBody)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationError(err))
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("hybridAuth: server %s %s [%s]: %v", r.Method, r.URL.Path, w.Header().Get(RequestIDHeader), err)
	writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

func issuerFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.Subject == "" {
		writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return "", false
	}
	return claims.Subject, true
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return errors.New("invalid request: " + strings.Join(fields, ", "))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("hybridAuth: server encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, backend.ErrorResponse{Error: err.Error()})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by the server to the request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
