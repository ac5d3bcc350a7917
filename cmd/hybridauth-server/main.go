// Command hybridauth-server runs the reference backend for the hybridAuth
// engine.
//
// Settings come from the environment, optionally seeded from a .env file:
//
//	HYBRIDAUTH_ADDR            listen address (default :8080)
//	REDIS_ADDR                 redis address; empty starts an in-process miniredis
//	HYBRIDAUTH_JWT_SECRET      HS256 key (>= 32 bytes), or
//	HYBRIDAUTH_JWT_PUBLIC_KEY  ed25519 public key PEM for verify-only mode
//	HYBRIDAUTH_JWT_ISSUER      expected iss claim
//	HYBRIDAUTH_JWT_AUDIENCE    expected aud claim
//	HYBRIDAUTH_VALIDATE_RATE   per-IP validate requests per second
//	HYBRIDAUTH_TRUST_PROXY     "true" to rate limit on X-Forwarded-For
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/hybridAuth/jwt"
	"github.com/MrEthical07/hybridAuth/server"
)

type settings struct {
	Addr      string
	RedisAddr string
	JWT       jwt.Config
	Server    server.Config
}

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before reading the environment")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("hybridAuth: load %s: %v", *envFile, err)
	}

	cfg, err := loadSettings(os.Getenv)
	if err != nil {
		log.Fatalf("hybridAuth: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("hybridAuth: %v", err)
	}
}

func run(cfg settings) error {
	tokens, err := jwt.NewManager(cfg.JWT)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	addr := cfg.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		log.Printf("hybridAuth: REDIS_ADDR unset, using in-process miniredis at %s", addr)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	srv, err := server.New(cfg.Server, tokens, server.NewStore(rdb, cfg.Server.KeyPrefix, cfg.Server.LinkTTL))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("hybridAuth: listening on %s", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func loadSettings(getenv func(string) string) (settings, error) {
	cfg := settings{
		Addr:      envOr(getenv, "HYBRIDAUTH_ADDR", ":8080"),
		RedisAddr: getenv("REDIS_ADDR"),
		Server:    server.DefaultConfig(),
		JWT: jwt.Config{
			TTL:      time.Hour,
			Issuer:   getenv("HYBRIDAUTH_JWT_ISSUER"),
			Audience: getenv("HYBRIDAUTH_JWT_AUDIENCE"),
			Leeway:   30 * time.Second,
		},
	}

	secret := getenv("HYBRIDAUTH_JWT_SECRET")
	public := getenv("HYBRIDAUTH_JWT_PUBLIC_KEY")
	switch {
	case secret != "" && public != "":
		return settings{}, errors.New("set only one of HYBRIDAUTH_JWT_SECRET and HYBRIDAUTH_JWT_PUBLIC_KEY")
	case secret != "":
		cfg.JWT.SigningMethod = jwt.MethodHS256
		cfg.JWT.PrivateKey = []byte(secret)
	case public != "":
		cfg.JWT.SigningMethod = jwt.MethodEd25519
		cfg.JWT.PublicKey = []byte(public)
	default:
		return settings{}, errors.New("HYBRIDAUTH_JWT_SECRET or HYBRIDAUTH_JWT_PUBLIC_KEY is required")
	}

	if v := getenv("HYBRIDAUTH_VALIDATE_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return settings{}, fmt.Errorf("HYBRIDAUTH_VALIDATE_RATE: %w", err)
		}
		cfg.Server.ValidateRate = rate
	}
	if v := getenv("HYBRIDAUTH_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return settings{}, fmt.Errorf("HYBRIDAUTH_TRUST_PROXY: %w", err)
		}
		cfg.Server.TrustForwardedFor = trust
	}

	if err := cfg.Server.Validate(); err != nil {
		return settings{}, err
	}
	return cfg, nil
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}
