package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoLink is returned when an account has no linked wallet.
var ErrNoLink = errors.New("no wallet linked")

// Link is a wallet bound to a custodial account.
type Link struct {
	WalletAddress string    `json:"walletAddress"`
	ChainID       int64     `json:"chainId"`
	LinkedAt      time.Time `json:"linkedAt"`
}

// Certificate is an accepted mint request.
type Certificate struct {
	ID            string    `json:"certificateId"`
	ArtworkID     string    `json:"artworkId"`
	WalletAddress string    `json:"walletAddress"`
	IssuedAt      time.Time `json:"issuedAt"`
}

// Store keeps links, claims and certificates in Redis. Keys are
// <prefix>:link:<issuer>, <prefix>:claim:<issuer> and <prefix>:cert:<issuer>.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore returns a store writing under prefix.
func NewStore(rdb redis.UniversalClient, prefix string, linkTTL time.Duration) *Store {
	return &Store{redis: rdb, prefix: prefix, ttl: linkTTL}
}

func (s *Store) key(kind, issuer string) string {
	return s.prefix + ":" + kind + ":" + issuer
}

// PutLink stores link for issuer, replacing any previous link.
func (s *Store) PutLink(ctx context.Context, issuer string, link Link) error {
	raw, err := json.Marshal(link)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key("link", issuer), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store link: %w", err)
	}
	return nil
}

// GetLink returns the link for issuer or [ErrNoLink].
func (s *Store) GetLink(ctx context.Context, issuer string) (*Link, error) {
	raw, err := s.redis.Get(ctx, s.key("link", issuer)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoLink
	}
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}

	var link Link
	if err := json.Unmarshal(raw, &link); err != nil {
		return nil, fmt.Errorf("decode link: %w", err)
	}
	return &link, nil
}

// DeleteLink removes the link for issuer. Deleting a missing link is not an
// error.
func (s *Store) DeleteLink(ctx context.Context, issuer string) error {
	if err := s.redis.Del(ctx, s.key("link", issuer)).Err(); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

// Claim records claimID as the custodial claim of issuer. Only the first claim
// is kept; the stored id is returned either way.
func (s *Store) Claim(ctx context.Context, issuer, claimID string) (string, error) {
	key := s.key("claim", issuer)
	ok, err := s.redis.SetNX(ctx, key, claimID, 0).Result()
	if err != nil {
		return "", fmt.Errorf("store claim: %w", err)
	}
	if ok {
		return claimID, nil
	}

	existing, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("load claim: %w", err)
	}
	return existing, nil
}

// AddCertificate appends cert to issuer's certificate list.
func (s *Store) AddCertificate(ctx context.Context, issuer string, cert Certificate) error {
	raw, err := json.Marshal(cert)
	if err != nil {
		return err
	}
	if err := s.redis.RPush(ctx, s.key("cert", issuer), raw).Err(); err != nil {
		return fmt.Errorf("store certificate: %w", err)
	}
	return nil
}

// Certificates lists issuer's certificates, oldest first.
func (s *Store) Certificates(ctx context.Context, issuer string) ([]Certificate, error) {
	raws, err := s.redis.LRange(ctx, s.key("cert", issuer), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load certificates: %w", err)
	}

	out := make([]Certificate, 0, len(raws))
	for _, raw := range raws {
		var cert Certificate
		if err := json.Unmarshal([]byte(raw), &cert); err != nil {
			return nil, fmt.Errorf("decode certificate: %w", err)
		}
		out = append(out, cert)
	}
	return out, nil
}
