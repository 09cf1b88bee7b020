package apiclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/jogardn/restaurant-storefront/internal/storage"
)

type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetTokens(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
}

// NormalizeToken strips whitespace, surrounding quotes and any number of
// redundant "Bearer " prefixes from a configured or stored token.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	for {
		before := token
		if len(token) >= 2 {
			first, last := token[0], token[len(token)-1]
			if (first == '"' || first == '\'') && first == last {
				token = strings.TrimSpace(token[1 : len(token)-1])
			}
		}
		if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
			token = strings.TrimSpace(token[7:])
		}
		if token == before {
			return token
		}
	}
}

// KVTokenStore keeps the token pair in session storage. When no access token
// is stored, the static fallback token is normalized, written to storage and
// used from then on.
type KVTokenStore struct {
	kv          storage.KV
	staticToken string
}

func NewKVTokenStore(kv storage.KV, staticToken string) *KVTokenStore {
	return &KVTokenStore{kv: kv, staticToken: staticToken}
}

func (s *KVTokenStore) AccessToken(ctx context.Context) (string, error) {
	raw, ok, err := s.kv.Get(ctx, storage.KeyAccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	if token := NormalizeToken(raw); ok && token != "" {
		return token, nil
	}

	static := NormalizeToken(s.staticToken)
	if static == "" {
		return "", nil
	}
	if err := s.kv.Set(ctx, storage.KeyAccessToken, static); err != nil {
		return "", fmt.Errorf("failed to persist static token: %w", err)
	}
	return static, nil
}

func (s *KVTokenStore) RefreshToken(ctx context.Context) (string, error) {
	raw, _, err := s.kv.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	return NormalizeToken(raw), nil
}

func (s *KVTokenStore) SetTokens(ctx context.Context, access, refresh string) error {
	if err := s.kv.Set(ctx, storage.KeyAccessToken, NormalizeToken(access)); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if refresh == "" {
		return nil
	}
	if err := s.kv.Set(ctx, storage.KeyRefreshToken, NormalizeToken(refresh)); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (s *KVTokenStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, storage.KeyAccessToken); err != nil {
		return err
	}
	return s.kv.Delete(ctx, storage.KeyRefreshToken)
}
