package trakt

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"time"

	"aiolists/internal/ttlcache"
	"aiolists/internal/upstream"
	"aiolists/models"
)

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// TokenSource hands out usable access tokens for a user configuration.
// Expired tokens are refreshed; refreshed tokens are remembered in memory
// for as long as they are valid, and concurrent refreshes of the same
// refresh token share one upstream call.
type TokenSource struct {
	refresher Refresher
	refreshed *ttlcache.Cache[TokenResponse]
	now       func() time.Time
}

func NewTokenSource(refresher Refresher) *TokenSource {
	return &TokenSource{
		refresher: refresher,
		refreshed: ttlcache.New[TokenResponse](ttlcache.Options{Size: 512, TTL: time.Hour, NegativeTTL: time.Minute}),
		now:       time.Now,
	}
}

// Token returns a valid access token for cfg.
func (s *TokenSource) Token(ctx context.Context, cfg *models.UserConfig) (string, error) {
	if cfg == nil || cfg.TraktAccessToken == "" {
		return "", ErrNoCredential
	}
	if !cfg.TraktTokenExpired(s.now()) {
		return cfg.TraktAccessToken, nil
	}
	if cfg.TraktRefreshToken == "" {
		return "", fmt.Errorf("access token expired and no refresh token: %w", ErrNoCredential)
	}

	key := tokenKey(cfg.TraktRefreshToken)
	if cached, found, _ := s.refreshed.Get(key); found {
		if s.now().Before(cached.ExpiresAt()) {
			return cached.AccessToken, nil
		}
		s.refreshed.Remove(key)
	}
	tok, found, err := s.refreshed.GetOrLoad(ctx, key, func(ctx context.Context) (TokenResponse, bool, error) {
		resp, err := s.refresher.RefreshAccessToken(ctx, cfg.TraktRefreshToken)
		if err != nil {
			// a rejected grant stays rejected; remember it briefly
			if upstream.IsStatus(err, http.StatusBadRequest, http.StatusUnauthorized) {
				log.Printf("[trakt] refresh token rejected: %v", err)
				return TokenResponse{}, false, nil
			}
			return TokenResponse{}, false, err
		}
		tok := *resp
		tok.Stamp(s.now())
		log.Printf("[trakt] refreshed access token (expires in %ds)", tok.ExpiresIn)
		return tok, true, nil
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("token refresh recently failed: %w", ErrNoCredential)
	}
	return tok.AccessToken, nil
}

func tokenKey(refreshToken string) string {
	sum := sha1.Sum([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}
