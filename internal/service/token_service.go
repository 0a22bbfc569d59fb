package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	config "github.com/instagrid/instagrid/configs"
	"github.com/instagrid/instagrid/internal/models"
	"github.com/instagrid/instagrid/internal/storage"
)

const tokenKey = "token.json"

// TokenService owns the single Graph API access token: loads it from durable
// storage at startup, hands it out to callers, and persists every change. No
// ambient process-wide state is involved.
type TokenService interface {
	// Load restores a previously saved token from storage. Missing token is
	// not an error; the service simply starts unauthenticated.
	Load(ctx context.Context) error

	// Get returns the active token, or nil when none is set.
	Get() *models.AccessToken

	// Set makes token active and persists it.
	Set(ctx context.Context, token *models.AccessToken) error

	// Exchange trades a short-lived user token for the most durable token
	// available: a permanent page token when a Page linked to the configured
	// Instagram account is found, a page token or long-lived user token
	// otherwise. The result is set active and persisted.
	Exchange(ctx context.Context, shortLivedToken string) (*models.AccessToken, error)

	// Refresh re-extends the active token when it is a long-lived user token
	// nearing expiry. Permanent page tokens are left alone.
	Refresh(ctx context.Context) error
}

type tokenService struct {
	cfg   config.Config
	ig    InstagramService
	store storage.Backend

	mu      sync.RWMutex
	current *models.AccessToken
}

func NewTokenService(cfg config.Config, ig InstagramService, store storage.Backend) TokenService {
	return &tokenService{cfg: cfg, ig: ig, store: store}
}

func (s *tokenService) Load(ctx context.Context) error {
	data, err := s.store.Get(ctx, tokenKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Info("no saved access token found")
			return nil
		}
		return fmt.Errorf("failed to load access token: %w", err)
	}

	var token models.AccessToken
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("saved token is corrupt: %w", err)
	}
	if token.AccessToken == "" {
		return nil
	}

	s.mu.Lock()
	s.current = &token
	s.mu.Unlock()

	slog.Info("access token loaded", "token_type", token.TokenType)
	return nil
}

func (s *tokenService) Get() *models.AccessToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *tokenService) Set(ctx context.Context, token *models.AccessToken) error {
	token.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, tokenKey, data, "application/json"); err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}

	s.mu.Lock()
	s.current = token
	s.mu.Unlock()

	slog.Info("access token saved", "token_type", token.TokenType)
	return nil
}

func (s *tokenService) Exchange(ctx context.Context, shortLivedToken string) (*models.AccessToken, error) {
	if s.cfg.FBAppID == "" || s.cfg.FBAppSecret == "" {
		return nil, errors.New("FB_APP_ID and FB_APP_SECRET are not configured")
	}

	longLived, expiresIn, err := s.ig.ExchangeLongLivedToken(ctx, s.cfg.FBAppID, s.cfg.FBAppSecret, shortLivedToken)
	if err != nil {
		return nil, err
	}
	slog.Info("long-lived token obtained", "expires_in_days", expiresIn/86400)

	fallback := &models.AccessToken{
		AccessToken: longLived,
		TokenType:   models.TokenTypeLongLivedUser,
		ExpiresAt:   time.Now().Add(time.Duration(expiresIn) * time.Second),
	}

	pages, err := s.ig.FetchPages(ctx, longLived)
	if err != nil || len(pages) == 0 {
		if err != nil {
			slog.Warn("could not fetch page tokens", "error", err)
		}
		if err := s.Set(ctx, fallback); err != nil {
			return nil, err
		}
		return fallback, nil
	}

	// A page token tied to the configured Instagram account never expires.
	for _, page := range pages {
		linkedID, err := s.ig.LinkedInstagramID(ctx, page)
		if err != nil {
			slog.Warn("could not resolve linked instagram account", "page", page.Name, "error", err)
			continue
		}
		if s.cfg.IGUserID != "" && linkedID == s.cfg.IGUserID {
			token := &models.AccessToken{
				AccessToken: page.AccessToken,
				TokenType:   models.TokenTypePermanentPage,
				PageName:    page.Name,
			}
			if err := s.Set(ctx, token); err != nil {
				return nil, err
			}
			slog.Info("permanent page token set", "page", page.Name)
			return token, nil
		}
		slog.Info("page not linked to configured account", "page", page.Name, "linked_ig_id", linkedID)
	}

	// No page matches the configured account; take the first page token and
	// let the operator verify the linkage.
	first := pages[0]
	token := &models.AccessToken{
		AccessToken: first.AccessToken,
		TokenType:   models.TokenTypePage,
		PageName:    first.Name,
	}
	if err := s.Set(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *tokenService) Refresh(ctx context.Context) error {
	current := s.Get()
	if current == nil || current.TokenType != models.TokenTypeLongLivedUser {
		return nil
	}
	if time.Until(current.ExpiresAt) > 7*24*time.Hour {
		return nil
	}

	refreshed, expiresIn, err := s.ig.ExchangeLongLivedToken(ctx, s.cfg.FBAppID, s.cfg.FBAppSecret, current.AccessToken)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}

	return s.Set(ctx, &models.AccessToken{
		AccessToken: refreshed,
		TokenType:   models.TokenTypeLongLivedUser,
		ExpiresAt:   time.Now().Add(time.Duration(expiresIn) * time.Second),
	})
}
