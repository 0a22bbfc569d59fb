package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/instagrid/instagrid/configs"
	"github.com/instagrid/instagrid/internal/models"
	"github.com/instagrid/instagrid/internal/storage/memory"
)

// fakeTokenGraph implements only the token-related calls.
type fakeTokenGraph struct {
	fakeInstagram

	longLived     string
	expiresIn     int64
	exchangeErr   error
	exchangeCalls int

	pages    []FacebookPage
	pagesErr error
	linked   map[string]string // page id -> instagram account id
}

func (f *fakeTokenGraph) ExchangeLongLivedToken(ctx context.Context, appID, appSecret, shortLivedToken string) (string, int64, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return "", 0, f.exchangeErr
	}
	return f.longLived, f.expiresIn, nil
}

func (f *fakeTokenGraph) FetchPages(ctx context.Context, token string) ([]FacebookPage, error) {
	return f.pages, f.pagesErr
}

func (f *fakeTokenGraph) LinkedInstagramID(ctx context.Context, page FacebookPage) (string, error) {
	return f.linked[page.ID], nil
}

func tokenConfig() config.Config {
	return config.Config{FBAppID: "app-1", FBAppSecret: "secret", IGUserID: "ig-1"}
}

func TestLoadMissingTokenIsNotAnError(t *testing.T) {
	ts := NewTokenService(tokenConfig(), &fakeTokenGraph{}, memory.New())

	require.NoError(t, ts.Load(context.Background()))
	assert.Nil(t, ts.Get())
}

func TestSetPersistsAndLoadRestores(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	ts := NewTokenService(tokenConfig(), &fakeTokenGraph{}, store)
	require.NoError(t, ts.Set(ctx, &models.AccessToken{
		AccessToken: "tok",
		TokenType:   models.TokenTypePermanentPage,
		PageName:    "My Page",
	}))

	fresh := NewTokenService(tokenConfig(), &fakeTokenGraph{}, store)
	require.NoError(t, fresh.Load(ctx))

	got := fresh.Get()
	require.NotNil(t, got)
	assert.Equal(t, "tok", got.AccessToken)
	assert.Equal(t, models.TokenTypePermanentPage, got.TokenType)
	assert.Equal(t, "My Page", got.PageName)
	assert.False(t, got.SavedAt.IsZero())
}

func TestExchangePrefersPermanentPageToken(t *testing.T) {
	ig := &fakeTokenGraph{
		longLived: "long",
		expiresIn: 5184000,
		pages: []FacebookPage{
			{ID: "page-other", Name: "Other", AccessToken: "other-tok"},
			{ID: "page-1", Name: "My Page", AccessToken: "page-tok"},
		},
		linked: map[string]string{"page-other": "ig-other", "page-1": "ig-1"},
	}
	ts := NewTokenService(tokenConfig(), ig, memory.New())

	token, err := ts.Exchange(context.Background(), "short")
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypePermanentPage, token.TokenType)
	assert.Equal(t, "page-tok", token.AccessToken)
	assert.Equal(t, "My Page", token.PageName)
	assert.Same(t, token, ts.Get())
}

func TestExchangeFallsBackToFirstPageToken(t *testing.T) {
	ig := &fakeTokenGraph{
		longLived: "long",
		expiresIn: 5184000,
		pages:     []FacebookPage{{ID: "page-1", Name: "My Page", AccessToken: "page-tok"}},
		linked:    map[string]string{"page-1": "ig-unrelated"},
	}
	ts := NewTokenService(tokenConfig(), ig, memory.New())

	token, err := ts.Exchange(context.Background(), "short")
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypePage, token.TokenType)
	assert.Equal(t, "page-tok", token.AccessToken)
}

func TestExchangeFallsBackToLongLivedUserToken(t *testing.T) {
	ig := &fakeTokenGraph{
		longLived: "long",
		expiresIn: 5184000,
		pagesErr:  errors.New("permission denied"),
	}
	ts := NewTokenService(tokenConfig(), ig, memory.New())

	token, err := ts.Exchange(context.Background(), "short")
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeLongLivedUser, token.TokenType)
	assert.Equal(t, "long", token.AccessToken)
	assert.WithinDuration(t, time.Now().Add(60*24*time.Hour), token.ExpiresAt, time.Hour)
}

func TestExchangeRequiresAppCredentials(t *testing.T) {
	ts := NewTokenService(config.Config{}, &fakeTokenGraph{}, memory.New())

	_, err := ts.Exchange(context.Background(), "short")
	require.Error(t, err)
}

func TestRefreshSkipsPermanentPageTokens(t *testing.T) {
	ig := &fakeTokenGraph{}
	ts := NewTokenService(tokenConfig(), ig, memory.New())
	ctx := context.Background()

	require.NoError(t, ts.Set(ctx, &models.AccessToken{
		AccessToken: "page-tok",
		TokenType:   models.TokenTypePermanentPage,
	}))

	require.NoError(t, ts.Refresh(ctx))
	assert.Zero(t, ig.exchangeCalls)
}

func TestRefreshSkipsTokensFarFromExpiry(t *testing.T) {
	ig := &fakeTokenGraph{}
	ts := NewTokenService(tokenConfig(), ig, memory.New())
	ctx := context.Background()

	require.NoError(t, ts.Set(ctx, &models.AccessToken{
		AccessToken: "long",
		TokenType:   models.TokenTypeLongLivedUser,
		ExpiresAt:   time.Now().Add(30 * 24 * time.Hour),
	}))

	require.NoError(t, ts.Refresh(ctx))
	assert.Zero(t, ig.exchangeCalls)
}

func TestRefreshExtendsExpiringToken(t *testing.T) {
	ig := &fakeTokenGraph{longLived: "extended", expiresIn: 5184000}
	ts := NewTokenService(tokenConfig(), ig, memory.New())
	ctx := context.Background()

	require.NoError(t, ts.Set(ctx, &models.AccessToken{
		AccessToken: "long",
		TokenType:   models.TokenTypeLongLivedUser,
		ExpiresAt:   time.Now().Add(2 * 24 * time.Hour),
	}))

	require.NoError(t, ts.Refresh(ctx))
	assert.Equal(t, 1, ig.exchangeCalls)

	got := ts.Get()
	require.NotNil(t, got)
	assert.Equal(t, "extended", got.AccessToken)
	assert.True(t, got.ExpiresAt.After(time.Now().Add(50*24*time.Hour)))
}
