package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graphStub(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestCreateContainer(t *testing.T) {
	var gotForm map[string]string
	server := graphStub(t, map[string]http.HandlerFunc{
		"/ig-1/media": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			gotForm = map[string]string{
				"image_url":    r.PostFormValue("image_url"),
				"caption":      r.PostFormValue("caption"),
				"access_token": r.PostFormValue("access_token"),
			}
			writeJSON(w, map[string]string{"id": "container-9"})
		},
	})

	svc := NewInstagramService(server.URL)
	id, err := svc.CreateContainer(context.Background(), "ig-1", "tok", "http://img/0.jpg", "hello")
	require.NoError(t, err)
	assert.Equal(t, "container-9", id)
	assert.Equal(t, "http://img/0.jpg", gotForm["image_url"])
	assert.Equal(t, "hello", gotForm["caption"])
	assert.Equal(t, "tok", gotForm["access_token"])
}

func TestCreateContainerGraphError(t *testing.T) {
	server := graphStub(t, map[string]http.HandlerFunc{
		"/ig-1/media": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]any{
				"error": map[string]any{"message": "Invalid image URL", "type": "OAuthException", "code": 100},
			})
		},
	})

	svc := NewInstagramService(server.URL)
	_, err := svc.CreateContainer(context.Background(), "ig-1", "tok", "bad", "c")
	require.Error(t, err)

	var gerr *GraphAPIError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusBadRequest, gerr.StatusCode)
	assert.Equal(t, "Invalid image URL", gerr.Message)
}

func TestPollStatus(t *testing.T) {
	server := graphStub(t, map[string]http.HandlerFunc{
		"/container-9": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "status_code", r.URL.Query().Get("fields"))
			writeJSON(w, map[string]string{"status_code": "FINISHED", "id": "container-9"})
		},
	})

	svc := NewInstagramService(server.URL)
	status, err := svc.PollStatus(context.Background(), "container-9", "tok")
	require.NoError(t, err)
	assert.Equal(t, ContainerStatusFinished, status)
}

func TestPollStatusMissingFieldIsUnknown(t *testing.T) {
	server := graphStub(t, map[string]http.HandlerFunc{
		"/container-9": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]string{"id": "container-9"})
		},
	})

	svc := NewInstagramService(server.URL)
	status, err := svc.PollStatus(context.Background(), "container-9", "tok")
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN", status)
}

func TestPublish(t *testing.T) {
	server := graphStub(t, map[string]http.HandlerFunc{
		"/ig-1/media_publish": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "container-9", r.PostFormValue("creation_id"))
			writeJSON(w, map[string]string{"id": "post-7"})
		},
	})

	svc := NewInstagramService(server.URL)
	postID, err := svc.Publish(context.Background(), "ig-1", "container-9", "tok")
	require.NoError(t, err)
	assert.Equal(t, "post-7", postID)
}

func TestVerifyPublished(t *testing.T) {
	server := graphStub(t, map[string]http.HandlerFunc{
		"/post-7": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]string{"id": "post-7", "timestamp": "2024-06-01T10:00:00+0000"})
		},
		"/post-gone": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"error": map[string]any{"message": "Unsupported get request."}})
		},
	})

	svc := NewInstagramService(server.URL)
	assert.True(t, svc.VerifyPublished(context.Background(), "post-7", "tok"))
	assert.False(t, svc.VerifyPublished(context.Background(), "post-gone", "tok"))
}

func TestFetchRecent(t *testing.T) {
	server := graphStub(t, map[string]http.HandlerFunc{
		"/ig-1/media": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "4", r.URL.Query().Get("limit"))
			writeJSON(w, map[string]any{
				"data": []map[string]string{
					{"id": "m1", "media_type": "IMAGE", "permalink": "https://instagram.com/p/a"},
					{"id": "m2", "media_type": "IMAGE", "permalink": "https://instagram.com/p/b"},
				},
			})
		},
	})

	svc := NewInstagramService(server.URL)
	media, err := svc.FetchRecent(context.Background(), "ig-1", "tok", 4)
	require.NoError(t, err)
	require.Len(t, media, 2)
	assert.Equal(t, "m1", media[0].ID)
}

func TestExchangeLongLivedToken(t *testing.T) {
	server := graphStub(t, map[string]http.HandlerFunc{
		"/oauth/access_token": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "fb_exchange_token", q.Get("grant_type"))
			assert.Equal(t, "app-1", q.Get("client_id"))
			assert.Equal(t, "short", q.Get("fb_exchange_token"))
			writeJSON(w, map[string]any{"access_token": "long", "expires_in": 5183944})
		},
	})

	svc := NewInstagramService(server.URL)
	token, expiresIn, err := svc.ExchangeLongLivedToken(context.Background(), "app-1", "secret", "short")
	require.NoError(t, err)
	assert.Equal(t, "long", token)
	assert.Equal(t, int64(5183944), expiresIn)
}

func TestFetchPagesAndLinkedInstagramID(t *testing.T) {
	server := graphStub(t, map[string]http.HandlerFunc{
		"/me/accounts": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{
				"data": []map[string]string{
					{"id": "page-1", "name": "My Page", "access_token": "page-tok"},
				},
			})
		},
		"/page-1": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "page-tok", r.URL.Query().Get("access_token"))
			writeJSON(w, map[string]any{
				"instagram_business_account": map[string]string{"id": "ig-1"},
				"id":                         "page-1",
			})
		},
	})

	svc := NewInstagramService(server.URL)
	pages, err := svc.FetchPages(context.Background(), "user-tok")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "My Page", pages[0].Name)

	igID, err := svc.LinkedInstagramID(context.Background(), pages[0])
	require.NoError(t, err)
	assert.Equal(t, "ig-1", igID)
}
