package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/instagrid/instagrid/internal/transfer"
)

// Container processing states reported by the Graph API.
const (
	ContainerStatusFinished   = "FINISHED"
	ContainerStatusError      = "ERROR"
	ContainerStatusInProgress = "IN_PROGRESS"
)

// GraphAPIError is a non-200 answer from the Graph API.
type GraphAPIError struct {
	StatusCode int
	Message    string
}

func (e *GraphAPIError) Error() string {
	return fmt.Sprintf("graph api error (status %d): %s", e.StatusCode, e.Message)
}

// FacebookPage is one entry of /me/accounts, with the Instagram account it is
// linked to (if any) resolved separately.
type FacebookPage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

// InstagramService wraps the Graph API calls the publication pipeline and the
// token exchange depend on.
type InstagramService interface {
	CreateContainer(ctx context.Context, userID, token, imageURL, caption string) (string, error)
	PollStatus(ctx context.Context, containerID, token string) (string, error)
	Publish(ctx context.Context, userID, containerID, token string) (string, error)
	VerifyPublished(ctx context.Context, postID, token string) bool
	FetchRecent(ctx context.Context, userID, token string, limit int) ([]transfer.InstagramMedia, error)

	ExchangeLongLivedToken(ctx context.Context, appID, appSecret, shortLivedToken string) (string, int64, error)
	FetchPages(ctx context.Context, token string) ([]FacebookPage, error)
	LinkedInstagramID(ctx context.Context, page FacebookPage) (string, error)
}

type instagramService struct {
	baseURL string
	client  *http.Client
}

func NewInstagramService(baseURL string) InstagramService {
	return &instagramService{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *instagramService) postForm(ctx context.Context, endpoint string, form url.Values) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &GraphAPIError{StatusCode: resp.StatusCode, Message: graphErrorMessage(body)}
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	return result, nil
}

func (s *instagramService) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &GraphAPIError{StatusCode: resp.StatusCode, Message: graphErrorMessage(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

func graphErrorMessage(body []byte) string {
	var parsed transfer.InstagramErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(body)
}

// CreateContainer registers a remote media container for the image at
// imageURL. The URL must be fetchable by Meta's servers.
func (s *instagramService) CreateContainer(ctx context.Context, userID, token, imageURL, caption string) (string, error) {
	form := url.Values{}
	form.Set("image_url", imageURL)
	form.Set("caption", caption)
	form.Set("access_token", token)

	result, err := s.postForm(ctx, fmt.Sprintf("%s/%s/media", s.baseURL, userID), form)
	if err != nil {
		return "", fmt.Errorf("container creation failed: %w", err)
	}

	containerID, _ := result["id"].(string)
	if containerID == "" {
		return "", fmt.Errorf("no container ID returned")
	}

	slog.Info("container created", "container_id", containerID)
	return containerID, nil
}

// PollStatus reports the processing state of a container.
func (s *instagramService) PollStatus(ctx context.Context, containerID, token string) (string, error) {
	params := url.Values{}
	params.Set("fields", "status_code")
	params.Set("access_token", token)

	var result struct {
		StatusCode string `json:"status_code"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/%s", s.baseURL, containerID), params, &result); err != nil {
		return "", err
	}

	if result.StatusCode == "" {
		return "UNKNOWN", nil
	}
	return result.StatusCode, nil
}

// Publish turns a finished container into a live post and returns the post id.
func (s *instagramService) Publish(ctx context.Context, userID, containerID, token string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", token)

	result, err := s.postForm(ctx, fmt.Sprintf("%s/%s/media_publish", s.baseURL, userID), form)
	if err != nil {
		return "", fmt.Errorf("publishing failed: %w", err)
	}

	postID, _ := result["id"].(string)
	if postID == "" {
		return "", fmt.Errorf("no post ID returned")
	}
	return postID, nil
}

// VerifyPublished checks that a post id resolves. The publish call having
// returned an id is authoritative; a negative answer here is informational.
func (s *instagramService) VerifyPublished(ctx context.Context, postID, token string) bool {
	params := url.Values{}
	params.Set("fields", "id,timestamp")
	params.Set("access_token", token)

	var result struct {
		ID string `json:"id"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/%s", s.baseURL, postID), params, &result); err != nil {
		slog.Warn("post verification failed", "post_id", postID, "error", err)
		return false
	}
	return result.ID != ""
}

// FetchRecent returns the latest published media for the account, newest
// first.
func (s *instagramService) FetchRecent(ctx context.Context, userID, token string, limit int) ([]transfer.InstagramMedia, error) {
	params := url.Values{}
	params.Set("fields", "id,media_type,media_url,thumbnail_url,permalink,caption,timestamp")
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("access_token", token)

	var result struct {
		Data []transfer.InstagramMedia `json:"data"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/%s/media", s.baseURL, userID), params, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// ExchangeLongLivedToken trades a short-lived user token for a long-lived one.
// Returns the token and its lifetime in seconds.
func (s *instagramService) ExchangeLongLivedToken(ctx context.Context, appID, appSecret, shortLivedToken string) (string, int64, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", appID)
	params.Set("client_secret", appSecret)
	params.Set("fb_exchange_token", shortLivedToken)

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/oauth/access_token", s.baseURL), params, &result); err != nil {
		return "", 0, fmt.Errorf("token exchange failed: %w", err)
	}
	if result.AccessToken == "" {
		return "", 0, fmt.Errorf("no access token returned")
	}
	return result.AccessToken, result.ExpiresIn, nil
}

// FetchPages lists the Facebook Pages the token can manage.
func (s *instagramService) FetchPages(ctx context.Context, token string) ([]FacebookPage, error) {
	params := url.Values{}
	params.Set("access_token", token)

	var result struct {
		Data []FacebookPage `json:"data"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/me/accounts", s.baseURL), params, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// LinkedInstagramID resolves the Instagram business account linked to a Page,
// or "" when none is.
func (s *instagramService) LinkedInstagramID(ctx context.Context, page FacebookPage) (string, error) {
	params := url.Values{}
	params.Set("fields", "instagram_business_account")
	params.Set("access_token", page.AccessToken)

	var result struct {
		InstagramBusinessAccount struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/%s", s.baseURL, page.ID), params, &result); err != nil {
		return "", err
	}
	return result.InstagramBusinessAccount.ID, nil
}
