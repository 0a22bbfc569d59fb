package models

import "time"

// Token types, from most durable to least.
const (
	TokenTypePermanentPage = "permanent_page"
	TokenTypePage          = "page_token"
	TokenTypeLongLivedUser = "long_lived_user"
)

// AccessToken is the Graph API credential persisted between restarts.
type AccessToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	PageName    string    `json:"page_name,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}
