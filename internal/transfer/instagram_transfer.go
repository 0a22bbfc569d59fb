package transfer

type TokenExchangeRequest struct {
	ShortLivedToken string `json:"short_lived_token"`
}

// GridPostRequest is an ad-hoc publication of 3 images that never touched the
// draft store.
type GridPostRequest struct {
	AccessToken string     `json:"access_token"`
	IGUserID    string     `json:"ig_user_id"`
	Posts       []PostItem `json:"posts"`
}

// InstagramMedia is one published media item as returned by the Graph API.
type InstagramMedia struct {
	ID           string `json:"id"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Permalink    string `json:"permalink"`
	Caption      string `json:"caption"`
	Timestamp    string `json:"timestamp"`
}

type InstagramErrorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		IsTransient  bool   `json:"is_transient"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}
