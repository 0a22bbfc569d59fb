package transfer

import "github.com/instagrid/instagrid/internal/models"

type PostItem struct {
	ImageBase64 string `json:"image_base64"`
	Caption     string `json:"caption"`
}

type SaveDraftRequest struct {
	Posts         []PostItem            `json:"posts"`
	CropRatios    []string              `json:"crop_ratios"`
	CropPositions []models.CropPosition `json:"crop_positions"`
}

type UpdateDraftRequest struct {
	Captions      []string              `json:"captions"`
	CropRatios    []string              `json:"crop_ratios"`
	CropPositions []models.CropPosition `json:"crop_positions"`
	PostOrder     []int                 `json:"post_order"`
}

type PostDraftRequest struct {
	AccessToken string `json:"access_token"`
	IGUserID    string `json:"ig_user_id"`
	Force       bool   `json:"force"`
}

type ScheduleDraftRequest struct {
	PostDraftRequest
	ScheduledTime string `json:"scheduled_time"` // 2006-01-02T15:04
}

// PostView is a draft post enriched with a fetchable image URL for the editor.
type PostView struct {
	models.Post
	ImageURL string `json:"image_url"`
}

type DraftView struct {
	models.Draft
	Posts []PostView `json:"posts"`
}
