package models

import "time"

const (
	DraftStatusDraft  = "draft"
	DraftStatusPosted = "posted"
)

// Crop ratios accepted for a post. "original" means the stored image is
// published as-is.
const (
	CropRatioOriginal  = "original"
	CropRatioSquare    = "1:1"
	CropRatioPortrait  = "4:5"
	CropRatioLandscape = "16:9"
)

// CropPosition is the focal anchor of a crop, in percent of the croppable
// range on each axis. {50, 50} targets the center.
type CropPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Post is one cell of a draft's grid row. ImageKey points at the raw bytes in
// the asset store and never changes for the lifetime of the draft; crop
// settings are metadata applied transiently at publish time.
type Post struct {
	ImageKey     string       `json:"image_key"`
	Caption      string       `json:"caption"`
	CropRatio    string       `json:"crop_ratio"`
	CropPosition CropPosition `json:"crop_position"`
}

// Draft is a persisted bundle of exactly three posts making up one grid row.
type Draft struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Status    string     `json:"status"` // draft, posted
	PostedAt  *time.Time `json:"posted_at"`
	Posts     []Post     `json:"posts"`
}

// DraftUpdate carries the fields of a draft that may be edited. Nil fields are
// left untouched.
type DraftUpdate struct {
	Captions      []string       `json:"captions"`
	CropRatios    []string       `json:"crop_ratios"`
	CropPositions []CropPosition `json:"crop_positions"`
	PostOrder     []int          `json:"post_order"`
}

// GridPostCount is the only batch size the grid pipeline accepts.
const GridPostCount = 3
