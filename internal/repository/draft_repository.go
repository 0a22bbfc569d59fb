package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/instagrid/instagrid/internal/models"
	"github.com/instagrid/instagrid/internal/storage"
)

const indexKey = "drafts/index.json"

var ErrInvalidPostOrder = errors.New("post_order must be a permutation of [0,1,2]")

type DraftRepository interface {
	List(ctx context.Context) ([]models.Draft, error)
	GetByID(ctx context.Context, id string) (*models.Draft, error)
	Save(ctx context.Context, images [][]byte, captions []string, ratios []string, positions []models.CropPosition) (*models.Draft, error)
	Update(ctx context.Context, id string, upd *models.DraftUpdate) (*models.Draft, error)
	MarkAsPosted(ctx context.Context, id string) (*models.Draft, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// draftRepository keeps all drafts in one JSON index document in the asset
// store, plus one blob per image. The index is read-modify-write on every
// mutation, so a single mutex per instance serializes writers.
type draftRepository struct {
	store storage.Backend
	mu    sync.Mutex
}

func NewDraftRepository(store storage.Backend) DraftRepository {
	return &draftRepository{store: store}
}

// ImageKey derives the stable asset key of a draft image at the given
// position.
func ImageKey(draftID string, position int) string {
	return fmt.Sprintf("drafts/images/draft_%s_%d.jpg", draftID, position)
}

func (r *draftRepository) loadIndex(ctx context.Context) ([]models.Draft, error) {
	data, err := r.store.Get(ctx, indexKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load drafts index: %w", err)
	}

	var drafts []models.Draft
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil, fmt.Errorf("drafts index is corrupt: %w", err)
	}
	return drafts, nil
}

func (r *draftRepository) saveIndex(ctx context.Context, drafts []models.Draft) error {
	data, err := json.MarshalIndent(drafts, "", "  ")
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, indexKey, data, "application/json"); err != nil {
		return fmt.Errorf("failed to save drafts index: %w", err)
	}
	return nil
}

func (r *draftRepository) List(ctx context.Context) ([]models.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadIndex(ctx)
}

// GetByID returns the draft, or nil when the id is unknown.
func (r *draftRepository) GetByID(ctx context.Context, id string) (*models.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drafts, err := r.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	for i := range drafts {
		if drafts[i].ID == id {
			return &drafts[i], nil
		}
	}
	return nil, nil
}

// Save persists a new draft of exactly three raw images. Blobs are written
// before the index entry, so a partial failure can orphan blobs but never
// leaves a draft in the index whose images are missing.
func (r *draftRepository) Save(ctx context.Context, images [][]byte, captions []string, ratios []string, positions []models.CropPosition) (*models.Draft, error) {
	if len(images) != models.GridPostCount || len(captions) != models.GridPostCount {
		return nil, fmt.Errorf("expected exactly %d images and captions", models.GridPostCount)
	}

	id, err := gonanoid.New(8)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	posts := make([]models.Post, models.GridPostCount)
	for idx, img := range images {
		key := ImageKey(id, idx)
		if err := r.store.Put(ctx, key, img, "image/jpeg"); err != nil {
			return nil, err
		}

		post := models.Post{
			ImageKey:     key,
			Caption:      captions[idx],
			CropRatio:    models.CropRatioOriginal,
			CropPosition: models.CropPosition{X: 50, Y: 50},
		}
		if idx < len(ratios) && ratios[idx] != "" {
			post.CropRatio = ratios[idx]
		}
		if idx < len(positions) {
			post.CropPosition = positions[idx]
		}
		posts[idx] = post
	}

	draft := models.Draft{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    models.DraftStatusDraft,
		Posts:     posts,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	drafts, err := r.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	drafts = append(drafts, draft)
	if err := r.saveIndex(ctx, drafts); err != nil {
		return nil, err
	}

	slog.Info("draft saved", "draft_id", id)
	return &draft, nil
}

// Update mutates only the fields supplied and bumps UpdatedAt. Image keys and
// stored blobs are never touched by an update.
func (r *draftRepository) Update(ctx context.Context, id string, upd *models.DraftUpdate) (*models.Draft, error) {
	if upd.PostOrder != nil && !isPermutation(upd.PostOrder) {
		return nil, ErrInvalidPostOrder
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	drafts, err := r.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	for i := range drafts {
		if drafts[i].ID != id {
			continue
		}
		d := &drafts[i]

		for idx, caption := range upd.Captions {
			if idx < len(d.Posts) {
				d.Posts[idx].Caption = caption
			}
		}
		for idx, ratio := range upd.CropRatios {
			if idx < len(d.Posts) && ratio != "" {
				d.Posts[idx].CropRatio = ratio
			}
		}
		for idx, pos := range upd.CropPositions {
			if idx < len(d.Posts) {
				d.Posts[idx].CropPosition = pos
			}
		}
		if upd.PostOrder != nil {
			reordered := make([]models.Post, len(d.Posts))
			for to, from := range upd.PostOrder {
				reordered[to] = d.Posts[from]
			}
			d.Posts = reordered
		}

		d.UpdatedAt = time.Now().UTC()
		if err := r.saveIndex(ctx, drafts); err != nil {
			return nil, err
		}
		slog.Info("draft updated", "draft_id", id)
		return d, nil
	}
	return nil, nil
}

func (r *draftRepository) MarkAsPosted(ctx context.Context, id string) (*models.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drafts, err := r.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	for i := range drafts {
		if drafts[i].ID != id {
			continue
		}
		now := time.Now().UTC()
		drafts[i].Status = models.DraftStatusPosted
		drafts[i].PostedAt = &now
		if err := r.saveIndex(ctx, drafts); err != nil {
			return nil, err
		}
		slog.Info("draft marked as posted", "draft_id", id)
		return &drafts[i], nil
	}
	return nil, nil
}

// Delete removes a draft's blobs best-effort, then its index entry. A blob
// that refuses to delete is logged and skipped; the index entry goes away
// regardless.
func (r *draftRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drafts, err := r.loadIndex(ctx)
	if err != nil {
		return false, err
	}

	found := -1
	for i := range drafts {
		if drafts[i].ID == id {
			found = i
			break
		}
	}
	if found == -1 {
		return false, nil
	}

	for _, post := range drafts[found].Posts {
		if err := r.store.Delete(ctx, post.ImageKey); err != nil {
			slog.Warn("could not delete draft image", "key", post.ImageKey, "error", err)
		}
	}

	drafts = append(drafts[:found], drafts[found+1:]...)
	if err := r.saveIndex(ctx, drafts); err != nil {
		return false, err
	}

	slog.Info("draft deleted", "draft_id", id)
	return true, nil
}

func isPermutation(order []int) bool {
	if len(order) != models.GridPostCount {
		return false
	}
	var seen [models.GridPostCount]bool
	for _, idx := range order {
		if idx < 0 || idx >= models.GridPostCount || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}
