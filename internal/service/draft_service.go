package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"github.com/instagrid/instagrid/internal/models"
	"github.com/instagrid/instagrid/internal/repository"
	"github.com/instagrid/instagrid/internal/storage"
	"github.com/instagrid/instagrid/internal/transfer"
)

const imageURLTTL = time.Hour

// DraftService sits between the HTTP handlers and the draft repository:
// decodes and validates incoming images, and enriches outgoing drafts with
// fetchable image URLs.
type DraftService interface {
	List(ctx context.Context) ([]transfer.DraftView, error)
	Get(ctx context.Context, id string) (*transfer.DraftView, error)
	Save(ctx context.Context, req *transfer.SaveDraftRequest) (*models.Draft, error)
	Update(ctx context.Context, id string, req *transfer.UpdateDraftRequest) (*models.Draft, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type draftService struct {
	dr    repository.DraftRepository
	store storage.Backend
}

func NewDraftService(dr repository.DraftRepository, store storage.Backend) DraftService {
	return &draftService{dr: dr, store: store}
}

func (s *draftService) List(ctx context.Context) ([]transfer.DraftView, error) {
	drafts, err := s.dr.List(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]transfer.DraftView, 0, len(drafts))
	for _, d := range drafts {
		views = append(views, s.view(ctx, d))
	}
	return views, nil
}

func (s *draftService) Get(ctx context.Context, id string) (*transfer.DraftView, error) {
	draft, err := s.dr.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, nil
	}
	v := s.view(ctx, *draft)
	return &v, nil
}

func (s *draftService) view(ctx context.Context, d models.Draft) transfer.DraftView {
	posts := make([]transfer.PostView, 0, len(d.Posts))
	for _, p := range d.Posts {
		url, err := s.store.PublicURL(ctx, p.ImageKey, imageURLTTL)
		if err != nil {
			slog.Warn("could not resolve image URL", "key", p.ImageKey, "error", err)
		}
		posts = append(posts, transfer.PostView{Post: p, ImageURL: url})
	}
	return transfer.DraftView{Draft: d, Posts: posts}
}

// Save decodes the uploaded images and stores them raw. No compression or
// crop happens here: editing stays non-destructive until publish time.
func (s *draftService) Save(ctx context.Context, req *transfer.SaveDraftRequest) (*models.Draft, error) {
	if len(req.Posts) != models.GridPostCount {
		return nil, ErrInvalidInput
	}

	images := make([][]byte, 0, models.GridPostCount)
	captions := make([]string, 0, models.GridPostCount)
	for idx, post := range req.Posts {
		raw, err := base64.StdEncoding.DecodeString(post.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("post %d: invalid base64 image: %w", idx, err)
		}
		if err := checkImageType(raw); err != nil {
			return nil, fmt.Errorf("post %d: %w", idx, err)
		}
		images = append(images, raw)
		captions = append(captions, post.Caption)
	}

	return s.dr.Save(ctx, images, captions, req.CropRatios, req.CropPositions)
}

func (s *draftService) Update(ctx context.Context, id string, req *transfer.UpdateDraftRequest) (*models.Draft, error) {
	return s.dr.Update(ctx, id, &models.DraftUpdate{
		Captions:      req.Captions,
		CropRatios:    req.CropRatios,
		CropPositions: req.CropPositions,
		PostOrder:     req.PostOrder,
	})
}

func (s *draftService) Delete(ctx context.Context, id string) (bool, error) {
	return s.dr.Delete(ctx, id)
}

// checkImageType sniffs the magic bytes and accepts JPEG and PNG only.
func checkImageType(data []byte) error {
	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown {
		return errors.New("unrecognized file type")
	}
	switch kind.Extension {
	case "jpg", "jpeg", "png":
		return nil
	}
	return fmt.Errorf("file type %s is not allowed", kind.Extension)
}
