package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/instagrid/instagrid/internal/imaging"
	"github.com/instagrid/instagrid/internal/models"
	"github.com/instagrid/instagrid/internal/repository"
	"github.com/instagrid/instagrid/internal/storage"
)

// publishOrder is a fixed constant of the protocol, not a parameter: the
// platform prepends new posts, so publishing right-middle-left makes the row
// read left-to-right on the profile afterwards.
var publishOrder = [models.GridPostCount]int{2, 1, 0}

var positionNames = map[int]string{2: "Right", 1: "Middle", 0: "Left"}

const (
	defaultPollInterval  = 5 * time.Second
	defaultPollAttempts  = 12
	publishMaxSizeKB     = 800
	publishUploadTTL     = time.Hour
	publishUploadPrefix  = "temp"
	publishUploadPattern = publishUploadPrefix + "/%s_%d.jpg"
)

// Credentials resolve the target account for one publication call.
type Credentials struct {
	AccessToken string
	IGUserID    string
}

// GridItem is one image+caption pair of an ad-hoc batch, positioned by its
// index in the slice (0=left, 1=middle, 2=right).
type GridItem struct {
	Image        []byte
	Caption      string
	CropRatio    string
	CropPosition models.CropPosition
}

// PositionResult is the terminal outcome of one successfully published
// position.
type PositionResult struct {
	Position    string `json:"position"`
	Index       int    `json:"index"`
	ContainerID string `json:"container_id"`
	PostID      string `json:"post_id"`
	Verified    bool   `json:"verified"`
}

type PublishService interface {
	// PublishGrid publishes an ad-hoc 3-image batch in reverse order. On
	// failure the returned slice holds the positions that made it through
	// before the abort.
	PublishGrid(ctx context.Context, items []GridItem, creds Credentials) ([]PositionResult, error)

	// PublishDraft publishes a persisted draft and marks it posted on full
	// success. A draft already posted is refused unless force is set.
	PublishDraft(ctx context.Context, draftID string, force bool, creds Credentials) ([]PositionResult, error)
}

type publishService struct {
	ig    InstagramService
	store storage.Backend
	dr    repository.DraftRepository

	pollInterval time.Duration
	pollAttempts int
}

func NewPublishService(ig InstagramService, store storage.Backend, dr repository.DraftRepository) PublishService {
	return &publishService{
		ig:           ig,
		store:        store,
		dr:           dr,
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
	}
}

func (s *publishService) PublishGrid(ctx context.Context, items []GridItem, creds Credentials) ([]PositionResult, error) {
	if len(items) != models.GridPostCount {
		return nil, ErrInvalidInput
	}

	batchID := fmt.Sprintf("post_%d", time.Now().Unix())
	results := make([]PositionResult, 0, models.GridPostCount)

	for _, idx := range publishOrder {
		item := items[idx]
		res, err := s.publishOne(ctx, batchID, idx, item.Image, item.Caption, item.CropRatio, item.CropPosition, creds)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *publishService) PublishDraft(ctx context.Context, draftID string, force bool, creds Credentials) ([]PositionResult, error) {
	draft, err := s.dr.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, ErrDraftNotFound
	}

	if draft.Status == models.DraftStatusPosted && !force {
		return nil, &AlreadyPublishedError{DraftID: draftID, PostedAt: draft.PostedAt}
	}

	batchID := fmt.Sprintf("draft_%s", draftID)
	results := make([]PositionResult, 0, models.GridPostCount)

	for _, idx := range publishOrder {
		post := draft.Posts[idx]

		// Raw bytes stay untouched in the store; crop and compression below
		// only ever produce a transient derivative.
		raw, err := s.store.Get(ctx, post.ImageKey)
		if err != nil {
			return results, &PublicationError{Position: positionNames[idx], Index: idx, Step: StepPrepare, Err: err}
		}

		res, err := s.publishOne(ctx, batchID, idx, raw, post.Caption, post.CropRatio, post.CropPosition, creds)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	if _, err := s.dr.MarkAsPosted(ctx, draftID); err != nil {
		return results, fmt.Errorf("published but failed to mark draft as posted: %w", err)
	}

	slog.Info("draft published", "draft_id", draftID)
	return results, nil
}

// publishOne runs the full pipeline for a single grid position: transform,
// upload, container creation, bounded polling, publish, best-effort verify.
func (s *publishService) publishOne(ctx context.Context, batchID string, idx int, raw []byte, caption, ratio string, pos models.CropPosition, creds Credentials) (PositionResult, error) {
	position := positionNames[idx]
	fail := func(step string, err error) (PositionResult, error) {
		slog.Error("publication step failed", "position", position, "step", step, "error", err)
		return PositionResult{}, &PublicationError{Position: position, Index: idx, Step: step, Err: err}
	}

	cropped, err := imaging.Crop(raw, ratio, pos)
	if err != nil {
		return fail(StepPrepare, err)
	}
	prepared, err := imaging.Compress(cropped, publishMaxSizeKB)
	if err != nil {
		return fail(StepPrepare, err)
	}
	slog.Info("image prepared", "position", position, "crop", ratio)

	key := fmt.Sprintf(publishUploadPattern, batchID, idx)
	if err := s.store.Put(ctx, key, prepared, "image/jpeg"); err != nil {
		return fail(StepUpload, err)
	}
	// The derivative only needs to exist while the platform fetches it.
	defer func() {
		if err := s.store.Delete(ctx, key); err != nil {
			slog.Warn("could not delete publish derivative", "key", key, "error", err)
		}
	}()
	imageURL, err := s.store.PublicURL(ctx, key, publishUploadTTL)
	if err != nil {
		return fail(StepUpload, err)
	}

	containerID, err := s.ig.CreateContainer(ctx, creds.IGUserID, creds.AccessToken, imageURL, caption)
	if err != nil {
		return fail(StepContainer, err)
	}

	if err := s.waitForContainer(ctx, containerID, creds.AccessToken); err != nil {
		return fail(StepPoll, err)
	}

	postID, err := s.ig.Publish(ctx, creds.IGUserID, containerID, creds.AccessToken)
	if err != nil {
		return fail(StepPublish, err)
	}

	verified := s.ig.VerifyPublished(ctx, postID, creds.AccessToken)
	if !verified {
		slog.Warn("post not verified, treating publish response as authoritative", "position", position, "post_id", postID)
	}

	slog.Info("position published", "position", position, "post_id", postID)
	return PositionResult{
		Position:    position,
		Index:       idx,
		ContainerID: containerID,
		PostID:      postID,
		Verified:    verified,
	}, nil
}

// waitForContainer polls at a fixed interval until the container finishes,
// errors out, or the attempt budget is spent. The wait is deliberately a plain
// bounded loop; the remote processing time is small and bounded.
func (s *publishService) waitForContainer(ctx context.Context, containerID, token string) error {
	for attempt := 1; attempt <= s.pollAttempts; attempt++ {
		time.Sleep(s.pollInterval)

		status, err := s.ig.PollStatus(ctx, containerID, token)
		if err != nil {
			return err
		}
		slog.Info("container status", "container_id", containerID, "status", status, "attempt", attempt, "max_attempts", s.pollAttempts)

		switch status {
		case ContainerStatusFinished:
			return nil
		case ContainerStatusError:
			return fmt.Errorf("%w: container %s", ErrContainerRejected, containerID)
		}
	}
	return fmt.Errorf("%w: container %s", ErrPollTimeout, containerID)
}
