package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instagrid/instagrid/internal/models"
	"github.com/instagrid/instagrid/internal/repository"
	"github.com/instagrid/instagrid/internal/storage/memory"
	"github.com/instagrid/instagrid/internal/transfer"
)

// fakeInstagram records every remote call in order and answers from canned
// behavior. Containers finish on the first poll unless told otherwise.
type fakeInstagram struct {
	calls []string

	containerSeq    int
	pollStatuses    map[string]string // container id -> status, default FINISHED
	failContainerAt int               // grid index whose CreateContainer errors, -1 for none
	verifyAnswer    bool
}

func newFakeInstagram() *fakeInstagram {
	return &fakeInstagram{failContainerAt: -1, verifyAnswer: true, pollStatuses: map[string]string{}}
}

func (f *fakeInstagram) CreateContainer(ctx context.Context, userID, token, imageURL, caption string) (string, error) {
	f.calls = append(f.calls, "create:"+caption)
	if f.failContainerAt >= 0 && f.containerSeq == f.failContainerAt {
		return "", &GraphAPIError{StatusCode: 400, Message: "media rejected"}
	}
	f.containerSeq++
	return fmt.Sprintf("container-%d", f.containerSeq), nil
}

func (f *fakeInstagram) PollStatus(ctx context.Context, containerID, token string) (string, error) {
	f.calls = append(f.calls, "poll:"+containerID)
	if status, ok := f.pollStatuses[containerID]; ok {
		return status, nil
	}
	return ContainerStatusFinished, nil
}

func (f *fakeInstagram) Publish(ctx context.Context, userID, containerID, token string) (string, error) {
	f.calls = append(f.calls, "publish:"+containerID)
	return "post-" + containerID, nil
}

func (f *fakeInstagram) VerifyPublished(ctx context.Context, postID, token string) bool {
	f.calls = append(f.calls, "verify:"+postID)
	return f.verifyAnswer
}

func (f *fakeInstagram) FetchRecent(ctx context.Context, userID, token string, limit int) ([]transfer.InstagramMedia, error) {
	return nil, nil
}

func (f *fakeInstagram) ExchangeLongLivedToken(ctx context.Context, appID, appSecret, shortLivedToken string) (string, int64, error) {
	return "", 0, errors.New("not implemented")
}

func (f *fakeInstagram) FetchPages(ctx context.Context, token string) ([]FacebookPage, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeInstagram) LinkedInstagramID(ctx context.Context, page FacebookPage) (string, error) {
	return "", errors.New("not implemented")
}

func smallJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 64)), nil))
	return buf.Bytes()
}

func testCreds() Credentials {
	return Credentials{AccessToken: "tok", IGUserID: "ig-1"}
}

func newTestPublishService(ig InstagramService, store *memory.Backend, dr repository.DraftRepository) *publishService {
	ps := NewPublishService(ig, store, dr).(*publishService)
	ps.pollInterval = time.Millisecond
	return ps
}

func gridItems(t *testing.T) []GridItem {
	img := smallJPEG(t)
	items := make([]GridItem, 3)
	for i := range items {
		items[i] = GridItem{
			Image:     img,
			Caption:   fmt.Sprintf("caption %d", i),
			CropRatio: models.CropRatioOriginal,
		}
	}
	return items
}

func TestPublishGridOrderIsRightMiddleLeft(t *testing.T) {
	ig := newFakeInstagram()
	ps := newTestPublishService(ig, memory.New(), repository.NewDraftRepository(memory.New()))

	results, err := ps.PublishGrid(context.Background(), gridItems(t), testCreds())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []int{2, 1, 0}, []int{results[0].Index, results[1].Index, results[2].Index})
	assert.Equal(t, []string{"Right", "Middle", "Left"},
		[]string{results[0].Position, results[1].Position, results[2].Position})
	for _, res := range results {
		assert.True(t, res.Verified)
		assert.NotEmpty(t, res.ContainerID)
		assert.NotEmpty(t, res.PostID)
	}

	// Right (index 2) creates its container before Middle and Left.
	assert.Equal(t, "create:caption 2", ig.calls[0])
}

func TestPublishGridRejectsWrongCount(t *testing.T) {
	ig := newFakeInstagram()
	ps := newTestPublishService(ig, memory.New(), repository.NewDraftRepository(memory.New()))

	_, err := ps.PublishGrid(context.Background(), gridItems(t)[:2], testCreds())
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, ig.calls)
}

func TestPublishGridAbortsOnContainerFailure(t *testing.T) {
	ig := newFakeInstagram()
	ig.failContainerAt = 1 // second container, i.e. the Middle position

	ps := newTestPublishService(ig, memory.New(), repository.NewDraftRepository(memory.New()))
	results, err := ps.PublishGrid(context.Background(), gridItems(t), testCreds())

	require.Error(t, err)
	var perr *PublicationError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Middle", perr.Position)
	assert.Equal(t, 1, perr.Index)
	assert.Equal(t, StepContainer, perr.Step)

	// Right went through, Left was never attempted.
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Index)
	assert.NotContains(t, ig.calls, "create:caption 0")
}

func TestPublishGridContainerRejected(t *testing.T) {
	ig := newFakeInstagram()
	ig.pollStatuses["container-1"] = ContainerStatusError

	ps := newTestPublishService(ig, memory.New(), repository.NewDraftRepository(memory.New()))
	results, err := ps.PublishGrid(context.Background(), gridItems(t), testCreds())

	require.ErrorIs(t, err, ErrContainerRejected)
	var perr *PublicationError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StepPoll, perr.Step)
	assert.Empty(t, results)
}

func TestPublishGridPollTimeout(t *testing.T) {
	ig := newFakeInstagram()
	ig.pollStatuses["container-1"] = ContainerStatusInProgress

	ps := newTestPublishService(ig, memory.New(), repository.NewDraftRepository(memory.New()))
	ps.pollAttempts = 3

	_, err := ps.PublishGrid(context.Background(), gridItems(t), testCreds())
	require.ErrorIs(t, err, ErrPollTimeout)

	polls := 0
	for _, call := range ig.calls {
		if call == "poll:container-1" {
			polls++
		}
	}
	assert.Equal(t, 3, polls)
}

func TestPublishDraft(t *testing.T) {
	store := memory.New()
	dr := repository.NewDraftRepository(store)
	ig := newFakeInstagram()
	ps := newTestPublishService(ig, store, dr)
	ctx := context.Background()

	img := smallJPEG(t)
	draft, err := dr.Save(ctx, [][]byte{img, img, img}, []string{"l", "m", "r"}, nil, nil)
	require.NoError(t, err)

	results, err := ps.PublishDraft(ctx, draft.ID, false, testCreds())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Right", results[0].Position)

	after, err := dr.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusPosted, after.Status)
	require.NotNil(t, after.PostedAt)
}

func TestPublishDraftUnknownID(t *testing.T) {
	ig := newFakeInstagram()
	ps := newTestPublishService(ig, memory.New(), repository.NewDraftRepository(memory.New()))

	_, err := ps.PublishDraft(context.Background(), "missing1", false, testCreds())
	require.ErrorIs(t, err, ErrDraftNotFound)
	assert.Empty(t, ig.calls)
}

func TestPublishDraftAlreadyPosted(t *testing.T) {
	store := memory.New()
	dr := repository.NewDraftRepository(store)
	ig := newFakeInstagram()
	ps := newTestPublishService(ig, store, dr)
	ctx := context.Background()

	img := smallJPEG(t)
	draft, err := dr.Save(ctx, [][]byte{img, img, img}, []string{"l", "m", "r"}, nil, nil)
	require.NoError(t, err)
	_, err = dr.MarkAsPosted(ctx, draft.ID)
	require.NoError(t, err)

	_, err = ps.PublishDraft(ctx, draft.ID, false, testCreds())
	var already *AlreadyPublishedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, draft.ID, already.DraftID)
	assert.NotNil(t, already.PostedAt)
	assert.Empty(t, ig.calls)

	// force republishes the whole batch.
	results, err := ps.PublishDraft(ctx, draft.ID, true, testCreds())
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestPublishDraftMidBatchFailureKeepsDraftStatus(t *testing.T) {
	store := memory.New()
	dr := repository.NewDraftRepository(store)
	ig := newFakeInstagram()
	ig.failContainerAt = 1
	ps := newTestPublishService(ig, store, dr)
	ctx := context.Background()

	img := smallJPEG(t)
	draft, err := dr.Save(ctx, [][]byte{img, img, img}, []string{"l", "m", "r"}, nil, nil)
	require.NoError(t, err)

	results, err := ps.PublishDraft(ctx, draft.ID, false, testCreds())
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Right", results[0].Position)

	// An aborted batch does not mark the draft as posted.
	after, err := dr.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusDraft, after.Status)
}

func TestPublishDraftMissingBlobFailsAtPrepare(t *testing.T) {
	store := memory.New()
	dr := repository.NewDraftRepository(store)
	ig := newFakeInstagram()
	ps := newTestPublishService(ig, store, dr)
	ctx := context.Background()

	img := smallJPEG(t)
	draft, err := dr.Save(ctx, [][]byte{img, img, img}, []string{"l", "m", "r"}, nil, nil)
	require.NoError(t, err)

	// Lose the left image. Right and Middle still publish first.
	require.NoError(t, store.Delete(ctx, repository.ImageKey(draft.ID, 0)))

	results, err := ps.PublishDraft(ctx, draft.ID, false, testCreds())
	require.Error(t, err)

	var perr *PublicationError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Left", perr.Position)
	assert.Equal(t, StepPrepare, perr.Step)
	require.Len(t, results, 2)
}

func TestPublishGridCleansUpDerivatives(t *testing.T) {
	store := memory.New()
	ig := newFakeInstagram()
	ps := newTestPublishService(ig, store, repository.NewDraftRepository(memory.New()))

	_, err := ps.PublishGrid(context.Background(), gridItems(t), testCreds())
	require.NoError(t, err)

	// Every temp/ upload is deleted once its position finishes.
	assert.Zero(t, store.Len())
}

func TestPublishGridCleansUpDerivativesOnAbort(t *testing.T) {
	store := memory.New()
	ig := newFakeInstagram()
	ig.failContainerAt = 1
	ps := newTestPublishService(ig, store, repository.NewDraftRepository(memory.New()))

	_, err := ps.PublishGrid(context.Background(), gridItems(t), testCreds())
	require.Error(t, err)

	// The failed position's upload is cleaned up too.
	assert.Zero(t, store.Len())
}

func TestPublishGridUnverifiedPostIsStillSuccess(t *testing.T) {
	ig := newFakeInstagram()
	ig.verifyAnswer = false

	ps := newTestPublishService(ig, memory.New(), repository.NewDraftRepository(memory.New()))
	results, err := ps.PublishGrid(context.Background(), gridItems(t), testCreds())
	require.NoError(t, err)
	for _, res := range results {
		assert.False(t, res.Verified)
	}
}
