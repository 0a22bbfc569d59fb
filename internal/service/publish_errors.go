package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput rejects a batch whose cardinality is not exactly 3. No
	// remote call has been made when this is returned.
	ErrInvalidInput = errors.New("exactly 3 posts are required")

	ErrDraftNotFound = errors.New("draft not found")

	// ErrContainerRejected means the remote platform reported ERROR while
	// processing a media container.
	ErrContainerRejected = errors.New("container rejected during processing")

	// ErrPollTimeout means the container was still processing when the fixed
	// poll budget ran out.
	ErrPollTimeout = errors.New("container not ready before poll budget expired")
)

// Publication steps, used to pinpoint where a position failed.
const (
	StepPrepare   = "prepare"
	StepUpload    = "upload"
	StepContainer = "create_container"
	StepPoll      = "poll"
	StepPublish   = "publish"
)

// PublicationError reports the grid position and pipeline step a batch died
// at. Positions published before it stay published; the partial attempt log is
// returned alongside.
type PublicationError struct {
	Position string // Right, Middle, Left
	Index    int    // original grid index (0=left .. 2=right)
	Step     string
	Err      error
}

func (e *PublicationError) Error() string {
	return fmt.Sprintf("publication failed at %s (%s): %v", e.Position, e.Step, e.Err)
}

func (e *PublicationError) Unwrap() error { return e.Err }

// AlreadyPublishedError guards a posted draft against accidental duplicate
// publication. The caller can override with an explicit force flag.
type AlreadyPublishedError struct {
	DraftID  string
	PostedAt *time.Time
}

func (e *AlreadyPublishedError) Error() string {
	if e.PostedAt != nil {
		return fmt.Sprintf("draft %s was already published at %s; pass force=true to republish", e.DraftID, e.PostedAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("draft %s was already published; pass force=true to republish", e.DraftID)
}
