package queue

import (
	config "github.com/instagrid/instagrid/configs"
	"github.com/instagrid/instagrid/internal/service"
)

// Queue executes deferred draft publications. One asynq task equals one
// invocation of the publication pipeline.
type Queue struct {
	cfg config.Config
	ps  service.PublishService
	ts  service.TokenService
}

func NewQueue(cfg config.Config, ps service.PublishService, ts service.TokenService) *Queue {
	return &Queue{
		cfg: cfg,
		ps:  ps,
		ts:  ts,
	}
}

const TaskTypePublishDraft = "publish:draft"

type PublishDraftPayload struct {
	DraftID     string `json:"draft_id"`
	Force       bool   `json:"force"`
	AccessToken string `json:"access_token,omitempty"`
	IGUserID    string `json:"ig_user_id,omitempty"`
}
