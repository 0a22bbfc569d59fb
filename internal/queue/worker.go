package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/instagrid/instagrid/internal/service"
)

func (q *Queue) HandlePublishDraftTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishDraftPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	creds := service.Credentials{
		AccessToken: payload.AccessToken,
		IGUserID:    payload.IGUserID,
	}
	if creds.AccessToken == "" {
		if token := q.ts.Get(); token != nil {
			creds.AccessToken = token.AccessToken
		}
	}
	if creds.IGUserID == "" {
		creds.IGUserID = q.cfg.IGUserID
	}
	if creds.AccessToken == "" || creds.IGUserID == "" {
		return errors.New("missing instagram credentials for scheduled publication")
	}

	results, err := q.ps.PublishDraft(ctx, payload.DraftID, payload.Force, creds)
	if err != nil {
		slog.Error("scheduled publication failed",
			"draft_id", payload.DraftID,
			"published_positions", len(results),
			"error", err)
		return err
	}

	slog.Info("scheduled publication finished", "draft_id", payload.DraftID, "positions", len(results))
	return nil
}
