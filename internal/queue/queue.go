package queue

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueueDraft schedules a draft publication after delay. The task is not
// retried on failure: a failed batch needs an operator decision, not a blind
// re-run that would duplicate already-published positions.
func EnqueueDraft(asynqClient *asynq.Client, payload PublishDraftPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishDraft, taskPayload, asynq.MaxRetry(0))

	_, err = asynqClient.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return err
	}

	log.Printf("Publication scheduled: draft=%s delay=%s", payload.DraftID, delay)
	return nil
}
