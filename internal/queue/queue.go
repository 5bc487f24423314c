package queue

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/adnaan-2/contentflow/internal/service"
	"github.com/hibiken/asynq"
)

// AsynqScheduler arms one-shot publish jobs in Redis. The job id doubles as
// the asynq task id, which makes Arm idempotent: re-arming an already
// pending job reports ErrAlreadyArmed instead of queueing a duplicate.
type AsynqScheduler struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewAsynqScheduler(client *asynq.Client, inspector *asynq.Inspector) *AsynqScheduler {
	return &AsynqScheduler{
		client:    client,
		inspector: inspector,
	}
}

func (s *AsynqScheduler) Arm(jobID string, fireAt time.Time) error {
	payload, err := json.Marshal(PublishScheduledPayload{JobID: jobID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishScheduled, payload)

	_, err = s.client.Enqueue(task, asynq.ProcessAt(fireAt), asynq.TaskID(jobID))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return service.ErrAlreadyArmed
	}
	if err != nil {
		return err
	}

	log.Printf("Task scheduled: job_id=%s fire_at=%s", jobID, fireAt.Format(time.RFC3339))
	return nil
}

// Disarm removes a pending task. A task that already fired or never existed
// is not an error; the database rows are the source of truth.
func (s *AsynqScheduler) Disarm(jobID string) error {
	err := s.inspector.DeleteTask("default", jobID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return err
}
