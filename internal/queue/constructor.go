package queue

import (
	"github.com/adnaan-2/contentflow/internal/repository"
	"github.com/adnaan-2/contentflow/internal/service"
)

// Worker fires scheduled publish jobs. One task covers every platform row
// that shares the job id.
type Worker struct {
	pr        repository.PostRepository
	publisher service.PublishService
	notifier  service.Notifier
}

func NewWorker(
	pr repository.PostRepository,
	publisher service.PublishService,
	notifier service.Notifier) *Worker {
	return &Worker{
		pr:        pr,
		publisher: publisher,
		notifier:  notifier,
	}
}

const TaskTypePublishScheduled = "publish:scheduled"

type PublishScheduledPayload struct {
	JobID string `json:"job_id"`
}
