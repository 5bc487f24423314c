package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/adnaan-2/contentflow/internal/platform"
	"github.com/hibiken/asynq"
)

func (w *Worker) HandlePublishScheduledTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishScheduledPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return w.PublishJob(ctx, payload.JobID)
}

// PublishJob publishes every pending row of a scheduled job, one platform
// at a time. A platform failing marks its own row failed and never blocks
// the others. Per-platform failures are final, so the task itself succeeds
// and asynq does not retry it.
func (w *Worker) PublishJob(ctx context.Context, jobID string) error {
	posts, err := w.pr.ListScheduledByJobID(ctx, jobID)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		log.Printf("No pending posts for job %s, skipping", jobID)
		return nil
	}

	var published, failed int
	userID := posts[0].UserID

	for _, post := range posts {
		if err := w.publishOne(ctx, post); err != nil {
			log.Printf("Error publishing to %s for job %s: %v", post.Platform, jobID, err)
			if markErr := w.pr.MarkFailed(ctx, post.ID, err.Error()); markErr != nil {
				return markErr
			}
			failed++
			continue
		}
		published++
	}

	message := fmt.Sprintf("Scheduled post: %d published, %d failed", published, failed)
	w.notifier.Notify(ctx, userID, models.NotificationScheduleResult, message)
	return nil
}

func (w *Worker) publishOne(ctx context.Context, post *models.Post) error {
	// Re-resolve the account at fire time so the freshest token is used.
	acc, err := w.publisher.ResolveAccount(ctx, post.UserID, post.Platform)
	if err != nil {
		return err
	}

	content := &platform.Content{
		Caption:        post.Caption,
		MediaURLs:      post.MediaURLs,
		MediaType:      post.MediaType,
		FacebookPageID: post.PageID,
	}

	externalID, postURL, err := w.publisher.PublishTo(ctx, acc, content)
	if err != nil {
		return err
	}

	return w.pr.MarkPublished(ctx, post.ID, externalID, postURL, time.Now().UTC())
}
