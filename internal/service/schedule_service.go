package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/adnaan-2/contentflow/internal/repository"
	"github.com/adnaan-2/contentflow/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrJobNotFound means the job id matches no pending scheduled posts,
	// either because it never existed or because it already fired.
	ErrJobNotFound = errors.New("scheduled job not found")

	// ErrAlreadyArmed is returned by JobScheduler.Arm when a timer for the
	// job id already exists. Reload treats it as success.
	ErrAlreadyArmed = errors.New("job already armed")
)

// JobScheduler is the timer backend. Arm enqueues a one-shot job that fires
// at the given time; Disarm removes it if it has not fired yet.
type JobScheduler interface {
	Arm(jobID string, fireAt time.Time) error
	Disarm(jobID string) error
}

type ScheduleService interface {
	Schedule(ctx context.Context, userID int64, req *transfer.ScheduleRequest) (*transfer.ScheduleResponse, error)
	Update(ctx context.Context, userID int64, jobID string, req *transfer.ScheduleUpdate) error
	Cancel(ctx context.Context, userID int64, jobID string) error
	Reload(ctx context.Context) error
}

type scheduleService struct {
	db        *sql.DB
	pr        repository.PostRepository
	publisher PublishService
	scheduler JobScheduler
	notifier  Notifier
}

func NewScheduleService(db *sql.DB, pr repository.PostRepository, publisher PublishService, scheduler JobScheduler, notifier Notifier) ScheduleService {
	return &scheduleService{
		db:        db,
		pr:        pr,
		publisher: publisher,
		scheduler: scheduler,
		notifier:  notifier,
	}
}

// Schedule persists one scheduled post row per platform under a shared job
// id, then arms a single timer for the whole group. Nothing is persisted
// when validation fails.
func (s *scheduleService) Schedule(ctx context.Context, userID int64, req *transfer.ScheduleRequest) (*transfer.ScheduleResponse, error) {
	if len(req.Platforms) == 0 {
		return nil, fmt.Errorf("%w: at least one platform is required", ErrInvalidRequest)
	}
	if req.Caption == "" {
		return nil, fmt.Errorf("%w: caption is required", ErrInvalidRequest)
	}

	fireAt, err := parseFutureTime(req.ScheduledTime)
	if err != nil {
		return nil, err
	}

	// Scheduled posts carry at most one image across all platforms.
	var mediaURLs []string
	if len(req.MediaURLs) > 0 {
		mediaURLs = req.MediaURLs[:1]
	}

	accounts := make(map[string]int64, len(req.Platforms))
	for _, platformKey := range req.Platforms {
		acc, err := s.publisher.ResolveAccount(ctx, userID, platformKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
		}
		accounts[platformKey] = acc.ID
	}

	jobID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, platformKey := range req.Platforms {
		post := &models.Post{
			UserID:        userID,
			AccountID:     accounts[platformKey],
			JobID:         jobID,
			Platform:      platformKey,
			ExternalID:    models.ExternalIDScheduled,
			Caption:       req.Caption,
			MediaURLs:     mediaURLs,
			MediaType:     req.MediaType,
			PageID:        req.FacebookPageID,
			Status:        models.PostStatusScheduled,
			ScheduledTime: fireAt,
		}
		if _, err := s.pr.Create(ctx, tx, post); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if err := s.scheduler.Arm(jobID, fireAt); err != nil && !errors.Is(err, ErrAlreadyArmed) {
		slog.Error("failed to arm scheduled job", "job_id", jobID, "error", err)
		return nil, err
	}

	s.notifier.Notify(ctx, userID, models.NotificationPostScheduled,
		fmt.Sprintf("Post scheduled for %s on %d platform(s)", fireAt.Format(time.RFC3339), len(req.Platforms)))

	return &transfer.ScheduleResponse{
		JobID:         jobID,
		ScheduledTime: fireAt,
		PostsCount:    len(req.Platforms),
		Platforms:     req.Platforms,
	}, nil
}

// Update rewrites the pending rows and re-arms the timer at the new time.
func (s *scheduleService) Update(ctx context.Context, userID int64, jobID string, req *transfer.ScheduleUpdate) error {
	if req.Caption == "" {
		return fmt.Errorf("%w: caption is required", ErrInvalidRequest)
	}

	fireAt, err := parseFutureTime(req.ScheduledTime)
	if err != nil {
		return err
	}

	var mediaURLs []string
	if len(req.MediaURLs) > 0 {
		mediaURLs = req.MediaURLs[:1]
	}

	rows, err := s.pr.UpdateScheduled(ctx, jobID, userID, req.Caption, mediaURLs, fireAt)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrJobNotFound
	}

	if err := s.scheduler.Disarm(jobID); err != nil {
		slog.Warn("failed to disarm job before rescheduling", "job_id", jobID, "error", err)
	}
	if err := s.scheduler.Arm(jobID, fireAt); err != nil && !errors.Is(err, ErrAlreadyArmed) {
		return err
	}
	return nil
}

// Cancel removes the pending rows and the timer. Cancelling a job that
// already fired reports ErrJobNotFound because its rows are no longer in
// the scheduled state.
func (s *scheduleService) Cancel(ctx context.Context, userID int64, jobID string) error {
	rows, err := s.pr.DeleteScheduledByJobID(ctx, jobID, userID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrJobNotFound
	}

	if err := s.scheduler.Disarm(jobID); err != nil {
		slog.Warn("failed to disarm cancelled job", "job_id", jobID, "error", err)
	}
	return nil
}

// Reload re-arms a timer for every pending scheduled job. Called once at
// startup so schedules survive restarts; jobs whose time already passed
// fire immediately.
func (s *scheduleService) Reload(ctx context.Context) error {
	posts, err := s.pr.ListPendingScheduled(ctx)
	if err != nil {
		return err
	}

	jobs := make(map[string]time.Time)
	for _, post := range posts {
		if _, ok := jobs[post.JobID]; !ok {
			jobs[post.JobID] = post.ScheduledTime
		}
	}

	for jobID, fireAt := range jobs {
		if err := s.scheduler.Arm(jobID, fireAt); err != nil {
			if errors.Is(err, ErrAlreadyArmed) {
				continue
			}
			slog.Error("failed to restore scheduled job", "job_id", jobID, "error", err)
			return err
		}
	}

	if len(jobs) > 0 {
		slog.Info("restored scheduled jobs", "count", len(jobs))
	}
	return nil
}

func parseFutureTime(value string) (time.Time, error) {
	fireAt, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: scheduled time must be RFC 3339", ErrInvalidRequest)
	}
	if !fireAt.After(time.Now()) {
		return time.Time{}, fmt.Errorf("%w: scheduled time must be in the future", ErrInvalidRequest)
	}
	return fireAt.UTC(), nil
}
