package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/adnaan-2/contentflow/internal/platform"
	"github.com/adnaan-2/contentflow/internal/transfer"
	"github.com/hibiken/asynq"
)

type stubPostRepo struct {
	scheduled []*models.Post
	published map[int64]string
	failed    map[int64]string
}

func newStubPostRepo(posts ...*models.Post) *stubPostRepo {
	return &stubPostRepo{
		scheduled: posts,
		published: make(map[int64]string),
		failed:    make(map[int64]string),
	}
}

func (r *stubPostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	return 0, nil
}

func (r *stubPostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) { return nil, nil }

func (r *stubPostRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	return nil, nil
}

func (r *stubPostRepo) ListScheduledByJobID(ctx context.Context, jobID string) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range r.scheduled {
		if p.JobID == jobID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubPostRepo) ListPendingScheduled(ctx context.Context) ([]*models.Post, error) {
	return nil, nil
}

func (r *stubPostRepo) ListRecentPublished(ctx context.Context, platforms []string, since time.Time) ([]*models.Post, error) {
	return nil, nil
}

func (r *stubPostRepo) MarkPublished(ctx context.Context, id int64, externalID, postURL string, publishedAt time.Time) error {
	r.published[id] = externalID
	return nil
}

func (r *stubPostRepo) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	r.failed[id] = errorMessage
	return nil
}

func (r *stubPostRepo) UpdateScheduled(ctx context.Context, jobID string, userID int64, caption string, mediaURLs []string, scheduledTime time.Time) (int64, error) {
	return 0, nil
}

func (r *stubPostRepo) DeleteScheduledByJobID(ctx context.Context, jobID string, userID int64) (int64, error) {
	return 0, nil
}

func (r *stubPostRepo) UpdateAnalytics(ctx context.Context, id int64, a *models.PostAnalytics) error {
	return nil
}

func (r *stubPostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	return false, nil
}

func (r *stubPostRepo) Remove(ctx context.Context, id int64) error { return nil }

// stubPublisher fails for the platforms listed in failPlatforms and succeeds
// for everything else.
type stubPublisher struct {
	failPlatforms map[string]error
	published     []string
}

func (p *stubPublisher) PostNow(ctx context.Context, userID int64, req *transfer.PublishRequest) (*transfer.PublishResponse, error) {
	return nil, errors.New("not used")
}

func (p *stubPublisher) ResolveAccount(ctx context.Context, userID int64, platformKey string) (*platform.Account, error) {
	if err, ok := p.failPlatforms["resolve:"+platformKey]; ok {
		return nil, err
	}
	return &platform.Account{ID: 1, UserID: userID, Platform: platformKey, AccessToken: "token"}, nil
}

func (p *stubPublisher) PublishTo(ctx context.Context, acc *platform.Account, content *platform.Content) (string, string, error) {
	if err, ok := p.failPlatforms[acc.Platform]; ok {
		return "", "", err
	}
	p.published = append(p.published, acc.Platform)
	return acc.Platform + "-post-1", "https://" + acc.Platform + ".example.com/post-1", nil
}

type stubNotifier struct {
	notes []string
}

func (n *stubNotifier) Notify(ctx context.Context, userID int64, kind, message string) {
	n.notes = append(n.notes, kind+": "+message)
}

func scheduledPost(id int64, jobID, platformKey string) *models.Post {
	return &models.Post{
		ID:            id,
		UserID:        7,
		JobID:         jobID,
		Platform:      platformKey,
		ExternalID:    models.ExternalIDScheduled,
		Caption:       "scheduled caption",
		MediaURLs:     []string{"http://cdn.example.com/a.jpg"},
		Status:        models.PostStatusScheduled,
		ScheduledTime: time.Now().Add(-time.Minute),
	}
}

func TestPublishJobPublishesEveryRow(t *testing.T) {
	repo := newStubPostRepo(
		scheduledPost(1, "job-1", models.PlatformFacebook),
		scheduledPost(2, "job-1", models.PlatformLinkedIn),
		scheduledPost(3, "other-job", models.PlatformX),
	)
	publisher := &stubPublisher{}
	notifier := &stubNotifier{}
	w := NewWorker(repo, publisher, notifier)

	if err := w.PublishJob(context.Background(), "job-1"); err != nil {
		t.Fatalf("PublishJob returned error: %v", err)
	}
	if len(repo.published) != 2 {
		t.Errorf("marked %d rows published, want 2", len(repo.published))
	}
	if _, ok := repo.published[3]; ok {
		t.Error("a row from another job was published")
	}
	if len(notifier.notes) != 1 || !strings.Contains(notifier.notes[0], "2 published, 0 failed") {
		t.Errorf("notifications = %v", notifier.notes)
	}
}

func TestPublishJobFailureDoesNotBlockOtherPlatforms(t *testing.T) {
	repo := newStubPostRepo(
		scheduledPost(1, "job-1", models.PlatformInstagram),
		scheduledPost(2, "job-1", models.PlatformFacebook),
	)
	publisher := &stubPublisher{failPlatforms: map[string]error{
		models.PlatformInstagram: errors.New("media could not be processed"),
	}}
	notifier := &stubNotifier{}
	w := NewWorker(repo, publisher, notifier)

	if err := w.PublishJob(context.Background(), "job-1"); err != nil {
		t.Fatalf("per-platform failures must not fail the task: %v", err)
	}
	if len(repo.published) != 1 {
		t.Errorf("marked %d rows published, want 1", len(repo.published))
	}
	if msg := repo.failed[1]; !strings.Contains(msg, "could not be processed") {
		t.Errorf("failed row message = %q", msg)
	}
	if len(notifier.notes) != 1 || !strings.Contains(notifier.notes[0], "1 published, 1 failed") {
		t.Errorf("notifications = %v", notifier.notes)
	}
}

func TestPublishJobResolveFailureMarksRowFailed(t *testing.T) {
	repo := newStubPostRepo(scheduledPost(1, "job-1", models.PlatformX))
	publisher := &stubPublisher{failPlatforms: map[string]error{
		"resolve:" + models.PlatformX: errors.New("no connected x account"),
	}}
	w := NewWorker(repo, publisher, &stubNotifier{})

	if err := w.PublishJob(context.Background(), "job-1"); err != nil {
		t.Fatalf("PublishJob returned error: %v", err)
	}
	if msg := repo.failed[1]; !strings.Contains(msg, "no connected") {
		t.Errorf("failed row message = %q", msg)
	}
}

func TestPublishJobEmptyJobIsNoOp(t *testing.T) {
	repo := newStubPostRepo()
	notifier := &stubNotifier{}
	w := NewWorker(repo, &stubPublisher{}, notifier)

	if err := w.PublishJob(context.Background(), "gone"); err != nil {
		t.Fatalf("PublishJob on empty job returned error: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Errorf("empty job should not notify, got %v", notifier.notes)
	}
}

func TestHandlePublishScheduledTask(t *testing.T) {
	repo := newStubPostRepo(scheduledPost(1, "job-1", models.PlatformFacebook))
	w := NewWorker(repo, &stubPublisher{}, &stubNotifier{})

	payload, _ := json.Marshal(PublishScheduledPayload{JobID: "job-1"})
	task := asynq.NewTask(TaskTypePublishScheduled, payload)
	if err := w.HandlePublishScheduledTask(context.Background(), task); err != nil {
		t.Fatalf("HandlePublishScheduledTask returned error: %v", err)
	}
	if len(repo.published) != 1 {
		t.Errorf("marked %d rows published, want 1", len(repo.published))
	}
}

func TestHandlePublishScheduledTaskBadPayload(t *testing.T) {
	w := NewWorker(newStubPostRepo(), &stubPublisher{}, &stubNotifier{})

	task := asynq.NewTask(TaskTypePublishScheduled, []byte("{not json"))
	if err := w.HandlePublishScheduledTask(context.Background(), task); err == nil {
		t.Error("expected an error for a malformed payload")
	}
}
