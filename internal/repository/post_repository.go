package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/lib/pq"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	ListScheduledByJobID(ctx context.Context, jobID string) ([]*models.Post, error)
	ListPendingScheduled(ctx context.Context) ([]*models.Post, error)
	ListRecentPublished(ctx context.Context, platforms []string, since time.Time) ([]*models.Post, error)
	MarkPublished(ctx context.Context, id int64, externalID, postURL string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	UpdateScheduled(ctx context.Context, jobID string, userID int64, caption string, mediaURLs []string, scheduledTime time.Time) (int64, error)
	DeleteScheduledByJobID(ctx context.Context, jobID string, userID int64) (int64, error)
	UpdateAnalytics(ctx context.Context, id int64, a *models.PostAnalytics) error
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, account_id, job_id, platform, external_id, post_url, caption,
	media_urls, media_type, page_id, status, error_message, scheduled_time, published_time,
	likes, comments, shares, views, engagement, reach, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var post models.Post
	var scheduledTime, publishedTime sql.NullTime
	err := row.Scan(&post.ID, &post.UserID, &post.AccountID, &post.JobID, &post.Platform,
		&post.ExternalID, &post.PostURL, &post.Caption, pq.Array(&post.MediaURLs), &post.MediaType,
		&post.PageID, &post.Status, &post.ErrorMessage, &scheduledTime, &publishedTime,
		&post.Analytics.Likes, &post.Analytics.Comments, &post.Analytics.Shares,
		&post.Analytics.Views, &post.Analytics.Engagement, &post.Analytics.Reach,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	post.ScheduledTime = scheduledTime.Time
	post.PublishedTime = publishedTime.Time
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, account_id, job_id, platform, external_id, post_url, caption,
			media_urls, media_type, page_id, status, error_message, scheduled_time, published_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	var id int64
	var err error

	args := []any{post.UserID, post.AccountID, post.JobID, post.Platform, post.ExternalID,
		post.PostURL, post.Caption, pq.Array(post.MediaURLs), post.MediaType, post.PageID, post.Status,
		post.ErrorMessage, nullableTime(post.ScheduledTime), nullableTime(post.PublishedTime)}

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *postRepository) ListScheduledByJobID(ctx context.Context, jobID string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE job_id = $1 AND status = $2 ORDER BY id`
	return r.list(ctx, query, jobID, models.PostStatusScheduled)
}

func (r *postRepository) ListPendingScheduled(ctx context.Context) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND job_id <> ''`
	return r.list(ctx, query, models.PostStatusScheduled)
}

func (r *postRepository) ListRecentPublished(ctx context.Context, platforms []string, since time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND platform = ANY($2) AND published_time > $3`
	return r.list(ctx, query, models.PostStatusPublished, pq.Array(platforms), since)
}

func (r *postRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) MarkPublished(ctx context.Context, id int64, externalID, postURL string, publishedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = $1, external_id = $2, post_url = $3, published_time = $4, error_message = '', updated_at = $5
		WHERE id = $6 AND status IN ($7, $1)
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPublished, externalID, postURL,
		publishedAt, time.Now(), id, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE posts
		SET status = $1, external_id = $2, error_message = $3, updated_at = $4
		WHERE id = $5 AND status <> $6
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, models.ExternalIDFailed,
		errorMessage, time.Now(), id, models.PostStatusPublished)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) UpdateScheduled(ctx context.Context, jobID string, userID int64, caption string, mediaURLs []string, scheduledTime time.Time) (int64, error) {
	query := `
		UPDATE posts
		SET caption = $1, media_urls = $2, scheduled_time = $3, updated_at = $4
		WHERE job_id = $5 AND user_id = $6 AND status = $7
	`
	result, err := r.db.ExecContext(ctx, query, caption, pq.Array(mediaURLs), scheduledTime,
		time.Now(), jobID, userID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}

func (r *postRepository) DeleteScheduledByJobID(ctx context.Context, jobID string, userID int64) (int64, error) {
	query := `DELETE FROM posts WHERE job_id = $1 AND user_id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, jobID, userID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}

func (r *postRepository) UpdateAnalytics(ctx context.Context, id int64, a *models.PostAnalytics) error {
	query := `
		UPDATE posts
		SET likes = $1, comments = $2, shares = $3, views = $4, engagement = $5, reach = $6, updated_at = $7
		WHERE id = $8
	`
	_, err := r.db.ExecContext(ctx, query, a.Likes, a.Comments, a.Shares, a.Views, a.Engagement, a.Reach, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
