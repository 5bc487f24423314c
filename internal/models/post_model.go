package models

import "time"

type Post struct {
	ID            int64         `db:"id" json:"id"`
	UserID        int64         `db:"user_id" json:"user_id"`
	AccountID     int64         `db:"account_id" json:"account_id"`
	JobID         string        `db:"job_id" json:"job_id,omitempty"`
	Platform      string        `db:"platform" json:"platform"`
	ExternalID    string        `db:"external_id" json:"external_id"`
	PostURL       string        `db:"post_url" json:"post_url"`
	Caption       string        `db:"caption" json:"caption"`
	MediaURLs     []string      `db:"media_urls" json:"media_urls"`
	MediaType     string        `db:"media_type" json:"media_type"`
	PageID        string        `db:"page_id" json:"page_id,omitempty"` // Facebook target page
	Status        string        `db:"status" json:"status"` // published, scheduled, failed
	ErrorMessage  string        `db:"error_message" json:"error_message,omitempty"`
	ScheduledTime time.Time     `db:"scheduled_time" json:"scheduled_time,omitempty"`
	PublishedTime time.Time     `db:"published_time" json:"published_time,omitempty"`
	Analytics     PostAnalytics `json:"analytics"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

type PostAnalytics struct {
	Likes      int64 `db:"likes" json:"likes"`
	Comments   int64 `db:"comments" json:"comments"`
	Shares     int64 `db:"shares" json:"shares"`
	Views      int64 `db:"views" json:"views"`
	Engagement int64 `db:"engagement" json:"engagement"`
	Reach      int64 `db:"reach" json:"reach"`
}

const (
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

// Sentinel external ids for rows that never reached a platform.
const (
	ExternalIDScheduled = "scheduled"
	ExternalIDFailed    = "failed"
)
