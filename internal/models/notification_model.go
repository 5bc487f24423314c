package models

import "time"

type Notification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Kind      string    `db:"kind" json:"kind"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	NotificationPostPublished   = "post_published"
	NotificationPostScheduled   = "post_scheduled"
	NotificationScheduleResult  = "schedule_result"
	NotificationAccountExpiring = "account_expiring"
)
