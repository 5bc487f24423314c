package transfer

import "time"

type PublishRequest struct {
	Caption        string   `json:"caption"`
	MediaURLs      []string `json:"mediaUrls"`
	MediaType      string   `json:"mediaType"`
	Platforms      []string `json:"platforms"`
	FacebookPageID string   `json:"facebookPageId"`
}

type PlatformResult struct {
	Platform      string    `json:"platform"`
	PostID        string    `json:"postId"`
	PostURL       string    `json:"postUrl,omitempty"`
	Status        string    `json:"status"`
	PublishedTime time.Time `json:"publishedTime"`
}

type PublishResponse struct {
	Results []PlatformResult `json:"results"`
	Errors  []string         `json:"errors,omitempty"`
}

type ScheduleRequest struct {
	Caption        string   `json:"caption"`
	MediaURLs      []string `json:"mediaUrls"`
	MediaType      string   `json:"mediaType"`
	Platforms      []string `json:"platforms"`
	ScheduledTime  string   `json:"scheduledTime"` // RFC 3339
	FacebookPageID string   `json:"facebookPageId"`
}

type ScheduleResponse struct {
	JobID         string    `json:"jobId"`
	ScheduledTime time.Time `json:"scheduledTime"`
	PostsCount    int       `json:"postsCount"`
	Platforms     []string  `json:"platforms"`
}

type ScheduleUpdate struct {
	Caption       string   `json:"caption"`
	MediaURLs     []string `json:"mediaUrls"`
	ScheduledTime string   `json:"scheduledTime"` // RFC 3339
}
