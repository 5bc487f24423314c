package job

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/adnaan-2/contentflow/internal/platform"
	"github.com/adnaan-2/contentflow/internal/repository"
	"github.com/adnaan-2/contentflow/internal/service"
)

// AnalyticsJob pulls engagement counts for recently published Facebook and
// Instagram posts. The other platforms do not expose metrics on the
// publishing credentials.
type AnalyticsJob struct {
	pr        repository.PostRepository
	publisher service.PublishService

	BaseURL string
	Client  *http.Client
}

func NewAnalyticsJob(pr repository.PostRepository, publisher service.PublishService) *AnalyticsJob {
	return &AnalyticsJob{
		pr:        pr,
		publisher: publisher,
		BaseURL:   "https://graph.facebook.com/v18.0",
		Client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type facebookInsights struct {
	Likes struct {
		Summary struct {
			TotalCount int64 `json:"total_count"`
		} `json:"summary"`
	} `json:"likes"`
	Comments struct {
		Summary struct {
			TotalCount int64 `json:"total_count"`
		} `json:"summary"`
	} `json:"comments"`
	Shares struct {
		Count int64 `json:"count"`
	} `json:"shares"`
}

type instagramInsights struct {
	LikeCount     int64 `json:"like_count"`
	CommentsCount int64 `json:"comments_count"`
}

// CollectAnalytics refreshes metrics for posts published within the last
// week. Failures on individual posts are logged and skipped.
func (c *AnalyticsJob) CollectAnalytics() {
	ctx := context.Background()

	since := time.Now().Add(-7 * 24 * time.Hour)
	platforms := []string{models.PlatformFacebook, models.PlatformInstagram}

	posts, err := c.pr.ListRecentPublished(ctx, platforms, since)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	accounts := make(map[string]*platform.Account)

	for _, post := range posts {
		cacheKey := post.Platform + "/" + fmt.Sprint(post.UserID)
		acc, ok := accounts[cacheKey]
		if !ok {
			var err error
			acc, err = c.publisher.ResolveAccount(ctx, post.UserID, post.Platform)
			if err != nil {
				slog.Info("skipping analytics, account unavailable",
					"platform", post.Platform, "user_id", post.UserID)
				continue
			}
			accounts[cacheKey] = acc
		}
		token := pickToken(acc, post)

		analytics, err := c.fetch(ctx, post, token)
		if err != nil {
			slog.Info("failed to fetch analytics", "post_id", post.ID, "error", err.Error())
			continue
		}

		if err := c.pr.UpdateAnalytics(ctx, post.ID, analytics); err != nil {
			slog.Info("failed to store analytics", "post_id", post.ID, "error", err.Error())
		}
	}
}

// pickToken returns the token Graph accepts for the post. Facebook page
// posts need the page token, not the user token.
func pickToken(acc *platform.Account, post *models.Post) string {
	if post.Platform != models.PlatformFacebook || len(acc.Pages) == 0 {
		return acc.AccessToken
	}
	for _, page := range acc.Pages {
		if page.ID == post.PageID {
			return page.AccessToken
		}
	}
	return acc.Pages[0].AccessToken
}

func (c *AnalyticsJob) fetch(ctx context.Context, post *models.Post, token string) (*models.PostAnalytics, error) {
	switch post.Platform {
	case models.PlatformFacebook:
		var insights facebookInsights
		fields := "likes.summary(true),comments.summary(true),shares"
		if err := c.getJSON(ctx, post.ExternalID, fields, token, &insights); err != nil {
			return nil, err
		}
		likes := insights.Likes.Summary.TotalCount
		comments := insights.Comments.Summary.TotalCount
		shares := insights.Shares.Count
		return &models.PostAnalytics{
			Likes:      likes,
			Comments:   comments,
			Shares:     shares,
			Engagement: likes + comments + shares,
		}, nil

	case models.PlatformInstagram:
		var insights instagramInsights
		if err := c.getJSON(ctx, post.ExternalID, "like_count,comments_count", token, &insights); err != nil {
			return nil, err
		}
		return &models.PostAnalytics{
			Likes:      insights.LikeCount,
			Comments:   insights.CommentsCount,
			Engagement: insights.LikeCount + insights.CommentsCount,
		}, nil

	default:
		return nil, fmt.Errorf("analytics not supported for %s", post.Platform)
	}
}

func (c *AnalyticsJob) getJSON(ctx context.Context, objectID, fields, token string, out any) error {
	params := url.Values{}
	params.Set("fields", fields)
	params.Set("access_token", token)

	endpoint := fmt.Sprintf("%s/%s?%s", c.BaseURL, objectID, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graph returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
