package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/adnaan-2/contentflow/configs"
	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/adnaan-2/contentflow/internal/platform"
	"github.com/adnaan-2/contentflow/internal/repository"
	"github.com/adnaan-2/contentflow/internal/transfer"
	"github.com/adnaan-2/contentflow/pkg/utils"
)

// ErrInvalidRequest marks request shapes the caller can fix; handlers map
// it to a 400 instead of a 500.
var ErrInvalidRequest = errors.New("invalid publish request")

type PublishService interface {
	PostNow(ctx context.Context, userID int64, req *transfer.PublishRequest) (*transfer.PublishResponse, error)
	PublishTo(ctx context.Context, acc *platform.Account, content *platform.Content) (externalID, postURL string, err error)
	ResolveAccount(ctx context.Context, userID int64, platformKey string) (*platform.Account, error)
}

type publishService struct {
	cfg      config.Config
	registry *platform.Registry
	pr       repository.PostRepository
	sa       repository.SocialAccountRepository
	notifier Notifier
}

func NewPublishService(cfg config.Config, registry *platform.Registry, pr repository.PostRepository, sa repository.SocialAccountRepository, notifier Notifier) PublishService {
	return &publishService{
		cfg:      cfg,
		registry: registry,
		pr:       pr,
		sa:       sa,
		notifier: notifier,
	}
}

// PostNow fans the payload out to every requested platform sequentially.
// One platform failing never stops the others; the response carries both
// the successes and the per-platform error strings.
func (s *publishService) PostNow(ctx context.Context, userID int64, req *transfer.PublishRequest) (*transfer.PublishResponse, error) {
	if len(req.Platforms) == 0 {
		return nil, fmt.Errorf("%w: at least one platform is required", ErrInvalidRequest)
	}
	if req.Caption == "" && len(req.MediaURLs) == 0 {
		return nil, fmt.Errorf("%w: caption or media is required", ErrInvalidRequest)
	}

	resp := &transfer.PublishResponse{}

	for _, platformKey := range req.Platforms {
		content := &platform.Content{
			Caption:        req.Caption,
			MediaURLs:      req.MediaURLs,
			MediaType:      req.MediaType,
			FacebookPageID: req.FacebookPageID,
		}

		if err := validateContent(platformKey, content); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %s", platformKey, err.Error()))
			continue
		}

		acc, err := s.ResolveAccount(ctx, userID, platformKey)
		if err != nil {
			slog.Error("failed to resolve account", "platform", platformKey, "user_id", userID, "error", err)
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %s", platformKey, err.Error()))
			continue
		}

		externalID, postURL, err := s.PublishTo(ctx, acc, content)
		if err != nil {
			slog.Error("publish failed", "platform", platformKey, "user_id", userID, "error", err)
			s.recordResult(ctx, userID, acc, req, platformKey, "", "", err)
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %s", platformKey, err.Error()))
			continue
		}

		s.recordResult(ctx, userID, acc, req, platformKey, externalID, postURL, nil)
		resp.Results = append(resp.Results, transfer.PlatformResult{
			Platform:      platformKey,
			PostID:        externalID,
			PostURL:       postURL,
			Status:        models.PostStatusPublished,
			PublishedTime: time.Now().UTC(),
		})
	}

	s.notifyOutcome(ctx, userID, resp)

	if len(resp.Results) == 0 && len(resp.Errors) > 0 {
		return resp, fmt.Errorf("all platforms failed: %d errors", len(resp.Errors))
	}
	return resp, nil
}

// PublishTo runs one adapter call. The scheduler's worker uses it directly
// so that immediate and scheduled posts share the same publish path.
func (s *publishService) PublishTo(ctx context.Context, acc *platform.Account, content *platform.Content) (string, string, error) {
	adapter, err := s.registry.Get(acc.Platform)
	if err != nil {
		return "", "", err
	}

	externalID, err := adapter.Publish(ctx, acc, content)
	if err != nil {
		return "", "", err
	}
	return externalID, adapter.PostURL(acc, externalID), nil
}

// ResolveAccount loads the active connection for the platform and decrypts
// its tokens into the shape adapters consume.
func (s *publishService) ResolveAccount(ctx context.Context, userID int64, platformKey string) (*platform.Account, error) {
	record, err := s.sa.GetActive(ctx, userID, platformKey)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("no connected %s account", platformKey)
	}

	accessToken, err := utils.Decrypt(record.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	acc := &platform.Account{
		ID:          record.ID,
		UserID:      record.UserID,
		Platform:    record.Platform,
		AccountID:   record.AccountID,
		Username:    record.AccountUsername,
		AccessToken: accessToken,
	}

	if record.Platform == models.PlatformX && record.RefreshToken != "" {
		secret, err := utils.Decrypt(record.RefreshToken, []byte(s.cfg.SecretKey))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt token secret: %w", err)
		}
		acc.TokenSecret = secret
	}

	if len(record.PlatformData) > 0 {
		switch record.Platform {
		case models.PlatformFacebook:
			var data transfer.FacebookPlatformData
			if err := json.Unmarshal(record.PlatformData, &data); err != nil {
				slog.Warn("invalid facebook platform data", "account_id", record.ID, "error", err)
				break
			}
			for _, p := range data.Pages {
				acc.Pages = append(acc.Pages, platform.FacebookPage{
					ID:          p.ID,
					Name:        p.Name,
					AccessToken: p.AccessToken,
				})
			}
		case models.PlatformInstagram:
			var data transfer.InstagramPlatformData
			if err := json.Unmarshal(record.PlatformData, &data); err != nil {
				slog.Warn("invalid instagram platform data", "account_id", record.ID, "error", err)
				break
			}
			acc.BusinessID = data.BusinessAccountID
		}
	}

	return acc, nil
}

// validateContent enforces each platform's minimum payload before any API
// call is made.
func validateContent(platformKey string, content *platform.Content) error {
	switch platformKey {
	case platform.Instagram:
		if len(content.MediaURLs) != 1 {
			return errors.New("requires exactly one image")
		}
	case platform.X:
		if content.Caption == "" {
			return errors.New("requires text content")
		}
	case platform.Facebook, platform.LinkedIn:
		if content.Caption == "" && len(content.MediaURLs) == 0 {
			return errors.New("requires text or media")
		}
	}
	return nil
}

func (s *publishService) recordResult(ctx context.Context, userID int64, acc *platform.Account, req *transfer.PublishRequest, platformKey, externalID, postURL string, publishErr error) {
	post := &models.Post{
		UserID:    userID,
		AccountID: acc.ID,
		Platform:  platformKey,
		Caption:   req.Caption,
		MediaURLs: req.MediaURLs,
		MediaType: req.MediaType,
		PageID:    req.FacebookPageID,
	}
	if publishErr != nil {
		post.ExternalID = models.ExternalIDFailed
		post.Status = models.PostStatusFailed
		post.ErrorMessage = publishErr.Error()
	} else {
		post.ExternalID = externalID
		post.PostURL = postURL
		post.Status = models.PostStatusPublished
		post.PublishedTime = time.Now().UTC()
	}

	if _, err := s.pr.Create(ctx, nil, post); err != nil {
		slog.Error("failed to record post", "platform", platformKey, "user_id", userID, "error", err)
	}
}

func (s *publishService) notifyOutcome(ctx context.Context, userID int64, resp *transfer.PublishResponse) {
	switch {
	case len(resp.Results) > 0 && len(resp.Errors) == 0:
		s.notifier.Notify(ctx, userID, models.NotificationPostPublished,
			fmt.Sprintf("Post published to %d platform(s)", len(resp.Results)))
	case len(resp.Results) > 0:
		s.notifier.Notify(ctx, userID, models.NotificationPostPublished,
			fmt.Sprintf("Post published to %d platform(s), %d failed", len(resp.Results), len(resp.Errors)))
	case len(resp.Errors) > 0:
		s.notifier.Notify(ctx, userID, models.NotificationPostPublished,
			fmt.Sprintf("Post failed on all %d platform(s)", len(resp.Errors)))
	}
}
