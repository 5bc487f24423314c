package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	igMaxPublishAttempts = 8
	igMaxImageBytes      = 8 * 1024 * 1024

	igInitialStatusDelay   = 2 * time.Second
	igMaxStatusDelay       = 8 * time.Second
	igInitialPublishDelay  = 3 * time.Second
	igMaxPublishDelay      = 12 * time.Second
	igContainerStatusError = "ERROR"
	igContainerInProgress  = "IN_PROGRESS"
)

// InstagramAdapter publishes through Meta's two-phase flow: create a media
// container, wait for asynchronous processing, then publish it. The wait is
// a bounded poll loop with geometric backoff.
type InstagramAdapter struct {
	BaseURL     string
	Client      *http.Client // probes and status polls
	MediaClient *http.Client // container create and publish

	sleep func(time.Duration)
}

func NewInstagramAdapter() *InstagramAdapter {
	return &InstagramAdapter{
		BaseURL:     graphBaseURL,
		Client:      &http.Client{Timeout: 10 * time.Second},
		MediaClient: &http.Client{Timeout: 30 * time.Second},
		sleep:       time.Sleep,
	}
}

func (a *InstagramAdapter) Platform() string { return Instagram }

func (a *InstagramAdapter) Publish(ctx context.Context, acc *Account, content *Content) (string, error) {
	if acc.BusinessID == "" {
		return "", errors.New("instagram account has no business account id; reconnect it as a business account")
	}
	if len(content.MediaURLs) != 1 {
		return "", fmt.Errorf("instagram posts require exactly one image, got %d", len(content.MediaURLs))
	}

	if err := a.probeAccount(ctx, acc); err != nil {
		return "", fmt.Errorf("instagram token check failed: %w", err)
	}
	if err := a.validateImage(ctx, content.MediaURLs[0]); err != nil {
		return "", err
	}

	creationID, err := a.createContainer(ctx, acc, content)
	if err != nil {
		return "", err
	}

	return a.publishContainer(ctx, acc, creationID)
}

func (a *InstagramAdapter) PostURL(acc *Account, externalID string) string {
	if acc.Username != "" {
		return "https://www.instagram.com/" + acc.Username
	}
	return "https://www.instagram.com"
}

func (a *InstagramAdapter) probeAccount(ctx context.Context, acc *Account) error {
	var probe struct {
		ID string `json:"id"`
	}
	probeURL := fmt.Sprintf("%s/%s?fields=id&access_token=%s", a.BaseURL, acc.BusinessID, url.QueryEscape(acc.AccessToken))
	return graphGet(ctx, a.Client, Instagram, probeURL, &probe)
}

func (a *InstagramAdapter) validateImage(ctx context.Context, mediaURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, mediaURL, nil)
	if err != nil {
		return err
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return &TransportError{Platform: Instagram, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image url returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "image/jpeg") && !strings.Contains(contentType, "image/png") {
		return fmt.Errorf("instagram accepts only JPEG or PNG images, got %q", contentType)
	}
	if resp.ContentLength > igMaxImageBytes {
		return fmt.Errorf("image is %d bytes; instagram's limit is 8 MB", resp.ContentLength)
	}
	return nil
}

func (a *InstagramAdapter) createContainer(ctx context.Context, acc *Account, content *Content) (string, error) {
	form := url.Values{}
	form.Set("image_url", content.MediaURLs[0])
	form.Set("caption", content.Caption)
	form.Set("media_type", "IMAGE")
	form.Set("access_token", acc.AccessToken)

	result, err := graphPost(ctx, a.MediaClient, Instagram, fmt.Sprintf("%s/%s/media", a.BaseURL, acc.BusinessID), form)
	if err != nil {
		return "", fmt.Errorf("creating media container: %w", err)
	}
	if result.ID == "" {
		return "", errors.New("instagram returned no media container id")
	}
	return result.ID, nil
}

// publishContainer attempts media_publish up to igMaxPublishAttempts times.
// Before each retry it polls the container status: ERROR aborts, IN_PROGRESS
// widens the poll interval and skips the publish attempt. A publish call
// rejected as not-ready backs off on its own, steeper, schedule.
func (a *InstagramAdapter) publishContainer(ctx context.Context, acc *Account, creationID string) (string, error) {
	statusDelay := igInitialStatusDelay
	publishDelay := igInitialPublishDelay

	for attempt := 1; attempt <= igMaxPublishAttempts; attempt++ {
		if attempt > 1 {
			a.sleep(statusDelay)

			status, err := a.containerStatus(ctx, acc, creationID)
			if err != nil {
				slog.Info("instagram container status check failed", "attempt", attempt, "error", err)
			} else if status == igContainerStatusError {
				return "", fmt.Errorf("instagram could not process the media container (creation id %s)", creationID)
			} else if status == igContainerInProgress {
				statusDelay = nextDelay(statusDelay, 1.2, igMaxStatusDelay)
				continue
			}
		}

		form := url.Values{}
		form.Set("creation_id", creationID)
		form.Set("access_token", acc.AccessToken)

		result, err := graphPost(ctx, a.MediaClient, Instagram, fmt.Sprintf("%s/%s/media_publish", a.BaseURL, acc.BusinessID), form)
		if err == nil {
			if result.ID == "" {
				return "", errors.New("instagram returned no media id on publish")
			}
			return result.ID, nil
		}

		if !mediaNotReady(err) {
			return "", err
		}

		slog.Info("instagram media not ready, backing off", "attempt", attempt, "delay", publishDelay)
		a.sleep(publishDelay)
		publishDelay = nextDelay(publishDelay, 1.5, igMaxPublishDelay)
	}

	return "", fmt.Errorf("instagram took too long to process the media after %d attempts", igMaxPublishAttempts)
}

func (a *InstagramAdapter) containerStatus(ctx context.Context, acc *Account, creationID string) (string, error) {
	var status struct {
		StatusCode string `json:"status_code"`
		Status     string `json:"status"`
	}
	statusURL := fmt.Sprintf("%s/%s?fields=status_code,status&access_token=%s", a.BaseURL, creationID, url.QueryEscape(acc.AccessToken))
	if err := graphGet(ctx, a.Client, Instagram, statusURL, &status); err != nil {
		return "", err
	}
	return status.StatusCode, nil
}

func nextDelay(current time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		return max
	}
	return next
}
