package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type FacebookAdapter struct {
	BaseURL string
	Client  *http.Client
}

func NewFacebookAdapter() *FacebookAdapter {
	return &FacebookAdapter{
		BaseURL: graphBaseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *FacebookAdapter) Platform() string { return Facebook }

func (a *FacebookAdapter) Publish(ctx context.Context, acc *Account, content *Content) (string, error) {
	targetID, token, err := resolveFacebookTarget(acc, content.FacebookPageID)
	if err != nil {
		return "", err
	}

	switch len(content.MediaURLs) {
	case 0:
		return a.publishText(ctx, targetID, token, content.Caption)
	case 1:
		return a.publishPhoto(ctx, targetID, token, content.Caption, content.MediaURLs[0])
	default:
		return a.publishCarousel(ctx, targetID, token, content.Caption, content.MediaURLs)
	}
}

func (a *FacebookAdapter) PostURL(acc *Account, externalID string) string {
	return "https://www.facebook.com/" + externalID
}

// resolveFacebookTarget picks the page (and page token) to post as. An
// explicit page id must match a connected page; otherwise the first page
// wins, and accounts without pages post to the user feed.
func resolveFacebookTarget(acc *Account, pageID string) (string, string, error) {
	if pageID != "" {
		for _, page := range acc.Pages {
			if page.ID == pageID {
				return page.ID, page.AccessToken, nil
			}
		}
		return "", "", fmt.Errorf("facebook page %s is not connected to this account", pageID)
	}
	if len(acc.Pages) > 0 {
		return acc.Pages[0].ID, acc.Pages[0].AccessToken, nil
	}
	return acc.AccountID, acc.AccessToken, nil
}

func (a *FacebookAdapter) publishText(ctx context.Context, targetID, token, message string) (string, error) {
	if message == "" {
		return "", errors.New("facebook text posts require a caption")
	}
	form := url.Values{}
	form.Set("message", message)
	form.Set("access_token", token)

	result, err := graphPost(ctx, a.Client, Facebook, fmt.Sprintf("%s/%s/feed", a.BaseURL, targetID), form)
	if err != nil {
		return "", err
	}
	return firstNonEmpty(result.ID, result.PostID), nil
}

func (a *FacebookAdapter) publishPhoto(ctx context.Context, targetID, token, caption, mediaURL string) (string, error) {
	form := url.Values{}
	form.Set("url", mediaURL)
	form.Set("access_token", token)
	if caption != "" {
		form.Set("caption", caption)
	}

	result, err := graphPost(ctx, a.Client, Facebook, fmt.Sprintf("%s/%s/photos", a.BaseURL, targetID), form)
	if err != nil {
		return "", err
	}
	return firstNonEmpty(result.PostID, result.ID), nil
}

// publishCarousel uploads each image unpublished to obtain a real media
// fbid, then attaches them all to a single feed post.
func (a *FacebookAdapter) publishCarousel(ctx context.Context, targetID, token, message string, mediaURLs []string) (string, error) {
	fbids := make([]string, 0, len(mediaURLs))
	for _, mediaURL := range mediaURLs {
		form := url.Values{}
		form.Set("url", mediaURL)
		form.Set("published", "false")
		form.Set("access_token", token)

		result, err := graphPost(ctx, a.Client, Facebook, fmt.Sprintf("%s/%s/photos", a.BaseURL, targetID), form)
		if err != nil {
			return "", fmt.Errorf("uploading carousel image: %w", err)
		}
		if result.ID == "" {
			return "", errors.New("facebook returned no media fbid for carousel image")
		}
		fbids = append(fbids, result.ID)
	}

	form := url.Values{}
	form.Set("message", message)
	form.Set("access_token", token)
	for i, fbid := range fbids {
		form.Set(fmt.Sprintf("attached_media[%d]", i), fmt.Sprintf(`{"media_fbid":"%s"}`, fbid))
	}

	result, err := graphPost(ctx, a.Client, Facebook, fmt.Sprintf("%s/%s/feed", a.BaseURL, targetID), form)
	if err != nil {
		return "", err
	}
	return firstNonEmpty(result.ID, result.PostID), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
