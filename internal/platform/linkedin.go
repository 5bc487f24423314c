package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type LinkedInAdapter struct {
	BaseURL      string
	Client       *http.Client
	UploadClient *http.Client
}

func NewLinkedInAdapter() *LinkedInAdapter {
	return &LinkedInAdapter{
		BaseURL:      "https://api.linkedin.com/v2",
		Client:       &http.Client{Timeout: 20 * time.Second},
		UploadClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *LinkedInAdapter) Platform() string { return LinkedIn }

func (a *LinkedInAdapter) Publish(ctx context.Context, acc *Account, content *Content) (string, error) {
	author := "urn:li:person:" + acc.AccountID

	mediaCategory := "NONE"
	var media []map[string]any

	// Media upload failures degrade to a text-only post instead of failing
	// the whole publish.
	if len(content.MediaURLs) > 0 {
		assets, err := a.uploadImages(ctx, acc, author, content.MediaURLs)
		if err != nil {
			slog.Warn("linkedin media upload failed, falling back to text-only post", "error", err)
		} else {
			mediaCategory = "IMAGE"
			for _, asset := range assets {
				media = append(media, map[string]any{
					"status": "READY",
					"media":  asset,
				})
			}
		}
	}

	shareContent := map[string]any{
		"shareCommentary":    map[string]string{"text": content.Caption},
		"shareMediaCategory": mediaCategory,
	}
	if len(media) > 0 {
		shareContent["media"] = media
	}

	payload := map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+acc.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := a.Client.Do(req)
	if err != nil {
		return "", &TransportError{Platform: LinkedIn, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Platform: LinkedIn, Err: err}
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", linkedInError(resp.StatusCode, respBody)
	}

	if id := resp.Header.Get("X-RestLi-Id"); id != "" {
		return id, nil
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || result.ID == "" {
		return "", errors.New("linkedin returned no post id")
	}
	return result.ID, nil
}

func (a *LinkedInAdapter) PostURL(acc *Account, externalID string) string {
	return "https://www.linkedin.com/feed/update/" + externalID
}

// uploadImages runs LinkedIn's 3-step asset flow per image: register an
// upload slot, download the source bytes, PUT them to the upload URL.
// Returns the asset URNs to reference from the post payload.
func (a *LinkedInAdapter) uploadImages(ctx context.Context, acc *Account, owner string, mediaURLs []string) ([]string, error) {
	assets := make([]string, 0, len(mediaURLs))
	for _, mediaURL := range mediaURLs {
		uploadURL, asset, err := a.registerUpload(ctx, acc, owner)
		if err != nil {
			return nil, fmt.Errorf("registering upload: %w", err)
		}

		imageBytes, err := a.downloadImage(ctx, mediaURL)
		if err != nil {
			return nil, fmt.Errorf("downloading source image: %w", err)
		}

		if err := a.putAsset(ctx, acc, uploadURL, imageBytes); err != nil {
			return nil, fmt.Errorf("uploading asset bytes: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func (a *LinkedInAdapter) registerUpload(ctx context.Context, acc *Account, owner string) (uploadURL, asset string, err error) {
	payload := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   owner,
			"serviceRelationships": []map[string]string{
				{"relationshipType": "OWNER", "identifier": "urn:li:userGeneratedContent"},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/assets?action=registerUpload", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+acc.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return "", "", &TransportError{Platform: LinkedIn, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", &TransportError{Platform: LinkedIn, Err: err}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", linkedInError(resp.StatusCode, respBody)
	}

	var result struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism map[string]struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", "", fmt.Errorf("parsing register response: %w", err)
	}
	for _, mech := range result.Value.UploadMechanism {
		if mech.UploadURL != "" {
			return mech.UploadURL, result.Value.Asset, nil
		}
	}
	return "", "", errors.New("linkedin returned no upload url")
}

func (a *LinkedInAdapter) downloadImage(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.UploadClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image url returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (a *LinkedInAdapter) putAsset(ctx context.Context, acc *Account, uploadURL string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+acc.AccessToken)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := a.UploadClient.Do(req)
	if err != nil {
		return &TransportError{Platform: LinkedIn, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return linkedInError(resp.StatusCode, body)
	}
	return nil
}

func linkedInError(status int, body []byte) error {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return &APIError{Platform: LinkedIn, StatusCode: status, Message: parsed.Message}
	}
	return &APIError{Platform: LinkedIn, StatusCode: status, Message: strings.TrimSpace(string(body))}
}
