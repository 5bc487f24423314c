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

	"github.com/adnaan-2/contentflow/pkg/oauth1"
)

const xMaxTextLength = 280

type XAdapter struct {
	BaseURL        string
	Client         *http.Client
	ConsumerKey    string
	ConsumerSecret string
}

func NewXAdapter(consumerKey, consumerSecret string) *XAdapter {
	return &XAdapter{
		BaseURL:        "https://api.x.com",
		Client:         &http.Client{Timeout: 15 * time.Second},
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
	}
}

func (a *XAdapter) Platform() string { return X }

func (a *XAdapter) Publish(ctx context.Context, acc *Account, content *Content) (string, error) {
	text := strings.TrimSpace(content.Caption)
	if text == "" {
		if len(content.MediaURLs) > 0 {
			return "", errors.New("media-only posts are not supported on X; add a caption")
		}
		return "", errors.New("x posts require text")
	}
	if len(content.MediaURLs) > 0 {
		slog.Warn("x media upload is not supported, posting text only", "media_count", len(content.MediaURLs))
	}

	body, err := json.Marshal(map[string]string{"text": TruncateText(text)})
	if err != nil {
		return "", err
	}

	endpoint := a.BaseURL + "/2/tweets"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	signer := oauth1.NewSigner(a.ConsumerKey, a.ConsumerSecret, acc.AccessToken, acc.TokenSecret)
	header, err := signer.AuthorizationHeader(http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("signing request: %w", err)
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return "", &TransportError{Platform: X, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Platform: X, Err: err}
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", xError(resp.StatusCode, respBody)
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if result.Data.ID == "" {
		return "", errors.New("x returned no post id")
	}
	return result.Data.ID, nil
}

func (a *XAdapter) PostURL(acc *Account, externalID string) string {
	if acc.Username != "" {
		return fmt.Sprintf("https://x.com/%s/status/%s", acc.Username, externalID)
	}
	return "https://x.com/i/web/status/" + externalID
}

// TruncateText caps text at 280 characters, reserving three for an ellipsis
// marker when truncation happens. Measured in runes, the unit X counts.
func TruncateText(text string) string {
	runes := []rune(text)
	if len(runes) <= xMaxTextLength {
		return text
	}
	return string(runes[:xMaxTextLength-3]) + "..."
}

func xError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized:
		return &APIError{Platform: X, StatusCode: status, Message: "X authorization expired or was revoked; reconnect the account"}
	case http.StatusForbidden:
		return &APIError{Platform: X, StatusCode: status, Message: "X rejected the post; it may be a duplicate or the app lacks write permission"}
	case http.StatusTooManyRequests:
		return &APIError{Platform: X, StatusCode: status, Message: "X rate limit reached; try again later"}
	}

	var parsed struct {
		Detail string `json:"detail"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if len(parsed.Errors) > 0 && parsed.Errors[0].Message != "" {
			return &APIError{Platform: X, StatusCode: status, Message: parsed.Errors[0].Message}
		}
		if parsed.Detail != "" {
			return &APIError{Platform: X, StatusCode: status, Message: parsed.Detail}
		}
	}
	return &APIError{Platform: X, StatusCode: status, Message: strings.TrimSpace(string(body))}
}
