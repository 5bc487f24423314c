package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const graphBaseURL = "https://graph.facebook.com/v18.0"

type graphErrorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

type graphIDResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

// graphPost sends a form-encoded POST to the Graph API and decodes the
// object-id response. Platform rejections come back as *APIError, network
// failures as *TransportError.
func graphPost(ctx context.Context, client *http.Client, platform, rawURL string, form url.Values) (*graphIDResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Platform: platform, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Platform: platform, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, graphError(platform, resp.StatusCode, body)
	}

	var result graphIDResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &APIError{Platform: platform, StatusCode: resp.StatusCode, Message: "unparseable response: " + string(body)}
	}
	return &result, nil
}

func graphGet(ctx context.Context, client *http.Client, platform, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{Platform: platform, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Platform: platform, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return graphError(platform, resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

func graphError(platform string, status int, body []byte) *APIError {
	var ge graphErrorResponse
	if err := json.Unmarshal(body, &ge); err == nil && ge.Error.Message != "" {
		return &APIError{
			Platform:   platform,
			StatusCode: status,
			Code:       ge.Error.Code,
			Subcode:    ge.Error.ErrorSubcode,
			Message:    ge.Error.Message,
		}
	}
	return &APIError{Platform: platform, StatusCode: status, Message: strings.TrimSpace(string(body))}
}
