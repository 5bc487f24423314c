package platform

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// APIError is a platform-side rejection carrying the best message the
// platform provided. Code and Subcode are Graph API error fields.
type APIError struct {
	Platform   string
	StatusCode int
	Code       int
	Subcode    int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (status %d, code %d)", e.Platform, e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Platform, e.Message, e.StatusCode)
}

// TransportError marks network-level failures (DNS, refused connections,
// timeouts) so callers can tell "try later" from "fix your input".
type TransportError struct {
	Platform string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s is temporarily unreachable: %v", e.Platform, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err represents an infrastructure failure
// rather than a platform rejection.
func IsUnavailable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// mediaNotReady recognizes Instagram's "container still processing"
// rejection, the only platform error class worth retrying.
func mediaNotReady(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == 9007 || apiErr.Subcode == 2207027 {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "not ready") || strings.Contains(msg, "media id is not available")
}
