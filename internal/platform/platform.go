// Package platform translates a generic post payload into per-platform API
// calls. Each adapter owns one platform's publish protocol; the registry is
// the only dispatch point, so adding a platform means adding one adapter.
package platform

import (
	"context"
	"fmt"
)

const (
	Facebook  = "facebook"
	Instagram = "instagram"
	LinkedIn  = "linkedin"
	X         = "x"
)

// Content is the platform-independent post payload.
type Content struct {
	Caption        string
	MediaURLs      []string
	MediaType      string
	FacebookPageID string
}

// FacebookPage is one managed page with its own access token, parsed from
// the social account's platform_data blob.
type FacebookPage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

// Account carries the resolved, decrypted credentials an adapter needs.
// The dispatcher builds it from the persisted social account record.
type Account struct {
	ID          int64
	UserID      int64
	Platform    string
	AccountID   string
	Username    string
	AccessToken string
	TokenSecret string         // OAuth1 token secret, X only
	Pages       []FacebookPage // Facebook only
	BusinessID  string         // Instagram business account id
}

type Adapter interface {
	Platform() string
	Publish(ctx context.Context, acc *Account, content *Content) (externalID string, err error)
	PostURL(acc *Account, externalID string) string
}

type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

func (r *Registry) Get(platform string) (Adapter, error) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	return a, nil
}

func (r *Registry) Platforms() []string {
	keys := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		keys = append(keys, k)
	}
	return keys
}
