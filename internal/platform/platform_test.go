package platform

import (
	"errors"
	"testing"
)

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry(
		NewFacebookAdapter(),
		NewInstagramAdapter(),
		NewLinkedInAdapter(),
		NewXAdapter("k", "s"),
	)

	for _, key := range []string{Facebook, Instagram, LinkedIn, X} {
		a, err := r.Get(key)
		if err != nil {
			t.Errorf("Get(%q) returned error: %v", key, err)
			continue
		}
		if a.Platform() != key {
			t.Errorf("Get(%q) returned adapter for %q", key, a.Platform())
		}
	}

	if got := len(r.Platforms()); got != 4 {
		t.Errorf("Platforms() has %d entries, want 4", got)
	}
}

func TestRegistryUnknownPlatform(t *testing.T) {
	r := NewRegistry(NewFacebookAdapter())

	_, err := r.Get("myspace")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("Get(myspace) = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestMediaNotReady(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&APIError{Platform: Instagram, Code: 9007}, true},
		{&APIError{Platform: Instagram, Subcode: 2207027}, true},
		{&APIError{Platform: Instagram, Message: "Media ID is not available"}, true},
		{&APIError{Platform: Instagram, Message: "The media is not ready for publishing"}, true},
		{&APIError{Platform: Instagram, Code: 190, Message: "Invalid OAuth access token"}, false},
		{errors.New("plain error"), false},
		{&TransportError{Platform: Instagram, Err: errors.New("timeout")}, false},
	}

	for _, tt := range tests {
		if got := mediaNotReady(tt.err); got != tt.want {
			t.Errorf("mediaNotReady(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
