package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// igFixture wires an adapter against a fake Graph API whose behavior is
// scripted per endpoint.
type igFixture struct {
	adapter *InstagramAdapter
	sleeps  []time.Duration
	srvURL  string

	statusResponses  []string // status_code values returned in order
	publishFailures  int      // media_publish "not ready" rejections before success
	publishCalls     int
	statusCalls      int
	containerCreated bool
}

func newIGFixture(t *testing.T) *igFixture {
	t.Helper()
	f := &igFixture{}

	mux := http.NewServeMux()
	// image HEAD probe
	mux.HandleFunc("/image.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", "1024")
	})
	// account probe
	mux.HandleFunc("/ig-business-id", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"ig-business-id"}`)
	})
	mux.HandleFunc("/ig-business-id/media", func(w http.ResponseWriter, r *http.Request) {
		f.containerCreated = true
		fmt.Fprint(w, `{"id":"container-1"}`)
	})
	mux.HandleFunc("/container-1", func(w http.ResponseWriter, r *http.Request) {
		status := "FINISHED"
		if f.statusCalls < len(f.statusResponses) {
			status = f.statusResponses[f.statusCalls]
		}
		f.statusCalls++
		fmt.Fprintf(w, `{"status_code":%q}`, status)
	})
	mux.HandleFunc("/ig-business-id/media_publish", func(w http.ResponseWriter, r *http.Request) {
		f.publishCalls++
		if f.publishCalls <= f.publishFailures {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"Media ID is not available","code":9007,"error_subcode":2207027}}`)
			return
		}
		fmt.Fprint(w, `{"id":"media-99"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f.adapter = NewInstagramAdapter()
	f.adapter.BaseURL = srv.URL
	f.adapter.sleep = func(d time.Duration) { f.sleeps = append(f.sleeps, d) }
	f.srvURL = srv.URL
	return f
}

func (f *igFixture) account() *Account {
	return &Account{Platform: Instagram, BusinessID: "ig-business-id", AccessToken: "token"}
}

func (f *igFixture) content() *Content {
	return &Content{Caption: "hello", MediaURLs: []string{f.srvURL + "/image.jpg"}}
}

func TestInstagramPublishFirstAttemptSucceeds(t *testing.T) {
	f := newIGFixture(t)

	id, err := f.adapter.Publish(context.Background(), f.account(), f.content())
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "media-99" {
		t.Errorf("Publish returned id %q, want media-99", id)
	}
	if !f.containerCreated {
		t.Error("no media container was created")
	}
	if len(f.sleeps) != 0 {
		t.Errorf("first-attempt success should not sleep, slept %v", f.sleeps)
	}
}

func TestInstagramPublishRetriesWhileNotReady(t *testing.T) {
	f := newIGFixture(t)
	f.publishFailures = 2

	id, err := f.adapter.Publish(context.Background(), f.account(), f.content())
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "media-99" {
		t.Errorf("Publish returned id %q, want media-99", id)
	}
	if f.publishCalls != 3 {
		t.Errorf("publish was called %d times, want 3", f.publishCalls)
	}
	// Publish backoff after each not-ready rejection: 3s then 4.5s.
	wantPublishSleeps := []time.Duration{3 * time.Second, 4500 * time.Millisecond}
	var publishSleeps []time.Duration
	for _, d := range f.sleeps {
		if d >= 3*time.Second {
			publishSleeps = append(publishSleeps, d)
		}
	}
	for i, want := range wantPublishSleeps {
		if i >= len(publishSleeps) || publishSleeps[i] != want {
			t.Errorf("publish backoff %d = %v, want %v", i, publishSleeps, wantPublishSleeps)
			break
		}
	}
}

func TestInstagramPublishInProgressSkipsPublishAttempt(t *testing.T) {
	f := newIGFixture(t)
	f.publishFailures = 1
	f.statusResponses = []string{"IN_PROGRESS", "FINISHED"}

	id, err := f.adapter.Publish(context.Background(), f.account(), f.content())
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "media-99" {
		t.Errorf("Publish returned id %q, want media-99", id)
	}
	// attempt 1 publishes (fails not-ready), attempt 2 sees IN_PROGRESS and
	// skips, attempt 3 publishes.
	if f.publishCalls != 2 {
		t.Errorf("publish was called %d times, want 2", f.publishCalls)
	}
}

func TestInstagramPublishAbortsOnContainerError(t *testing.T) {
	f := newIGFixture(t)
	f.publishFailures = igMaxPublishAttempts
	f.statusResponses = []string{"ERROR"}

	_, err := f.adapter.Publish(context.Background(), f.account(), f.content())
	if err == nil {
		t.Fatal("expected error when the container reports ERROR")
	}
	if !strings.Contains(err.Error(), "could not process") {
		t.Errorf("error %q should say the media could not be processed", err.Error())
	}
	if f.publishCalls != 1 {
		t.Errorf("publish was called %d times after container ERROR, want 1", f.publishCalls)
	}
}

func TestInstagramPublishGivesUpAfterMaxAttempts(t *testing.T) {
	f := newIGFixture(t)
	f.publishFailures = igMaxPublishAttempts + 1

	_, err := f.adapter.Publish(context.Background(), f.account(), f.content())
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !strings.Contains(err.Error(), "took too long") {
		t.Errorf("error %q should report the timeout", err.Error())
	}
	if f.publishCalls != igMaxPublishAttempts {
		t.Errorf("publish was called %d times, want %d", f.publishCalls, igMaxPublishAttempts)
	}
}

func TestInstagramPublishNonRetryableErrorFailsFast(t *testing.T) {
	f := newIGFixture(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/image.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
	})
	mux.HandleFunc("/ig-business-id", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"ig-business-id"}`)
	})
	mux.HandleFunc("/ig-business-id/media", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"container-1"}`)
	})
	publishCalls := 0
	mux.HandleFunc("/ig-business-id/media_publish", func(w http.ResponseWriter, r *http.Request) {
		publishCalls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid parameter","code":100}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f.adapter.BaseURL = srv.URL
	_, err := f.adapter.Publish(context.Background(), f.account(), &Content{
		Caption:   "hello",
		MediaURLs: []string{srv.URL + "/image.jpg"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if publishCalls != 1 {
		t.Errorf("non-retryable rejection retried %d times, want 1 call", publishCalls)
	}
}

func TestInstagramPublishValidation(t *testing.T) {
	f := newIGFixture(t)

	acc := f.account()
	acc.BusinessID = ""
	if _, err := f.adapter.Publish(context.Background(), acc, f.content()); err == nil {
		t.Error("expected error without a business account id")
	}

	if _, err := f.adapter.Publish(context.Background(), f.account(), &Content{Caption: "x"}); err == nil {
		t.Error("expected error without media")
	}

	two := &Content{MediaURLs: []string{"http://a.invalid/1.jpg", "http://a.invalid/2.jpg"}}
	if _, err := f.adapter.Publish(context.Background(), f.account(), two); err == nil {
		t.Error("expected error with two images")
	}
}

func TestInstagramValidateImageRejectsWrongType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/gif")
	}))
	defer srv.Close()

	a := NewInstagramAdapter()
	err := a.validateImage(context.Background(), srv.URL+"/anim.gif")
	if err == nil || !strings.Contains(err.Error(), "JPEG or PNG") {
		t.Errorf("gif should be rejected, got %v", err)
	}
}

func TestNextDelayCapped(t *testing.T) {
	d := igInitialStatusDelay
	for i := 0; i < 20; i++ {
		d = nextDelay(d, 1.2, igMaxStatusDelay)
	}
	if d != igMaxStatusDelay {
		t.Errorf("status delay converged to %v, want cap %v", d, igMaxStatusDelay)
	}

	d = igInitialPublishDelay
	for i := 0; i < 20; i++ {
		d = nextDelay(d, 1.5, igMaxPublishDelay)
	}
	if d != igMaxPublishDelay {
		t.Errorf("publish delay converged to %v, want cap %v", d, igMaxPublishDelay)
	}
}
