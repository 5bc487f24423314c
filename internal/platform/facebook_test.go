package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fbAccount() *Account {
	return &Account{
		Platform:    Facebook,
		AccountID:   "user-1",
		AccessToken: "user-token",
		Pages: []FacebookPage{
			{ID: "page-1", Name: "First", AccessToken: "page-1-token"},
			{ID: "page-2", Name: "Second", AccessToken: "page-2-token"},
		},
	}
}

func TestResolveFacebookTarget(t *testing.T) {
	acc := fbAccount()

	id, token, err := resolveFacebookTarget(acc, "page-2")
	if err != nil || id != "page-2" || token != "page-2-token" {
		t.Errorf("explicit page: got (%q, %q, %v)", id, token, err)
	}

	id, token, err = resolveFacebookTarget(acc, "")
	if err != nil || id != "page-1" || token != "page-1-token" {
		t.Errorf("default page: got (%q, %q, %v)", id, token, err)
	}

	if _, _, err := resolveFacebookTarget(acc, "page-unknown"); err == nil {
		t.Error("unknown page id should be rejected")
	}

	noPages := &Account{AccountID: "user-1", AccessToken: "user-token"}
	id, token, err = resolveFacebookTarget(noPages, "")
	if err != nil || id != "user-1" || token != "user-token" {
		t.Errorf("no pages: got (%q, %q, %v)", id, token, err)
	}
}

func TestFacebookPublishTextPostsToFeed(t *testing.T) {
	var gotPath, gotMessage, gotToken string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotMessage = r.PostFormValue("message")
		gotToken = r.PostFormValue("access_token")
		fmt.Fprint(w, `{"id":"page-1_111"}`)
	}))
	defer srv.Close()

	a := NewFacebookAdapter()
	a.BaseURL = srv.URL

	id, err := a.Publish(context.Background(), fbAccount(), &Content{Caption: "hello"})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "page-1_111" {
		t.Errorf("Publish returned id %q", id)
	}
	if gotPath != "/page-1/feed" {
		t.Errorf("text post hit %q, want /page-1/feed", gotPath)
	}
	if gotMessage != "hello" || gotToken != "page-1-token" {
		t.Errorf("form carried message=%q token=%q", gotMessage, gotToken)
	}
}

func TestFacebookPublishSinglePhoto(t *testing.T) {
	var gotPath, gotURL string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotURL = r.PostFormValue("url")
		fmt.Fprint(w, `{"id":"222","post_id":"page-1_222"}`)
	}))
	defer srv.Close()

	a := NewFacebookAdapter()
	a.BaseURL = srv.URL

	content := &Content{Caption: "pic", MediaURLs: []string{"http://cdn.example.com/a.jpg"}}
	id, err := a.Publish(context.Background(), fbAccount(), content)
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "page-1_222" {
		t.Errorf("photo post should prefer post_id, got %q", id)
	}
	if gotPath != "/page-1/photos" {
		t.Errorf("photo post hit %q, want /page-1/photos", gotPath)
	}
	if gotURL != "http://cdn.example.com/a.jpg" {
		t.Errorf("form carried url=%q", gotURL)
	}
}

func TestFacebookPublishCarouselUploadsUnpublished(t *testing.T) {
	var photoCalls int
	var feedForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.URL.Path {
		case "/page-1/photos":
			photoCalls++
			if r.PostFormValue("published") != "false" {
				t.Errorf("carousel image %d was not uploaded unpublished", photoCalls)
			}
			fmt.Fprintf(w, `{"id":"fbid-%d"}`, photoCalls)
		case "/page-1/feed":
			feedForm = r.PostForm
			fmt.Fprint(w, `{"id":"page-1_333"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	a := NewFacebookAdapter()
	a.BaseURL = srv.URL

	content := &Content{
		Caption:   "three pics",
		MediaURLs: []string{"http://c/1.jpg", "http://c/2.jpg", "http://c/3.jpg"},
	}
	id, err := a.Publish(context.Background(), fbAccount(), content)
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "page-1_333" {
		t.Errorf("Publish returned id %q", id)
	}
	if photoCalls != 3 {
		t.Errorf("uploaded %d images, want 3", photoCalls)
	}
	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("attached_media[%d]", i)
		want := fmt.Sprintf(`{"media_fbid":"fbid-%d"}`, i+1)
		if got := feedForm[key]; len(got) != 1 || got[0] != want {
			t.Errorf("feed form %s = %v, want %s", key, got, want)
		}
	}
}

func TestFacebookPublishGraphErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`)
	}))
	defer srv.Close()

	a := NewFacebookAdapter()
	a.BaseURL = srv.URL

	_, err := a.Publish(context.Background(), fbAccount(), &Content{Caption: "hello"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid OAuth access token") {
		t.Errorf("error %q should carry the Graph message", err.Error())
	}
	if !strings.Contains(err.Error(), "code 190") {
		t.Errorf("error %q should carry the Graph code", err.Error())
	}
}

func TestFacebookPostURL(t *testing.T) {
	a := NewFacebookAdapter()
	if got := a.PostURL(fbAccount(), "page-1_111"); got != "https://www.facebook.com/page-1_111" {
		t.Errorf("PostURL = %q", got)
	}
}
