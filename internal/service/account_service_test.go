package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	config "github.com/adnaan-2/contentflow/configs"
	"github.com/adnaan-2/contentflow/internal/cache"
	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/adnaan-2/contentflow/pkg/utils"
)

type connAccountRepo struct {
	fakeAccountRepo
	byID     map[int64]*models.SocialAccount
	replaced []*models.SocialAccount
	tokens   map[int64]string
	removed  []int64
}

func newConnAccountRepo() *connAccountRepo {
	return &connAccountRepo{
		byID:   make(map[int64]*models.SocialAccount),
		tokens: make(map[int64]string),
	}
}

func (r *connAccountRepo) Replace(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	copied := *sa
	r.replaced = append(r.replaced, &copied)
	return int64(len(r.replaced)), nil
}

func (r *connAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	return r.byID[id], nil
}

func (r *connAccountRepo) SetToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	r.tokens[id] = accessToken
	return nil
}

func (r *connAccountRepo) Remove(ctx context.Context, id int64) error {
	r.removed = append(r.removed, id)
	return nil
}

type accountFixture struct {
	svc   *accountService
	repo  *connAccountRepo
	store *cache.RequestTokenStore
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	repo := newConnAccountRepo()
	store := cache.NewRequestTokenStore(rdb)
	cfg := config.Config{
		SecretKey:           testSecretKey,
		FacebookAppID:       "fb-app",
		FacebookAppSecret:   "fb-secret",
		FacebookRedirectURI: "https://app.example.com/auth/facebook/callback",
		LinkedInClientID:    "li-client",
		LinkedInRedirectURI: "https://app.example.com/auth/linkedin/callback",
		XConsumerKey:        "x-consumer",
		XConsumerSecret:     "x-consumer-secret",
		XRedirectURI:        "https://app.example.com/auth/x/callback",
	}

	svc := NewAccountService(cfg, repo, store).(*accountService)
	return &accountFixture{svc: svc, repo: repo, store: store}
}

func TestGetAuthURLFacebookCarriesState(t *testing.T) {
	f := newAccountFixture(t)

	raw, err := f.svc.GetAuthURL(context.Background(), 7, models.PlatformFacebook, "session-jwt")
	if err != nil {
		t.Fatalf("GetAuthURL returned error: %v", err)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("auth url does not parse: %v", err)
	}
	q := parsed.Query()
	if q.Get("client_id") != "fb-app" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("state") != "session-jwt" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("redirect_uri") != "https://app.example.com/auth/facebook/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestGetAuthURLUnsupportedPlatform(t *testing.T) {
	f := newAccountFixture(t)

	if _, err := f.svc.GetAuthURL(context.Background(), 7, "myspace", "s"); err == nil {
		t.Error("expected an error for an unknown platform")
	}
}

func TestXAuthorizeURLStoresHandshake(t *testing.T) {
	f := newAccountFixture(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/request_token" {
			http.NotFound(w, r)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			t.Error("request token call is not OAuth-signed")
		}
		w.Write([]byte("oauth_token=rt-1&oauth_token_secret=rs-1&oauth_callback_confirmed=true"))
	}))
	defer srv.Close()
	f.svc.xBaseURL = srv.URL

	raw, err := f.svc.GetAuthURL(context.Background(), 7, models.PlatformX, "ignored")
	if err != nil {
		t.Fatalf("GetAuthURL returned error: %v", err)
	}
	if !strings.Contains(raw, "oauth_token=rt-1") {
		t.Errorf("authorize url = %q, want it to carry the request token", raw)
	}

	stored, err := f.store.Take(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("handshake state was not stored: %v", err)
	}
	var state handshakeState
	if err := json.Unmarshal([]byte(stored), &state); err != nil {
		t.Fatalf("handshake state is not json: %v", err)
	}
	if state.Secret != "rs-1" || state.UserID != 7 {
		t.Errorf("handshake state = %+v", state)
	}
}

func TestXAuthorizeURLRejectsUnconfirmedCallback(t *testing.T) {
	f := newAccountFixture(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("oauth_token=rt-1&oauth_token_secret=rs-1&oauth_callback_confirmed=false"))
	}))
	defer srv.Close()
	f.svc.xBaseURL = srv.URL

	if _, err := f.svc.GetAuthURL(context.Background(), 7, models.PlatformX, ""); err == nil {
		t.Error("expected an error when the callback is not confirmed")
	}
}

func TestHandleOAuth1CallbackStoresEncryptedTokens(t *testing.T) {
	f := newAccountFixture(t)

	x := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/access_token" {
			http.NotFound(w, r)
			return
		}
		body, _ := url.ParseQuery(readBody(t, r))
		if body.Get("oauth_verifier") != "verifier-1" {
			t.Errorf("oauth_verifier = %q", body.Get("oauth_verifier"))
		}
		w.Write([]byte("oauth_token=at-1&oauth_token_secret=ats-1&user_id=99&screen_name=janedoe"))
	}))
	defer x.Close()
	f.svc.xBaseURL = x.URL

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"id_str":                  "99",
			"name":                    "Jane Doe",
			"screen_name":             "janedoe",
			"profile_image_url_https": "https://pbs.example.com/jane.jpg",
		})
	}))
	defer api.Close()
	f.svc.xAPIBaseURL = api.URL

	state, _ := json.Marshal(handshakeState{Secret: "rs-1", UserID: 7})
	if err := f.store.Put(context.Background(), "rt-1", string(state)); err != nil {
		t.Fatalf("seeding handshake state: %v", err)
	}

	if err := f.svc.HandleOAuth1Callback(context.Background(), "rt-1", "verifier-1"); err != nil {
		t.Fatalf("HandleOAuth1Callback returned error: %v", err)
	}

	if len(f.repo.replaced) != 1 {
		t.Fatalf("replaced %d accounts, want 1", len(f.repo.replaced))
	}
	acc := f.repo.replaced[0]
	if acc.Platform != models.PlatformX || acc.UserID != 7 || acc.AccountID != "99" {
		t.Errorf("stored account = %+v", acc)
	}
	if acc.AccountName != "Jane Doe" {
		t.Errorf("account name = %q, want the verified display name", acc.AccountName)
	}
	token, err := utils.Decrypt(acc.AccessToken, []byte(testSecretKey))
	if err != nil || token != "at-1" {
		t.Errorf("decrypted access token = %q, %v", token, err)
	}
	secret, err := utils.Decrypt(acc.RefreshToken, []byte(testSecretKey))
	if err != nil || secret != "ats-1" {
		t.Errorf("decrypted token secret = %q, %v", secret, err)
	}
}

func TestHandleOAuth1CallbackReplayRejected(t *testing.T) {
	f := newAccountFixture(t)

	// No handshake state in the store: an expired or replayed callback.
	err := f.svc.HandleOAuth1Callback(context.Background(), "rt-unknown", "verifier-1")
	if err == nil {
		t.Error("expected an error for an unknown request token")
	}
}

func TestHandleOAuth2CallbackRequiresCode(t *testing.T) {
	f := newAccountFixture(t)

	if err := f.svc.HandleOAuth2Callback(context.Background(), 7, models.PlatformFacebook, ""); err == nil {
		t.Error("expected an error for an empty code")
	}
}

func TestRefreshTokenFacebookExchangesLongLived(t *testing.T) {
	f := newAccountFixture(t)

	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/access_token" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("grant_type") != "fb_exchange_token" {
			t.Errorf("grant_type = %q", r.URL.Query().Get("grant_type"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fb-renewed",
			"token_type":   "bearer",
			"expires_in":   5184000,
		})
	}))
	defer graph.Close()
	f.svc.graphBaseURL = graph.URL

	acc := testSocialAccount(t, 1, models.PlatformFacebook)
	if err := f.svc.RefreshToken(context.Background(), acc); err != nil {
		t.Fatalf("RefreshToken returned error: %v", err)
	}

	stored, ok := f.repo.tokens[1]
	if !ok {
		t.Fatal("no token was persisted")
	}
	token, err := utils.Decrypt(stored, []byte(testSecretKey))
	if err != nil || token != "fb-renewed" {
		t.Errorf("decrypted renewed token = %q, %v", token, err)
	}
}

func TestRefreshTokenXIsNoOp(t *testing.T) {
	f := newAccountFixture(t)

	acc := testSocialAccount(t, 2, models.PlatformX)
	if err := f.svc.RefreshToken(context.Background(), acc); err != nil {
		t.Errorf("RefreshToken for x = %v, want nil", err)
	}
	if len(f.repo.tokens) != 0 {
		t.Error("x refresh must not touch stored tokens")
	}
}

func TestDisconnectRevokesAndRemoves(t *testing.T) {
	f := newAccountFixture(t)

	var revoked bool
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/permissions") {
			revoked = true
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer graph.Close()
	f.svc.graphBaseURL = graph.URL

	acc := testSocialAccount(t, 3, models.PlatformFacebook)
	f.repo.byID[3] = acc

	if err := f.svc.Disconnect(context.Background(), 7, 3); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}
	if !revoked {
		t.Error("graph permissions were not revoked")
	}
	if len(f.repo.removed) != 1 || f.repo.removed[0] != 3 {
		t.Errorf("removed = %v", f.repo.removed)
	}
}

func TestDisconnectRejectsOtherUsersAccount(t *testing.T) {
	f := newAccountFixture(t)

	acc := testSocialAccount(t, 3, models.PlatformFacebook)
	acc.UserID = 99
	f.repo.byID[3] = acc

	if err := f.svc.Disconnect(context.Background(), 7, 3); err == nil {
		t.Error("expected an error when the account belongs to someone else")
	}
	if len(f.repo.removed) != 0 {
		t.Error("another user's account was removed")
	}
}

func readBody(t *testing.T, r *http.Request) string {
	t.Helper()
	if err := r.ParseForm(); err != nil {
		t.Fatalf("parsing form body: %v", err)
	}
	return r.PostForm.Encode()
}
