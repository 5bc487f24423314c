package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/adnaan-2/contentflow/configs"
	"github.com/adnaan-2/contentflow/internal/cache"
	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/adnaan-2/contentflow/internal/repository"
	"github.com/adnaan-2/contentflow/internal/transfer"
	"github.com/adnaan-2/contentflow/pkg/oauth1"
	"github.com/adnaan-2/contentflow/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/linkedin"
)

const (
	facebookScopes  = "pages_show_list,pages_read_engagement,pages_manage_posts,business_management"
	instagramScopes = "instagram_basic,instagram_content_publish,pages_show_list,business_management"
	linkedinScopes  = "openid profile email w_member_social"
)

type AccountService interface {
	GetAuthURL(ctx context.Context, userID int64, platformKey, state string) (string, error)
	HandleOAuth2Callback(ctx context.Context, userID int64, platformKey, code string) error
	HandleOAuth1Callback(ctx context.Context, oauthToken, oauthVerifier string) error
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Disconnect(ctx context.Context, userID, accountID int64) error
	RefreshToken(ctx context.Context, acc *models.SocialAccount) error
}

type accountService struct {
	cfg    config.Config
	sa     repository.SocialAccountRepository
	tokens *cache.RequestTokenStore
	client *http.Client

	graphBaseURL    string
	linkedinBaseURL string
	xBaseURL        string
	xAPIBaseURL     string
}

func NewAccountService(cfg config.Config, sa repository.SocialAccountRepository, tokens *cache.RequestTokenStore) AccountService {
	return &accountService{
		cfg:             cfg,
		sa:              sa,
		tokens:          tokens,
		client:          &http.Client{Timeout: 15 * time.Second},
		graphBaseURL:    "https://graph.facebook.com/v18.0",
		linkedinBaseURL: "https://api.linkedin.com",
		xBaseURL:        "https://api.x.com",
		xAPIBaseURL:     "https://api.twitter.com/1.1",
	}
}

// handshakeState is what the TTL store keeps between the OAuth 1.0a
// authorize redirect and the callback. OAuth 1.0a has no state parameter,
// so the user id rides along with the token secret.
type handshakeState struct {
	Secret string `json:"secret"`
	UserID int64  `json:"user_id"`
}

func (s *accountService) GetAuthURL(ctx context.Context, userID int64, platformKey, state string) (string, error) {
	switch platformKey {
	case models.PlatformFacebook:
		conf := s.facebookOAuthConfig(s.cfg.FacebookRedirectURI, facebookScopes)
		return conf.AuthCodeURL(state), nil

	case models.PlatformInstagram:
		// Instagram publishing rides on Facebook Login for Business.
		conf := s.facebookOAuthConfig(s.cfg.InstagramRedirectURI, instagramScopes)
		return conf.AuthCodeURL(state), nil

	case models.PlatformLinkedIn:
		conf := s.linkedinOAuthConfig()
		return conf.AuthCodeURL(state), nil

	case models.PlatformX:
		return s.xAuthorizeURL(ctx, userID)

	default:
		return "", fmt.Errorf("unsupported platform: %s", platformKey)
	}
}

func (s *accountService) HandleOAuth2Callback(ctx context.Context, userID int64, platformKey, code string) error {
	if code == "" {
		return errors.New("authorization code is empty")
	}
	if userID == 0 {
		return errors.New("user not found")
	}

	switch platformKey {
	case models.PlatformFacebook:
		return s.facebookCallback(ctx, userID, code, s.cfg.FacebookRedirectURI)
	case models.PlatformInstagram:
		return s.instagramCallback(ctx, userID, code)
	case models.PlatformLinkedIn:
		return s.linkedinCallback(ctx, userID, code)
	default:
		return fmt.Errorf("unsupported platform: %s", platformKey)
	}
}

func (s *accountService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return s.sa.ListInfoByUserID(ctx, userID)
}

func (s *accountService) Disconnect(ctx context.Context, userID, accountID int64) error {
	acc, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acc == nil || acc.UserID != userID {
		return errors.New("account not found")
	}

	// Revoking Graph permissions is best effort; the delete proceeds even
	// when Facebook is unreachable.
	if acc.Platform == models.PlatformFacebook || acc.Platform == models.PlatformInstagram {
		if token, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey)); err == nil {
			s.revokeGraphPermissions(ctx, acc.AccountID, token)
		}
	}

	return s.sa.Remove(ctx, accountID)
}

/* Facebook */

func (s *accountService) facebookOAuthConfig(redirectURI, scopes string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.FacebookAppID,
		ClientSecret: s.cfg.FacebookAppSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Split(scopes, ","),
		Endpoint:     facebook.Endpoint,
	}
}

func (s *accountService) facebookCallback(ctx context.Context, userID int64, code, redirectURI string) error {
	conf := s.facebookOAuthConfig(redirectURI, facebookScopes)
	shortToken, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	longLived, err := s.exchangeLongLivedToken(ctx, shortToken.AccessToken)
	if err != nil {
		return err
	}

	userInfo, err := s.facebookUserInfo(ctx, longLived.AccessToken)
	if err != nil {
		return err
	}

	pages, err := s.facebookPages(ctx, longLived.AccessToken)
	if err != nil {
		return err
	}

	platformData := transfer.FacebookPlatformData{}
	for _, p := range pages.Data {
		platformData.Pages = append(platformData.Pages, transfer.FacebookPageData{
			ID:          p.ID,
			Name:        p.Name,
			AccessToken: p.AccessToken,
		})
	}
	rawData, err := json.Marshal(platformData)
	if err != nil {
		return err
	}

	encryptedToken, err := utils.Encrypt([]byte(longLived.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	_, err = s.sa.Replace(ctx, &models.SocialAccount{
		UserID:         userID,
		Platform:       models.PlatformFacebook,
		AccountID:      userInfo.ID,
		AccountName:    userInfo.Name,
		ProfilePicture: userInfo.Picture.Data.URL,
		AccessToken:    encryptedToken,
		TokenExpiresAt: GetExpiresAt(int(longLived.ExpiresIn)),
		Scopes:         facebookScopes,
		PlatformData:   rawData,
		IsActive:       true,
	})
	return err
}

func (s *accountService) instagramCallback(ctx context.Context, userID int64, code string) error {
	conf := s.facebookOAuthConfig(s.cfg.InstagramRedirectURI, instagramScopes)
	shortToken, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	longLived, err := s.exchangeLongLivedToken(ctx, shortToken.AccessToken)
	if err != nil {
		return err
	}

	pages, err := s.facebookPages(ctx, longLived.AccessToken)
	if err != nil {
		return err
	}

	var businessID, linkedPageID string
	for _, p := range pages.Data {
		if p.Instagram.ID != "" {
			businessID = p.Instagram.ID
			linkedPageID = p.ID
			break
		}
	}
	if businessID == "" {
		return errors.New("no Instagram business account is linked to your Facebook pages")
	}

	igInfo, err := s.instagramAccountInfo(ctx, businessID, longLived.AccessToken)
	if err != nil {
		return err
	}

	rawData, err := json.Marshal(transfer.InstagramPlatformData{
		BusinessAccountID: businessID,
		LinkedPageID:      linkedPageID,
	})
	if err != nil {
		return err
	}

	encryptedToken, err := utils.Encrypt([]byte(longLived.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	_, err = s.sa.Replace(ctx, &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformInstagram,
		AccountID:       businessID,
		AccountName:     igInfo.Name,
		AccountUsername: igInfo.Username,
		ProfilePicture:  igInfo.ProfilePicture,
		AccessToken:     encryptedToken,
		TokenExpiresAt:  GetExpiresAt(int(longLived.ExpiresIn)),
		Scopes:          instagramScopes,
		PlatformData:    rawData,
		IsActive:        true,
	})
	return err
}

func (s *accountService) exchangeLongLivedToken(ctx context.Context, shortToken string) (*transfer.FacebookLongLivedToken, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", s.cfg.FacebookAppID)
	params.Set("client_secret", s.cfg.FacebookAppSecret)
	params.Set("fb_exchange_token", shortToken)

	var token transfer.FacebookLongLivedToken
	if err := s.getJSON(ctx, s.graphBaseURL+"/oauth/access_token?"+params.Encode(), &token); err != nil {
		return nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}
	return &token, nil
}

func (s *accountService) facebookUserInfo(ctx context.Context, accessToken string) (*transfer.FacebookUserInfo, error) {
	params := url.Values{}
	params.Set("fields", "id,name,picture")
	params.Set("access_token", accessToken)

	var info transfer.FacebookUserInfo
	if err := s.getJSON(ctx, s.graphBaseURL+"/me?"+params.Encode(), &info); err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	return &info, nil
}

func (s *accountService) facebookPages(ctx context.Context, accessToken string) (*transfer.FacebookPagesResponse, error) {
	params := url.Values{}
	params.Set("fields", "id,name,access_token,instagram_business_account")
	params.Set("access_token", accessToken)

	var pages transfer.FacebookPagesResponse
	if err := s.getJSON(ctx, s.graphBaseURL+"/me/accounts?"+params.Encode(), &pages); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return &pages, nil
}

type instagramAccountInfo struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture_url"`
}

func (s *accountService) instagramAccountInfo(ctx context.Context, businessID, accessToken string) (*instagramAccountInfo, error) {
	params := url.Values{}
	params.Set("fields", "id,username,name,profile_picture_url")
	params.Set("access_token", accessToken)

	var info instagramAccountInfo
	if err := s.getJSON(ctx, s.graphBaseURL+"/"+businessID+"?"+params.Encode(), &info); err != nil {
		return nil, fmt.Errorf("failed to get instagram account info: %w", err)
	}
	return &info, nil
}

func (s *accountService) revokeGraphPermissions(ctx context.Context, accountID, accessToken string) {
	endpoint := fmt.Sprintf("%s/%s/permissions?access_token=%s", s.graphBaseURL, accountID, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		slog.Warn("failed to revoke permissions", "account_id", accountID, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
}

/* LinkedIn */

func (s *accountService) linkedinOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.LinkedInClientID,
		ClientSecret: s.cfg.LinkedInClientSecret,
		RedirectURL:  s.cfg.LinkedInRedirectURI,
		Scopes:       strings.Split(linkedinScopes, " "),
		Endpoint:     linkedin.Endpoint,
	}
}

func (s *accountService) linkedinCallback(ctx context.Context, userID int64, code string) error {
	conf := s.linkedinOAuthConfig()
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	userInfo, err := s.linkedinUserInfo(ctx, token.AccessToken)
	if err != nil {
		return err
	}

	encryptedToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	var encryptedRefresh string
	if token.RefreshToken != "" {
		encryptedRefresh, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	_, err = s.sa.Replace(ctx, &models.SocialAccount{
		UserID:         userID,
		Platform:       models.PlatformLinkedIn,
		AccountID:      userInfo.Sub,
		AccountName:    userInfo.Name,
		ProfilePicture: userInfo.Picture,
		AccessToken:    encryptedToken,
		RefreshToken:   encryptedRefresh,
		TokenExpiresAt: token.Expiry,
		Scopes:         linkedinScopes,
		IsActive:       true,
	})
	return err
}

func (s *accountService) linkedinUserInfo(ctx context.Context, accessToken string) (*transfer.LinkedInUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.linkedinBaseURL+"/v2/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, string(body))
	}

	var info transfer.LinkedInUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

/* X (OAuth 1.0a) */

func (s *accountService) xAuthorizeURL(ctx context.Context, userID int64) (string, error) {
	requestToken, err := s.xRequestToken(ctx)
	if err != nil {
		return "", err
	}
	if !requestToken.CallbackConfirmed {
		return "", errors.New("callback was not confirmed")
	}

	state, err := json.Marshal(handshakeState{Secret: requestToken.TokenSecret, UserID: userID})
	if err != nil {
		return "", err
	}
	if err := s.tokens.Put(ctx, requestToken.Token, string(state)); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/oauth/authorize?oauth_token=%s", s.xBaseURL, url.QueryEscape(requestToken.Token)), nil
}

func (s *accountService) xRequestToken(ctx context.Context) (*transfer.XRequestToken, error) {
	endpoint := s.xBaseURL + "/oauth/request_token"
	signer := oauth1.NewSigner(s.cfg.XConsumerKey, s.cfg.XConsumerSecret, "", "")

	extra := url.Values{}
	extra.Set("oauth_callback", s.cfg.XRedirectURI)

	header, err := signer.AuthorizationHeader(http.MethodPost, endpoint, extra)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(extra.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	values, err := s.doFormRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get request token: %w", err)
	}

	return &transfer.XRequestToken{
		Token:             values.Get("oauth_token"),
		TokenSecret:       values.Get("oauth_token_secret"),
		CallbackConfirmed: values.Get("oauth_callback_confirmed") == "true",
	}, nil
}

func (s *accountService) HandleOAuth1Callback(ctx context.Context, oauthToken, oauthVerifier string) error {
	if oauthToken == "" || oauthVerifier == "" {
		return errors.New("oauth token or verifier is empty")
	}

	raw, err := s.tokens.Take(ctx, oauthToken)
	if err != nil {
		return err
	}
	var state handshakeState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return fmt.Errorf("invalid handshake state: %w", err)
	}

	access, err := s.xAccessToken(ctx, oauthToken, state.Secret, oauthVerifier)
	if err != nil {
		return err
	}

	account := &models.SocialAccount{
		UserID:          state.UserID,
		Platform:        models.PlatformX,
		AccountID:       access.UserID,
		AccountName:     access.ScreenName,
		AccountUsername: access.ScreenName,
		IsActive:        true,
	}

	// verify_credentials fills in the display name and avatar; the access
	// token response already has everything publishing needs.
	if info, err := s.xVerifyCredentials(ctx, access.Token, access.TokenSecret); err == nil {
		account.AccountName = info.Name
		account.ProfilePicture = info.ProfileImageURL
	} else {
		slog.Warn("failed to verify x credentials", "error", err)
	}

	account.AccessToken, err = utils.Encrypt([]byte(access.Token), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	account.RefreshToken, err = utils.Encrypt([]byte(access.TokenSecret), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	_, err = s.sa.Replace(ctx, account)
	return err
}

func (s *accountService) xAccessToken(ctx context.Context, requestToken, requestSecret, verifier string) (*transfer.XAccessToken, error) {
	endpoint := s.xBaseURL + "/oauth/access_token"
	signer := oauth1.NewSigner(s.cfg.XConsumerKey, s.cfg.XConsumerSecret, requestToken, requestSecret)

	extra := url.Values{}
	extra.Set("oauth_verifier", verifier)

	header, err := signer.AuthorizationHeader(http.MethodPost, endpoint, extra)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(extra.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	values, err := s.doFormRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	return &transfer.XAccessToken{
		Token:       values.Get("oauth_token"),
		TokenSecret: values.Get("oauth_token_secret"),
		UserID:      values.Get("user_id"),
		ScreenName:  values.Get("screen_name"),
	}, nil
}

func (s *accountService) xVerifyCredentials(ctx context.Context, token, tokenSecret string) (*transfer.XUserInfo, error) {
	endpoint := s.xAPIBaseURL + "/account/verify_credentials.json"
	signer := oauth1.NewSigner(s.cfg.XConsumerKey, s.cfg.XConsumerSecret, token, tokenSecret)

	header, err := signer.AuthorizationHeader(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", header)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("verify_credentials returned %d: %s", resp.StatusCode, string(body))
	}

	var info transfer.XUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

/* Token refresh */

// RefreshToken renews an expiring token in place. X tokens never expire so
// the call is a no-op for that platform.
func (s *accountService) RefreshToken(ctx context.Context, acc *models.SocialAccount) error {
	switch acc.Platform {
	case models.PlatformFacebook, models.PlatformInstagram:
		current, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
		renewed, err := s.exchangeLongLivedToken(ctx, current)
		if err != nil {
			return err
		}
		encrypted, err := utils.Encrypt([]byte(renewed.AccessToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
		return s.sa.SetToken(ctx, acc.ID, encrypted, "", GetExpiresAt(int(renewed.ExpiresIn)))

	case models.PlatformLinkedIn:
		if acc.RefreshToken == "" {
			return errors.New("no refresh token available")
		}
		refreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
		conf := s.linkedinOAuthConfig()
		token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return fmt.Errorf("failed to refresh token: %w", err)
		}
		encrypted, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
		var encryptedRefresh string
		if token.RefreshToken != "" {
			encryptedRefresh, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
			if err != nil {
				return err
			}
		}
		return s.sa.SetToken(ctx, acc.ID, encrypted, encryptedRefresh, token.Expiry)

	case models.PlatformX:
		return nil

	default:
		return fmt.Errorf("unsupported platform: %s", acc.Platform)
	}
}

func (s *accountService) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *accountService) doFormRequest(req *http.Request) (url.Values, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request returned %d: %s", resp.StatusCode, string(body))
	}
	return url.ParseQuery(string(body))
}
