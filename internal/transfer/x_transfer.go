package transfer

// XRequestToken holds the OAuth 1.0a handshake credentials returned by the
// request_token endpoint. The secret lives only in the TTL store until the
// callback consumes it.
type XRequestToken struct {
	Token             string
	TokenSecret       string
	CallbackConfirmed bool
}

type XAccessToken struct {
	Token       string
	TokenSecret string
	UserID      string
	ScreenName  string
}

type XUserInfo struct {
	ID              string `json:"id_str"`
	Name            string `json:"name"`
	ScreenName      string `json:"screen_name"`
	ProfileImageURL string `json:"profile_image_url_https"`
}
