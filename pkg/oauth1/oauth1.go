// Package oauth1 implements the request signing required by X's legacy
// OAuth 1.0a API surface: an HMAC-SHA1 signature over a canonical
// parameter string, carried in the Authorization header.
package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string

	// Overridable for deterministic signatures in tests.
	Nonce func() string
	Now   func() time.Time
}

func NewSigner(consumerKey, consumerSecret, token, tokenSecret string) *Signer {
	return &Signer{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		Token:          token,
		TokenSecret:    tokenSecret,
	}
}

// AuthorizationHeader signs a request and returns the value for the
// Authorization header. extra holds non-oauth request parameters that take
// part in the signature (query or form-encoded body parameters). Callers
// sending JSON bodies pass nil.
func (s *Signer) AuthorizationHeader(method, rawURL string, extra url.Values) (string, error) {
	oauthParams := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if s.Token != "" {
		oauthParams["oauth_token"] = s.Token
	}

	base, err := SignatureBaseString(method, rawURL, oauthParams, extra)
	if err != nil {
		return "", err
	}

	signingKey := PercentEncode(s.ConsumerSecret) + "&" + PercentEncode(s.TokenSecret)
	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(base))
	oauthParams["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%q", PercentEncode(k), PercentEncode(oauthParams[k])))
	}
	return "OAuth " + strings.Join(pairs, ", "), nil
}

// SignatureBaseString builds the canonical string signed by OAuth 1.0a:
// METHOD & encoded-base-URL & encoded-sorted-parameter-string.
func SignatureBaseString(method, rawURL string, oauthParams map[string]string, extra url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid request url: %w", err)
	}

	params := url.Values{}
	for k, v := range oauthParams {
		params.Set(k, v)
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}

	type pair struct{ k, v string }
	encoded := make([]pair, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			encoded = append(encoded, pair{PercentEncode(k), PercentEncode(v)})
		}
	}
	sort.Slice(encoded, func(i, j int) bool {
		if encoded[i].k == encoded[j].k {
			return encoded[i].v < encoded[j].v
		}
		return encoded[i].k < encoded[j].k
	})

	parts := make([]string, 0, len(encoded))
	for _, p := range encoded {
		parts = append(parts, p.k+"="+p.v)
	}

	baseURL := u.Scheme + "://" + u.Host + u.EscapedPath()
	return strings.ToUpper(method) + "&" + PercentEncode(baseURL) + "&" + PercentEncode(strings.Join(parts, "&")), nil
}

// PercentEncode implements RFC 3986 encoding as required by the OAuth 1.0a
// spec: everything except unreserved characters is escaped, uppercase hex.
func PercentEncode(s string) string {
	var b strings.Builder
	for _, c := range []byte(s) {
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}

func (s *Signer) nonce() string {
	if s.Nonce != nil {
		return s.Nonce()
	}
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
