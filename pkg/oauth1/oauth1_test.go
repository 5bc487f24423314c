package oauth1

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

// Reference values from X's "Creating a signature" developer documentation.
func docSigner() *Signer {
	s := NewSigner(
		"xvz1evFS4wEEPTGEFPHBog",
		"kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw",
		"370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb",
		"LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE",
	)
	s.Nonce = func() string { return "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg" }
	s.Now = func() time.Time { return time.Unix(1318622958, 0) }
	return s
}

func TestSignatureBaseString_DocExample(t *testing.T) {
	s := docSigner()
	oauthParams := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            s.Nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        "1318622958",
		"oauth_token":            s.Token,
		"oauth_version":          "1.0",
	}
	extra := url.Values{}
	extra.Set("status", "Hello Ladies + Gentlemen, a signed OAuth request!")

	base, err := SignatureBaseString("post",
		"https://api.twitter.com/1.1/statuses/update.json?include_entities=true",
		oauthParams, extra)
	if err != nil {
		t.Fatal(err)
	}

	want := "POST&https%3A%2F%2Fapi.twitter.com%2F1.1%2Fstatuses%2Fupdate.json&" +
		"include_entities%3Dtrue%26" +
		"oauth_consumer_key%3Dxvz1evFS4wEEPTGEFPHBog%26" +
		"oauth_nonce%3DkYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg%26" +
		"oauth_signature_method%3DHMAC-SHA1%26" +
		"oauth_timestamp%3D1318622958%26" +
		"oauth_token%3D370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb%26" +
		"oauth_version%3D1.0%26" +
		"status%3DHello%2520Ladies%2520%252B%2520Gentlemen%252C%2520a%2520signed%2520OAuth%2520request%2521"
	if base != want {
		t.Fatalf("base string mismatch:\n got %s\nwant %s", base, want)
	}
}

func TestAuthorizationHeader_DocExample(t *testing.T) {
	s := docSigner()
	extra := url.Values{}
	extra.Set("status", "Hello Ladies + Gentlemen, a signed OAuth request!")

	header, err := s.AuthorizationHeader("POST",
		"https://api.twitter.com/1.1/statuses/update.json?include_entities=true", extra)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(header, "OAuth ") {
		t.Fatalf("header missing OAuth prefix: %s", header)
	}
	wantSig := PercentEncode("hCtSmYh+iHYCEqBWrE7C7hYmtUk=")
	if !strings.Contains(header, `oauth_signature="`+wantSig+`"`) {
		t.Fatalf("signature mismatch in header: %s", header)
	}
}

func TestAuthorizationHeader_Deterministic(t *testing.T) {
	s := docSigner()
	h1, err := s.AuthorizationHeader("POST", "https://api.x.com/2/tweets", nil)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := s.AuthorizationHeader("POST", "https://api.x.com/2/tweets", nil)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatal("fixed nonce and timestamp must produce identical headers")
	}
}

func TestAuthorizationHeader_FreshNoncePerRequest(t *testing.T) {
	s := NewSigner("ck", "cs", "tk", "ts")
	h1, _ := s.AuthorizationHeader("POST", "https://api.x.com/2/tweets", nil)
	h2, _ := s.AuthorizationHeader("POST", "https://api.x.com/2/tweets", nil)
	if h1 == h2 {
		t.Fatal("each request must carry a fresh nonce")
	}
}

func TestPercentEncode(t *testing.T) {
	cases := map[string]string{
		"Ladies + Gentlemen": "Ladies%20%2B%20Gentlemen",
		"An encoded string!": "An%20encoded%20string%21",
		"Dogs, Cats & Mice":  "Dogs%2C%20Cats%20%26%20Mice",
		"abcABC123-._~":      "abcABC123-._~",
	}
	for in, want := range cases {
		if got := PercentEncode(in); got != want {
			t.Errorf("PercentEncode(%q) = %q, want %q", in, got, want)
		}
	}
}
