package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/spec-kit/storefront-session/internal/domain"
)

// Request is a replayable outbound call. Body is kept as bytes so the request
// can be sent a second time after a refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// NewJSONRequest encodes body as JSON. A nil body sends no payload.
func NewJSONRequest(method, path string, body any) (Request, error) {
	req := Request{Method: method, Path: path}
	if body == nil {
		return req, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return Request{}, fmt.Errorf("encode request body: %w", err)
	}
	req.Body = data
	req.Header = http.Header{"Content-Type": []string{"application/json"}}
	return req, nil
}

// Response is an upstream reply. Non-401 statuses reach the caller unchanged.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

var (
	accessTokenPaths  = []string{"accessToken", "token", "access_token"}
	refreshTokenPaths = []string{"refreshToken", "refresh_token"}
	envelopePrefixes  = []string{"", "data.", "data.auth."}
)

// parseTokenPair accepts {token | accessToken, refreshToken?}, optionally
// wrapped in a data envelope.
func parseTokenPair(body []byte) (domain.CredentialPair, error) {
	if !gjson.ValidBytes(body) {
		return domain.CredentialPair{}, fmt.Errorf("token response is not valid JSON")
	}
	for _, prefix := range envelopePrefixes {
		access := firstString(body, prefix, accessTokenPaths)
		if access == "" {
			continue
		}
		return domain.CredentialPair{
			AccessToken:  access,
			RefreshToken: firstString(body, prefix, refreshTokenPaths),
		}, nil
	}
	return domain.CredentialPair{}, fmt.Errorf("token response carries no access token")
}

func firstString(body []byte, prefix string, paths []string) string {
	for _, path := range paths {
		if res := gjson.GetBytes(body, prefix+path); res.Type == gjson.String && res.Str != "" {
			return res.Str
		}
	}
	return ""
}
