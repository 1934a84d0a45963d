package httpclient

import "net/http"

// DefaultAPIKeyHeader carries API keys when no header is named.
const DefaultAPIKeyHeader = "X-API-Key"

// AuthConfig attaches credentials to outgoing requests. Build it with one of
// the constructors; the zero value sends nothing.
type AuthConfig struct {
	set func(h http.Header)
}

// BearerAuth sends "Authorization: Bearer <token>".
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{set: func(h http.Header) { h.Set("Authorization", "Bearer "+token) }}
}

// BasicAuth sends HTTP basic credentials.
func BasicAuth(username, password string) *AuthConfig {
	return &AuthConfig{set: func(h http.Header) {
		r := http.Request{Header: h}
		r.SetBasicAuth(username, password)
	}}
}

// APIKeyAuth sends key in DefaultAPIKeyHeader.
func APIKeyAuth(key string) *AuthConfig {
	return APIKeyAuthHeader(key, DefaultAPIKeyHeader)
}

// APIKeyAuthHeader sends key in the named header.
func APIKeyAuthHeader(key, header string) *AuthConfig {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &AuthConfig{set: func(h http.Header) { h.Set(header, key) }}
}

func (a *AuthConfig) apply(req *http.Request) {
	if a == nil || a.set == nil {
		return
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	a.set(req.Header)
}
