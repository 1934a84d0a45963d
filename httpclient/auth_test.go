package httpclient

import (
	"net/http"
	"testing"
)

func TestAuthConfig_Apply(t *testing.T) {
	tests := []struct {
		name   string
		auth   *AuthConfig
		header string
		want   string
	}{
		{"bearer", BearerAuth("tok"), "Authorization", "Bearer tok"},
		{"basic", BasicAuth("user", "pass"), "Authorization", "Basic dXNlcjpwYXNz"},
		{"api key", APIKeyAuth("k1"), "X-API-Key", "k1"},
		{"api key header", APIKeyAuthHeader("k2", "X-Token"), "X-Token", "k2"},
		{"api key empty header", APIKeyAuthHeader("k3", ""), DefaultAPIKeyHeader, "k3"},
		{"nil", nil, "Authorization", ""},
		{"zero", &AuthConfig{}, "Authorization", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
			tt.auth.apply(req)
			if got := req.Header.Get(tt.header); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestAuthConfig_NilHeader(t *testing.T) {
	req := &http.Request{}
	BearerAuth("tok").apply(req)
	if got := req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q", got)
	}
}
