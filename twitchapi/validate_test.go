package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name        string
		token       string
		body        string
		errContains string
		wantLogin   string
		statusCode  int
		wantErr     bool
	}{
		{
			name:       "valid user token",
			token:      "oauth:abc123",
			statusCode: http.StatusOK,
			body:       `{"client_id":"cid","login":"eve_market_bot","user_id":"42","scopes":["chat:read","chat:edit"],"expires_in":3600}`,
			wantLogin:  "eve_market_bot",
		},
		{
			name:        "rejected token",
			token:       "abc123",
			statusCode:  http.StatusUnauthorized,
			body:        `{"status":401,"message":"invalid access token"}`,
			wantErr:     true,
			errContains: "invalid or expired",
		},
		{
			name:        "app token without login",
			token:       "abc123",
			statusCode:  http.StatusOK,
			body:        `{"client_id":"cid","scopes":[],"expires_in":3600}`,
			wantErr:     true,
			errContains: "no user login",
		},
		{
			name:        "server error",
			token:       "abc123",
			statusCode:  http.StatusInternalServerError,
			body:        `oops`,
			wantErr:     true,
			errContains: "500",
		},
		{
			name:        "malformed body",
			token:       "abc123",
			statusCode:  http.StatusOK,
			body:        `{`,
			wantErr:     true,
			errContains: "decode",
		},
		{
			name:        "empty token",
			token:       "oauth:",
			wantErr:     true,
			errContains: "token empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/oauth2/validate" {
					t.Errorf("path = %q", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "OAuth abc123" {
					t.Errorf("Authorization = %q, want %q", got, "OAuth abc123")
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			hc := &http.Client{Transport: &rewriteTransport{Transport: http.DefaultTransport, host: server.URL}}
			info, err := ValidateToken(context.Background(), hc, tt.token)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ValidateToken() error = nil, want error containing %q", tt.errContains)
				} else if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("ValidateToken() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateToken() unexpected error = %v", err)
			}
			if info.Login != tt.wantLogin {
				t.Errorf("Login = %q, want %q", info.Login, tt.wantLogin)
			}
			if !info.HasScopes(ChatScopes...) {
				t.Errorf("HasScopes(%v) = false for %v", ChatScopes, info.Scopes)
			}
		})
	}
}

func TestValidateTokenRejectedIsSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	hc := &http.Client{Transport: &rewriteTransport{Transport: http.DefaultTransport, host: server.URL}}

	if _, err := ValidateToken(context.Background(), hc, "abc"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenInfoHelpers(t *testing.T) {
	info := &TokenInfo{Scopes: []string{"chat:read"}, ExpiresIn: 60}
	if info.HasScopes("chat:read", "chat:edit") {
		t.Error("HasScopes reported a missing scope as granted")
	}
	if !info.HasScopes() {
		t.Error("HasScopes() with no scopes should be true")
	}
	now := time.Unix(1_700_000_000, 0)
	if got := info.ExpiresAt(now); !got.Equal(now.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v", got)
	}
	if got := (&TokenInfo{}).ExpiresAt(now); !got.IsZero() {
		t.Errorf("ExpiresAt without expiry = %v, want zero", got)
	}
}

// rewriteTransport sends every request to the test server.
type rewriteTransport struct {
	Transport http.RoundTripper
	host      string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	if t.host != "" {
		host := strings.TrimPrefix(t.host, "http://")
		host = strings.TrimPrefix(host, "https://")
		req.URL.Host = host
	}
	return t.Transport.RoundTrip(req)
}
