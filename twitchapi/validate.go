// Package twitchapi holds the small slice of the Twitch HTTP API the bot needs: validating
// the chat token at startup.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ValidateURL is the Twitch OAuth token introspection endpoint.
const ValidateURL = "https://id.twitch.tv/oauth2/validate"

// ErrInvalidToken is returned when Twitch rejects the token.
var ErrInvalidToken = errors.New("twitch token invalid or expired")

// ChatScopes are the scopes the bot token needs to read and send chat.
var ChatScopes = []string{"chat:read", "chat:edit"}

// TokenInfo is the validate endpoint response.
type TokenInfo struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int      `json:"expires_in"`
}

// ExpiresAt returns the absolute expiry relative to now. Zero means no expiry reported.
func (t *TokenInfo) ExpiresAt(now time.Time) time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// HasScopes reports whether every scope in want was granted.
func (t *TokenInfo) HasScopes(want ...string) bool {
	granted := make(map[string]bool, len(t.Scopes))
	for _, s := range t.Scopes {
		granted[s] = true
	}
	for _, s := range want {
		if !granted[s] {
			return false
		}
	}
	return true
}

// ValidateToken asks Twitch who owns token. The "oauth:" chat prefix is accepted.
func ValidateToken(ctx context.Context, hc *http.Client, token string) (*TokenInfo, error) {
	token = strings.TrimPrefix(strings.TrimSpace(token), "oauth:")
	if token == "" {
		return nil, errors.New("token empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ValidateURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+token)
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitch validate: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("twitch validate failed: %s: %s", resp.Status, string(b))
	}
	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("twitch validate: decode response: %w", err)
	}
	if info.Login == "" {
		return nil, errors.New("twitch validate: token has no user login (app tokens cannot join chat)")
	}
	return &info, nil
}
