package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// callTimeout bounds every upstream OAuth call independently of the caller's
// context, so one unreachable account cannot stall a whole import batch.
const callTimeout = 15 * time.Second

// TokenInfo is the result of a successful refresh.
type TokenInfo struct {
	AccessToken string
	ExpiresIn   int64 // seconds of remaining lifetime
}

// UserInfo identifies the Google account behind an access token.
type UserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Client performs OAuth refresh and identity lookups against Google.
type Client struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewClient builds a client with the default Antigravity OAuth config.
func NewClient() *Client {
	return &Client{
		config:     GetOAuthConfig(),
		httpClient: &http.Client{Timeout: callTimeout},
	}
}

// RefreshAccessToken exchanges a long-lived refresh token for a fresh access
// token.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	source := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("google: refresh token: %w", err)
	}

	expiresIn := int64(time.Until(token.Expiry).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &TokenInfo{AccessToken: token.AccessToken, ExpiresIn: expiresIn}, nil
}

// GetUserInfo resolves the email and display name behind an access token.
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("google: build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: userinfo returned status %d", resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("google: decode userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("google: userinfo response missing email")
	}
	return &info, nil
}

// IsPermanentRefreshError reports whether a refresh failure means the grant
// is gone for good (revoked, expired) as opposed to a transient network or
// server problem worth retrying.
func IsPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	permanentMarkers := []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
		"revoked",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
