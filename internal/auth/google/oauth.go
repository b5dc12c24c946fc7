// Package google talks to Google's OAuth endpoints on behalf of pooled
// Antigravity accounts: refreshing access tokens from stored refresh tokens
// and resolving the account identity behind a token. The interactive
// authorization flow is not implemented here; accounts enter the pool
// through import, already holding a refresh token.
package google

import (
	"os"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
)

// OAuth client registered by Antigravity. Overridable through the
// environment for setups running their own Google Cloud project.
const (
	DefaultClientID     = "1071006060591-tmhssin2h21lcre235vtolojh4g403ep.apps.googleusercontent.com"
	DefaultClientSecret = "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"
)

// Scopes required for accessing Google's internal Gemini API
var Scopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/cclog",
	"https://www.googleapis.com/auth/experimentsandconfigs",
}

// GetOAuthConfig returns the OAuth2 config used for token refresh.
func GetOAuthConfig() *oauth2.Config {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	if clientID == "" {
		clientID = DefaultClientID
	}

	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if clientSecret == "" {
		clientSecret = DefaultClientSecret
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       Scopes,
		Endpoint:     googleOAuth.Endpoint,
	}
}
