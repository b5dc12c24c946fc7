package version

import (
	"io"
	"log"
	"net/http"
	"regexp"
	"runtime"
	"sync"
	"time"
)

// Upstream rejects requests whose User-Agent names an Antigravity build that
// has been retired, so the advertised version tracks the auto-updater
// endpoint instead of our own release number.
const updaterURL = "https://antigravity-auto-updater-974169037036.us-central1.run.app"

// FallbackClientVersion is advertised when the updater cannot be reached.
const FallbackClientVersion = "1.15.8"

var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

var (
	userAgentOnce sync.Once
	userAgent     string
)

// UserAgent returns the shared User-Agent for all upstream API requests,
// "antigravity/{version} {os}/{arch}". The remote probe runs once per
// process with a short timeout; failure falls back to the pinned version.
func UserAgent() string {
	userAgentOnce.Do(func() {
		clientVersion, source := fetchRemoteVersion()
		log.Printf("🛰️ User-Agent initialized (version %s, source %s)", clientVersion, source)
		userAgent = "antigravity/" + clientVersion + " " + runtime.GOOS + "/" + runtime.GOARCH
	})
	return userAgent
}

// parseVersion pulls the first X.Y.Z pattern out of the updater response,
// e.g. "Auto updater is running. Stable Version: 1.15.8-5724687216017408".
func parseVersion(text string) string {
	return versionPattern.FindString(text)
}

func fetchRemoteVersion() (string, string) {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(updaterURL)
	if err != nil {
		return FallbackClientVersion, "fallback"
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return FallbackClientVersion, "fallback"
	}
	if v := parseVersion(string(body)); v != "" {
		return v, "remote"
	}
	return FallbackClientVersion, "fallback"
}
