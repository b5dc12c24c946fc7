package migration

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	// Pure-Go sqlite driver for reading the IDE's state database.
	_ "github.com/glebarez/go-sqlite"

	"github.com/pysugar/antigravity-nexus/internal/protoscan"
)

// ItemTable keys for the two login-state generations.
const (
	unifiedStateKey      = "antigravityUnifiedStateSync.oauthToken"
	agentManagerStateKey = "jetskiStateSync.agentManagerInitState"
)

// ErrNoLoginState is returned when neither state key exists in the database.
var ErrNoLoginState = errors.New("migration: no login state found in either format")

// stateFormat pairs a detector (the ItemTable key) with its extractor.
// Formats are tried in order; adding a third generation means appending an
// entry here, nothing else.
type stateFormat struct {
	name    string
	key     string
	extract func(value string) (string, error)
}

var stateFormats = []stateFormat{
	{name: "unified-state", key: unifiedStateKey, extract: refreshTokenFromUnifiedState},
	{name: "agent-manager", key: agentManagerStateKey, extract: refreshTokenFromAgentManagerState},
}

// ExtractRefreshTokenFromStateDB reads the IDE state database and recovers
// the refresh token from the newest format whose key is present. A key that
// is present but malformed is an error, not a reason to fall back: the
// formats never coexist half-written.
func ExtractRefreshTokenFromStateDB(dbPath string) (string, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return "", fmt.Errorf("migration: state database not found: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return "", fmt.Errorf("migration: open state database: %w", err)
	}
	defer conn.Close()

	for _, format := range stateFormats {
		var value string
		err := conn.QueryRow("SELECT value FROM ItemTable WHERE key = ?", format.key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("migration: query %s state: %w", format.name, err)
		}
		token, err := format.extract(value)
		if err != nil {
			return "", fmt.Errorf("migration: %s format: %w", format.name, err)
		}
		return token, nil
	}
	return "", ErrNoLoginState
}

// refreshTokenFromUnifiedState handles the current format: base64, then
// field path 1 → 2 → 1 yielding a UTF-8 string that is itself base64 of an
// OAuth info message whose field 3 is the refresh token.
func refreshTokenFromUnifiedState(value string) (string, error) {
	outer, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("outer base64 decode: %w", err)
	}

	oauthInfoB64, err := protoscan.ExtractPath(outer, 1, 2, 1)
	if err != nil {
		return "", err
	}
	oauthInfo, err := base64.StdEncoding.DecodeString(string(oauthInfoB64))
	if err != nil {
		return "", fmt.Errorf("inner base64 decode: %w", err)
	}

	refreshBytes, err := protoscan.Extract(oauthInfo, 3)
	if err != nil {
		return "", fmt.Errorf("refresh token (field 3): %w", err)
	}
	return string(refreshBytes), nil
}

// refreshTokenFromAgentManagerState handles the pre-unified format: base64,
// then field 6 (oauth token info) → field 3 (refresh token).
func refreshTokenFromAgentManagerState(value string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	refreshBytes, err := protoscan.ExtractPath(blob, 6, 3)
	if err != nil {
		return "", err
	}
	return string(refreshBytes), nil
}
