// Package migration rehydrates accounts from older on-disk layouts into the
// live pool: the v1 agent directory (account index + per-account backup
// files) and the IDE's key-value state database. Both paths funnel into the
// same refresh-token recovery and OAuth rehydration steps.
package migration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pysugar/antigravity-nexus/internal/auth/google"
	"github.com/pysugar/antigravity-nexus/internal/pool"
	"github.com/pysugar/antigravity-nexus/internal/protoscan"
)

const legacyDirName = ".antigravity-agent"

// Index filenames tried in priority order inside the legacy directory.
var legacyIndexNames = []string{
	"antigravity_accounts.json",
	"accounts.json",
}

// Sentinel access token for accounts imported while their refresh token
// could not be exchanged (expired, offline). The record stays in the pool,
// visibly stale, instead of being lost.
const placeholderAccessToken = "imported_access_token"

// ErrNoLegacyIndex is returned when no index file exists under the legacy
// directory. It is the only condition that fails a whole import; individual
// broken accounts are logged and skipped.
var ErrNoLegacyIndex = errors.New("migration: no legacy account index found")

var errNoRefreshToken = errors.New("migration: no refresh token recoverable")

// How long a record stays out of selection after its grant is reported
// revoked. The block expires so a re-login through the same email gets
// picked up again without manual intervention.
const revokedBlockDuration = 24 * time.Hour

// OAuthClient is the external collaborator that turns a refresh token into a
// live access token and identity. Both calls may fail; the import paths
// define the fallback for each.
type OAuthClient interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*google.TokenInfo, error)
	GetUserInfo(ctx context.Context, accessToken string) (*google.UserInfo, error)
}

// Resolver drives imports into the pool.
type Resolver struct {
	pool    *pool.Pool
	oauth   OAuthClient
	baseDir string
}

// NewResolver builds a resolver. An empty baseDir selects the default
// legacy directory under the user's home.
func NewResolver(p *pool.Pool, client OAuthClient, baseDir string) *Resolver {
	return &Resolver{pool: p, oauth: client, baseDir: baseDir}
}

// DefaultLegacyDir returns ~/.antigravity-agent.
func DefaultLegacyDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("migration: resolve home directory: %w", err)
	}
	return filepath.Join(home, legacyDirName), nil
}

func (r *Resolver) legacyDir() (string, error) {
	if r.baseDir != "" {
		return r.baseDir, nil
	}
	return DefaultLegacyDir()
}

// legacyEntry is one account row of the v1 index. Email is a best-effort
// display label only; the authoritative identity comes from the live lookup.
type legacyEntry struct {
	Email      string `json:"email"`
	BackupFile string `json:"backup_file"`
	DataFile   string `json:"data_file"`
}

// ImportLegacyAccounts scans the legacy directory for an account index and
// imports every resolvable entry. Accounts appearing under multiple legacy
// identifiers collapse onto one pool record via their email.
func (r *Resolver) ImportLegacyAccounts(ctx context.Context) ([]*pool.Record, error) {
	dir, err := r.legacyDir()
	if err != nil {
		return nil, err
	}

	var imported []*pool.Record
	foundIndex := false

	for _, indexName := range legacyIndexNames {
		indexPath := filepath.Join(dir, indexName)
		data, err := os.ReadFile(indexPath)
		if err != nil {
			continue
		}
		foundIndex = true
		log.Printf("📂 Legacy index discovered: %s", indexPath)

		entries, err := parseLegacyIndex(data)
		if err != nil {
			log.Printf("⚠️ Failed to parse legacy index %s: %v", indexPath, err)
			continue
		}

		for id, entry := range entries {
			rec, err := r.importEntry(ctx, dir, id, entry)
			if err != nil {
				log.Printf("⚠️ Skipping legacy account %s (%s): %v", id, entry.Email, err)
				continue
			}
			log.Printf("✅ Imported legacy account: %s", rec.Email)
			imported = append(imported, rec)
		}
	}

	if !foundIndex {
		return nil, ErrNoLegacyIndex
	}
	return imported, nil
}

// parseLegacyIndex accepts both index shapes: a direct map of id -> entry,
// or the same map nested under an "accounts" key. Non-object values (such as
// a current-selection marker) are skipped.
func parseLegacyIndex(data []byte) (map[string]legacyEntry, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("migration: index is not a JSON object: %w", err)
	}

	raw := top
	if nestedRaw, ok := top["accounts"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(nestedRaw, &nested); err == nil {
			raw = nested
		}
	}

	entries := make(map[string]legacyEntry, len(raw))
	for id, value := range raw {
		var entry legacyEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			continue
		}
		entries[id] = entry
	}
	return entries, nil
}

func (r *Resolver) importEntry(ctx context.Context, dir, id string, entry legacyEntry) (*pool.Record, error) {
	target := entry.BackupFile
	if target == "" {
		target = entry.DataFile
	}
	if target == "" {
		return nil, fmt.Errorf("migration: entry %s has no data file path", id)
	}

	backupPath, ok := resolveBackupPath(dir, target)
	if !ok {
		return nil, fmt.Errorf("migration: backup file not found for %q", target)
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return nil, fmt.Errorf("migration: read backup %s: %w", backupPath, err)
	}
	refreshToken, err := extractRefreshTokenFromBackup(data)
	if err != nil {
		return nil, err
	}

	fallbackEmail := entry.Email
	if fallbackEmail == "" {
		fallbackEmail = "Unknown"
	}
	return r.rehydrate(ctx, refreshToken, fallbackEmail)
}

// resolveBackupPath tries the referenced path as given, then the same
// filename under the legacy directory and its backups/ and accounts/
// subdirectories.
func resolveBackupPath(dir, target string) (string, bool) {
	name := filepath.Base(target)
	candidates := []string{
		target,
		filepath.Join(dir, name),
		filepath.Join(dir, "backups", name),
		filepath.Join(dir, "accounts", name),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// extractRefreshTokenFromBackup recovers a refresh token from a backup file.
// Two generations coexist: the script-exported JSON shape with a direct
// token.refresh_token field, and the older shape carrying a base64 protobuf
// blob under the agent-manager state key.
func extractRefreshTokenFromBackup(data []byte) (string, error) {
	var backup map[string]json.RawMessage
	if err := json.Unmarshal(data, &backup); err != nil {
		return "", fmt.Errorf("migration: backup is not a JSON object: %w", err)
	}

	if rawToken, ok := backup["token"]; ok {
		var token struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.Unmarshal(rawToken, &token); err == nil && token.RefreshToken != "" {
			return token.RefreshToken, nil
		}
	}

	if rawState, ok := backup[agentManagerStateKey]; ok {
		var stateB64 string
		if err := json.Unmarshal(rawState, &stateB64); err == nil && stateB64 != "" {
			blob, err := base64.StdEncoding.DecodeString(stateB64)
			if err != nil {
				return "", fmt.Errorf("migration: decode state blob: %w", err)
			}
			refreshBytes, err := protoscan.ExtractPath(blob, 6, 3)
			if err != nil {
				return "", fmt.Errorf("migration: scan state blob: %w", err)
			}
			return string(refreshBytes), nil
		}
	}

	return "", errNoRefreshToken
}

// rehydrate exchanges a refresh token for live credentials and upserts the
// result. When the exchange fails the account is still imported under its
// fallback label with a zero-lifetime placeholder token, so it shows up as
// known-stale rather than silently disappearing.
func (r *Resolver) rehydrate(ctx context.Context, refreshToken, fallbackEmail string) (*pool.Record, error) {
	email := fallbackEmail
	name := ""
	accessToken := placeholderAccessToken
	var expiresIn int64
	permanentFailure := false

	tokenInfo, err := r.oauth.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		log.Printf("⚠️ Token refresh failed (likely expired): %v", err)
		permanentFailure = google.IsPermanentRefreshError(err)
	} else {
		accessToken = tokenInfo.AccessToken
		expiresIn = tokenInfo.ExpiresIn
		if userInfo, err := r.oauth.GetUserInfo(ctx, tokenInfo.AccessToken); err == nil {
			email = userInfo.Email
			name = userInfo.Name
		}
	}

	rec, err := r.pool.Upsert(email, name, pool.Credentials{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		TokenIssuedAt: time.Now().Unix(),
		ExpiresIn:     expiresIn,
	})
	if err != nil {
		return nil, err
	}

	if permanentFailure {
		log.Printf("🚫 Grant for %s reported revoked, excluding from selection", email)
		blocked := true
		until := time.Now().Add(revokedBlockDuration).Unix()
		if err := r.pool.ApplyUsage(email, pool.UsageUpdate{
			Blocked:      &blocked,
			BlockedUntil: &until,
		}); err != nil {
			return nil, err
		}
		rec.ValidationBlocked = true
		rec.ValidationBlockedUntil = until
	}
	return rec, nil
}

// ImportFromPath imports the login state held in a single IDE state database
// file. Unlike the batch import, failures here are surfaced: the caller
// named one specific source and deserves to know why it did not work.
func (r *Resolver) ImportFromPath(ctx context.Context, path string) (*pool.Record, error) {
	refreshToken, err := ExtractRefreshTokenFromStateDB(path)
	if err != nil {
		return nil, err
	}

	log.Printf("🔑 Recovered refresh token, resolving account identity...")
	tokenInfo, err := r.oauth.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("migration: refresh imported token: %w", err)
	}
	userInfo, err := r.oauth.GetUserInfo(ctx, tokenInfo.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("migration: resolve account identity: %w", err)
	}

	return r.pool.Upsert(userInfo.Email, userInfo.Name, pool.Credentials{
		AccessToken:   tokenInfo.AccessToken,
		RefreshToken:  refreshToken,
		TokenIssuedAt: time.Now().Unix(),
		ExpiresIn:     tokenInfo.ExpiresIn,
	})
}
