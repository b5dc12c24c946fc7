package migration

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pysugar/antigravity-nexus/internal/auth/google"
	"google.golang.org/protobuf/encoding/protowire"
)

// unifiedStateValue builds the current-format ItemTable value: base64 of
// Outer{1: Inner{2: Inner2{1: base64(OAuthInfo{3: refreshToken})}}}.
func unifiedStateValue(refreshToken string) string {
	oauthInfo := protowire.AppendTag(nil, 3, protowire.BytesType)
	oauthInfo = protowire.AppendBytes(oauthInfo, []byte(refreshToken))
	oauthInfoB64 := base64.StdEncoding.EncodeToString(oauthInfo)

	inner2 := protowire.AppendTag(nil, 1, protowire.BytesType)
	inner2 = protowire.AppendBytes(inner2, []byte(oauthInfoB64))

	inner := protowire.AppendTag(nil, 2, protowire.BytesType)
	inner = protowire.AppendBytes(inner, inner2)

	outer := protowire.AppendTag(nil, 1, protowire.BytesType)
	outer = protowire.AppendBytes(outer, inner)

	return base64.StdEncoding.EncodeToString(outer)
}

func writeStateDB(t *testing.T, items map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.vscdb")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open state db: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Exec(`CREATE TABLE ItemTable (key TEXT PRIMARY KEY, value BLOB)`); err != nil {
		t.Fatalf("create ItemTable: %v", err)
	}
	for key, value := range items {
		if _, err := conn.Exec(`INSERT INTO ItemTable (key, value) VALUES (?, ?)`, key, value); err != nil {
			t.Fatalf("insert %s: %v", key, err)
		}
	}
	return path
}

func TestExtractRefreshTokenFromStateDB_UnifiedFormat(t *testing.T) {
	path := writeStateDB(t, map[string]string{
		unifiedStateKey: unifiedStateValue("R-unified"),
	})

	token, err := ExtractRefreshTokenFromStateDB(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if token != "R-unified" {
		t.Fatalf("got %q", token)
	}
}

func TestExtractRefreshTokenFromStateDB_AgentManagerFallback(t *testing.T) {
	path := writeStateDB(t, map[string]string{
		agentManagerStateKey: agentManagerBlob("R-legacy"),
	})

	token, err := ExtractRefreshTokenFromStateDB(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if token != "R-legacy" {
		t.Fatalf("got %q", token)
	}
}

func TestExtractRefreshTokenFromStateDB_UnifiedKeyWins(t *testing.T) {
	path := writeStateDB(t, map[string]string{
		unifiedStateKey:      unifiedStateValue("R-new"),
		agentManagerStateKey: agentManagerBlob("R-old"),
	})

	token, err := ExtractRefreshTokenFromStateDB(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if token != "R-new" {
		t.Fatalf("new format must win when both keys exist, got %q", token)
	}
}

func TestExtractRefreshTokenFromStateDB_NeitherFormat(t *testing.T) {
	path := writeStateDB(t, map[string]string{"unrelated.key": "value"})

	if _, err := ExtractRefreshTokenFromStateDB(path); !errors.Is(err, ErrNoLoginState) {
		t.Fatalf("expected ErrNoLoginState, got %v", err)
	}
}

func TestExtractRefreshTokenFromStateDB_MalformedUnifiedIsError(t *testing.T) {
	// The new key exists but holds garbage; this must surface a decode
	// error rather than silently falling back to the old key.
	path := writeStateDB(t, map[string]string{
		unifiedStateKey:      "!!! not base64 !!!",
		agentManagerStateKey: agentManagerBlob("R-old"),
	})

	_, err := ExtractRefreshTokenFromStateDB(path)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, ErrNoLoginState) {
		t.Fatalf("malformed state is not the same as absent state: %v", err)
	}
}

func TestExtractRefreshTokenFromStateDB_MissingFile(t *testing.T) {
	if _, err := ExtractRefreshTokenFromStateDB(filepath.Join(t.TempDir(), "nope.vscdb")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestImportFromPath(t *testing.T) {
	path := writeStateDB(t, map[string]string{
		unifiedStateKey: unifiedStateValue("R-live"),
	})

	oauth := &fakeOAuth{
		tokens: map[string]*google.TokenInfo{"R-live": {AccessToken: "A-live", ExpiresIn: 3500}},
		users:  map[string]*google.UserInfo{"A-live": {Email: "ide@test.com", Name: "IDE User"}},
	}
	p := newTestPool(t)

	rec, err := NewResolver(p, oauth, "").ImportFromPath(context.Background(), path)
	if err != nil {
		t.Fatalf("import from path: %v", err)
	}
	if rec.Email != "ide@test.com" || rec.RefreshToken != "R-live" || rec.AccessToken != "A-live" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	stored, ok := p.Get("ide@test.com")
	if !ok || stored.SessionID == "" {
		t.Fatal("record must land in the pool with a session id")
	}
}

func TestImportFromPath_RefreshFailureIsSurfaced(t *testing.T) {
	path := writeStateDB(t, map[string]string{
		unifiedStateKey: unifiedStateValue("R-dead"),
	})

	oauth := &fakeOAuth{refreshErr: errors.New("invalid_grant")}
	p := newTestPool(t)

	if _, err := NewResolver(p, oauth, "").ImportFromPath(context.Background(), path); err == nil {
		t.Fatal("explicit single-file import must report refresh failure")
	}
	if p.Len() != 0 {
		t.Fatal("failed import must not leave a record behind")
	}
}
