package tokens

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileTokenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store := FileTokenStore{Path: path}

	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := store.SaveChatToken(Token{Access: "oauth:abc", ExpiresAt: expires}); err != nil {
		t.Fatalf("SaveChatToken returned error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected file mode: %v", info.Mode().Perm())
	}

	token, err := store.LoadChatToken()
	if err != nil {
		t.Fatalf("LoadChatToken returned error: %v", err)
	}
	if token.Access != "oauth:abc" || !token.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected token: %+v", token)
	}
}

func TestFileTokenStoreWithoutExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte(`{"access":"  oauth:xyz  "}`), 0o600); err != nil {
		t.Fatal(err)
	}

	token, err := FileTokenStore{Path: path}.LoadChatToken()
	if err != nil {
		t.Fatalf("LoadChatToken returned error: %v", err)
	}
	if token.Access != "oauth:xyz" || !token.ExpiresAt.IsZero() {
		t.Fatalf("unexpected token: %+v", token)
	}
	if token.Expired(time.Now()) {
		t.Fatalf("token without expiry must not be expired")
	}
}

func TestFileTokenStoreRejectsEmptyAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte(`{"access":""}`), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := (FileTokenStore{Path: path}).LoadChatToken(); err == nil {
		t.Fatalf("expected error for empty access token")
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	if !(Token{ExpiresAt: now.Add(-time.Minute)}).Expired(now) {
		t.Fatalf("expected token to be expired")
	}
	if (Token{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatalf("expected token to be valid")
	}
}
