package token

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestStaticSource_Token(t *testing.T) {
	tok, err := StaticSource("abc").Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "abc" {
		t.Errorf("token = %q, want %q", tok, "abc")
	}
}

func TestStaticSource_EmptyReturnsErrNoToken(t *testing.T) {
	_, err := StaticSource("").Token()
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
}

func TestFileSource_ReadsTrimmedContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  abc\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tok, err := (&FileSource{Path: path}).Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "abc" {
		t.Errorf("token = %q, want %q", tok, "abc")
	}
}

func TestFileSource_EmptyFileReturnsErrNoToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := (&FileSource{Path: path}).Token()
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
}

func TestParse_ExtractsSubjectRoleAndName(t *testing.T) {
	raw := signedToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Role:             "professional",
		Name:             "Dr. Smith",
	})

	claims, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID() != "user-1" {
		t.Errorf("user id = %q, want %q", claims.UserID(), "user-1")
	}
	if claims.Role != "professional" {
		t.Errorf("role = %q, want %q", claims.Role, "professional")
	}
	if claims.Name != "Dr. Smith" {
		t.Errorf("name = %q, want %q", claims.Name, "Dr. Smith")
	}
}

func TestParse_EmptyReturnsErrNoToken(t *testing.T) {
	_, err := Parse("")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
}

func TestParse_GarbageFails(t *testing.T) {
	if _, err := Parse("not-a-jwt"); err == nil {
		t.Error("Parse should fail on a malformed token")
	}
}

func TestClaims_Expired(t *testing.T) {
	now := time.Now().UTC()
	fresh := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	stale := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
	}}
	var noExp Claims

	if fresh.Expired(now) {
		t.Error("future exp reported expired")
	}
	if !stale.Expired(now) {
		t.Error("past exp reported valid")
	}
	if noExp.Expired(now) {
		t.Error("missing exp must be treated as unexpired")
	}
}
