package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestCredentialsIsExpired validates token expiration check
func TestCredentialsIsExpired(t *testing.T) {
	testCases := []struct {
		expiresAt time.Time
		expect    bool
		name      string
	}{
		{time.Now().Add(-1 * time.Hour), true, "past expiration"},
		{time.Now().Add(1 * time.Hour), false, "future expiration"},
		{time.Now().Add(-1 * time.Minute), true, "recently expired"},
		{time.Time{}, false, "unknown expiry"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creds := &Credentials{
				AccessToken: "test_token",
				ExpiresAt:   tc.expiresAt,
			}

			result := creds.IsExpired()
			if result != tc.expect {
				t.Errorf("Expected IsExpired=%v, got %v", tc.expect, result)
			}
		})
	}
}

// TestCredentialsIsValid validates credential validity check
func TestCredentialsIsValid(t *testing.T) {
	testCases := []struct {
		accessToken string
		expiresAt   time.Time
		expect      bool
		name        string
	}{
		{"valid_token", time.Now().Add(1 * time.Hour), true, "valid credentials"},
		{"", time.Now().Add(1 * time.Hour), false, "empty access token"},
		{"valid_token", time.Now().Add(-1 * time.Hour), false, "expired token"},
		{"", time.Now().Add(-1 * time.Hour), false, "empty and expired"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creds := &Credentials{
				AccessToken: tc.accessToken,
				ExpiresAt:   tc.expiresAt,
			}

			result := creds.IsValid()
			if result != tc.expect {
				t.Errorf("Expected IsValid=%v, got %v", tc.expect, result)
			}
		})
	}

	var none *Credentials
	if none.IsValid() {
		t.Error("nil credentials should not be valid")
	}
}

func TestLoadMissingFile(t *testing.T) {
	creds, err := LoadFrom(filepath.Join(t.TempDir(), "credentials"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds != nil {
		t.Errorf("expected nil credentials, got %+v", creds)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	want := &Credentials{
		AccessToken: "access_123",
		ExpiresAt:   time.Now().Add(time.Hour).Truncate(time.Second),
		Wallet:      "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Username:    "tester",
	}

	if err := SaveTo(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.Wallet != want.Wallet {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("expected expiry %v, got %v", want.ExpiresAt, got.ExpiresAt)
	}
}

func TestExpiryFromTokenClaim(t *testing.T) {
	exp := time.Now().Add(-time.Minute).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "wallet",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	path := filepath.Join(t.TempDir(), "credentials")
	if err := os.WriteFile(path, []byte(`{"access_token":"`+token+`"}`), 0600); err != nil {
		t.Fatal(err)
	}

	creds, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !creds.ExpiresAt.Equal(exp) {
		t.Errorf("expected expiry %v from exp claim, got %v", exp, creds.ExpiresAt)
	}
	if creds.IsValid() {
		t.Error("token past its exp claim should not be valid")
	}
}

func TestOpaqueTokenHasNoExpiry(t *testing.T) {
	if got := tokenExpiry("not-a-jwt"); !got.IsZero() {
		t.Errorf("expected zero expiry, got %v", got)
	}
}
