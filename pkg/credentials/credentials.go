package credentials

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	Wallet       string    `json:"wallet"`
	Username     string    `json:"username,omitempty"`
}

// LoadFrom loads credentials from path. A missing file is not an error and
// returns nil credentials.
func LoadFrom(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	if creds.ExpiresAt.IsZero() {
		creds.ExpiresAt = tokenExpiry(creds.AccessToken)
	}
	return &creds, nil
}

// SaveTo writes credentials to path
func SaveTo(path string, creds *Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	// owner read/write only
	return os.WriteFile(path, data, 0600)
}

// tokenExpiry reads the exp claim from an access token without verifying
// it. The server still validates the token; this only decides when the
// local copy is stale.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// IsExpired checks if the access token is expired. Credentials without a
// known expiry never expire locally.
func (c *Credentials) IsExpired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(c.ExpiresAt)
}

// IsValid checks if credentials are valid
func (c *Credentials) IsValid() bool {
	return c != nil && c.AccessToken != "" && !c.IsExpired()
}
