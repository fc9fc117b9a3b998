package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zfogg/solfeed/pkg/client"
	"github.com/zfogg/solfeed/pkg/config"
	"github.com/zfogg/solfeed/pkg/credentials"
	"github.com/zfogg/solfeed/pkg/logger"
	"github.com/zfogg/solfeed/pkg/output"
	"github.com/zfogg/solfeed/pkg/prompter"
)

// AuthService manages the local credentials file. Tokens are issued by the
// web app; solfeed only stores them.
type AuthService struct {
	path string
	out  io.Writer
}

func NewAuthService() *AuthService {
	return &AuthService{path: config.GetCredentialsPath(), out: os.Stdout}
}

// Login stores token (prompting for it when empty) with optional wallet
// and username
func (s *AuthService) Login(token, wallet, username string) error {
	if token == "" {
		var err error
		token, err = prompter.PromptSecret("Access token: ")
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
	}
	if token == "" {
		return errors.New("an access token is required")
	}

	creds := &credentials.Credentials{AccessToken: token, Wallet: wallet, Username: username}
	if err := credentials.SaveTo(s.path, creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	saved, err := credentials.LoadFrom(s.path)
	if err != nil {
		return err
	}
	if !saved.IsValid() {
		output.PrintWarning("token is already expired (%s)", saved.ExpiresAt.Format(time.RFC3339))
		return nil
	}

	logger.Info("Stored credentials", "wallet", wallet)
	output.PrintSuccess("Logged in")
	return nil
}

// Logout removes the credentials file. A running watch stops its watchlist
// loop on the next auth check.
func (s *AuthService) Logout() error {
	if err := os.Remove(s.path); err != nil {
		if os.IsNotExist(err) {
			output.PrintWarning("not logged in")
			return nil
		}
		return err
	}
	output.PrintSuccess("Logged out")
	return nil
}

// Status prints who is logged in and when the token expires
func (s *AuthService) Status() error {
	creds, err := credentials.LoadFrom(s.path)
	if err != nil {
		return err
	}

	switch {
	case creds == nil:
		fmt.Fprintln(s.out, "Not logged in.")
	case creds.IsExpired():
		fmt.Fprintf(s.out, "Token expired at %s.\n", creds.ExpiresAt.Format(time.RFC3339))
	default:
		who := creds.Wallet
		if creds.Username != "" {
			who = "@" + creds.Username
		}
		if who == "" {
			who = "unknown account"
		}
		expires := "never"
		if !creds.ExpiresAt.IsZero() {
			expires = creds.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintf(s.out, "Logged in as %s (expires %s).\n", who, expires)
	}
	return nil
}

// useStoredToken puts the saved access token on the shared client when it
// is still valid, and returns it
func useStoredToken() string {
	creds, err := credentials.LoadFrom(config.GetCredentialsPath())
	if err != nil {
		logger.Warn("Failed to read credentials", "error", err)
		return ""
	}
	if !creds.IsValid() {
		return ""
	}
	client.SetAuthToken(creds.AccessToken)
	return creds.AccessToken
}
