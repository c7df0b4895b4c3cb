package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

// DefaultCallbackAddr is where the interactive flow listens for the redirect.
const DefaultCallbackAddr = "localhost:8080"

// OAuth2Config holds OAuth2 configuration.
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	TokenFile    string // Where to save the token
	CallbackAddr string
	Timeout      time.Duration
}

func oauthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{sheets.SpreadsheetsScope},
	}
}

// AuthenticateOAuth2Interactive performs the OAuth2 flow interactively.
// The returned token carries the refresh token to put in sheets.refresh_token.
func AuthenticateOAuth2Interactive(ctx context.Context, config OAuth2Config) (*oauth2.Token, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("client id and client secret are required")
	}
	addr := config.CallbackAddr
	if addr == "" {
		addr = DefaultCallbackAddr
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}

	cfg := oauthConfig(config.ClientID, config.ClientSecret, "http://"+listener.Addr().String()+"/callback")

	// Start local server to receive the callback
	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			select {
			case errorChan <- fmt.Errorf("no authorization code received"):
			default:
			}
			_, _ = fmt.Fprintf(w, `<html><body>
				<h1>Authentication Failed</h1>
				<p>No authorization code received. Please try again.</p>
			</body></html>`)
			return
		}

		select {
		case codeChan <- code:
		default:
		}
		_, _ = fmt.Fprintf(w, `<html><body>
			<h1>Authentication Successful!</h1>
			<p>You can close this window and return to the terminal.</p>
		</body></html>`)
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChan <- fmt.Errorf("callback server failed: %w", err)
		}
	}()
	defer func() {
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Warn("Error shutting down callback server", "error", err)
		}
	}()

	// Offline access so Google issues a refresh token
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	slog.Info("Google Sheets authentication required")
	slog.Info("Please visit this URL to authenticate", "url", authURL)
	slog.Info("Waiting for authentication...")

	var authCode string
	select {
	case authCode = <-codeChan:
		slog.Info("Received authorization code")
	case err := <-errorChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("authentication timeout - no response received within %s", timeout)
	}

	token, err := cfg.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if config.TokenFile != "" {
		if err := saveToken(config.TokenFile, token); err != nil {
			slog.Warn("Failed to save token to file", "error", err, "file", config.TokenFile)
		} else {
			slog.Info("Token saved successfully", "file", config.TokenFile)
		}
	}

	return token, nil
}

// LoadToken loads a token from file.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	f, err := os.Open(tokenFile) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}

// saveToken saves a token to file.
func saveToken(path string, token *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	return nil
}

// RefreshTokenIfNeeded refreshes the token if it's expired.
func RefreshTokenIfNeeded(ctx context.Context, config OAuth2Config, token *oauth2.Token) (*oauth2.Token, error) {
	if token.Valid() {
		return token, nil
	}

	slog.Info("Token expired, refreshing...")

	tokenSource := oauthConfig(config.ClientID, config.ClientSecret, "").TokenSource(ctx, token)
	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if config.TokenFile != "" {
		if err := saveToken(config.TokenFile, newToken); err != nil {
			slog.Warn("Failed to save refreshed token", "error", err)
		}
	}

	return newToken, nil
}

// GetOrCreateToken gets an existing token or creates a new one.
func GetOrCreateToken(ctx context.Context, config OAuth2Config) (*oauth2.Token, error) {
	if config.TokenFile != "" {
		token, err := LoadToken(config.TokenFile)
		if err == nil {
			slog.Info("Loaded existing token from file")
			return RefreshTokenIfNeeded(ctx, config, token)
		}
		slog.Info("No existing token found, starting OAuth2 flow")
	}

	return AuthenticateOAuth2Interactive(ctx, config)
}
