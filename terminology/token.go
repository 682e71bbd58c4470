package terminology

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrCredentialsNotConfigured is returned before any HTTP call is
// attempted when client credentials are missing.
var ErrCredentialsNotConfigured = fmt.Errorf("terminology client credentials not configured")

// tokenExpirySlack refreshes slightly before the server-side expiry.
const tokenExpirySlack = 30 * time.Second

// defaultRefreshWaitTimeout bounds how long a caller waits for a refresh
// already in flight on another goroutine.
const defaultRefreshWaitTimeout = 15 * time.Second

// TokenManager holds an OAuth2 client-credentials token shared across
// request goroutines. Refreshes are single-flight: one goroutine performs
// the HTTP exchange while concurrent callers wait, bounded, instead of
// issuing duplicate refreshes.
type TokenManager struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	waitTimeout  time.Duration
	log          zerolog.Logger

	mu         sync.Mutex
	token      string
	expiry     time.Time
	refreshing bool
	done       chan struct{}
}

// NewTokenManager creates a TokenManager. Credentials may be empty; Token
// then fails fast with ErrCredentialsNotConfigured.
func NewTokenManager(tokenURL, clientID, clientSecret string, httpClient *http.Client, log zerolog.Logger) *TokenManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenManager{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		waitTimeout:  defaultRefreshWaitTimeout,
		log:          log,
	}
}

// Configured reports whether credentials are present.
func (m *TokenManager) Configured() bool {
	return m.tokenURL != "" && m.clientID != "" && m.clientSecret != ""
}

// Token returns a valid access token, refreshing if needed.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if !m.Configured() {
		return "", ErrCredentialsNotConfigured
	}

	m.mu.Lock()
	if m.token != "" && time.Now().Before(m.expiry.Add(-tokenExpirySlack)) {
		token := m.token
		m.mu.Unlock()
		return token, nil
	}

	if m.refreshing {
		done := m.done
		m.mu.Unlock()
		select {
		case <-done:
			m.mu.Lock()
			token := m.token
			m.mu.Unlock()
			if token == "" {
				return "", NewServiceError(CategoryAuthFailure, fmt.Errorf("token refresh failed on another caller"))
			}
			return token, nil
		case <-time.After(m.waitTimeout):
			return "", NewServiceError(CategoryTimeout, fmt.Errorf("timed out waiting for token refresh"))
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.refreshing = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	token, expiry, err := m.fetchToken(ctx)

	m.mu.Lock()
	m.refreshing = false
	if err == nil {
		m.token = token
		m.expiry = expiry
	} else {
		m.token = ""
	}
	close(m.done)
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	return token, nil
}

// Invalidate discards the current token so the next caller refreshes.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiry = time.Time{}
	m.mu.Unlock()
}

func (m *TokenManager) fetchToken(ctx context.Context) (string, time.Time, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, NewServiceError(CategorizeTransport(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, NewServiceError(CategoryAuthFailure, fmt.Errorf("token endpoint returned status %d", resp.StatusCode))
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", time.Time{}, NewServiceError(CategoryAuthFailure, fmt.Errorf("token endpoint returned no access token"))
	}

	expiresIn := body.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 300
	}

	m.log.Debug().Int("expiresIn", expiresIn).Msg("Refreshed terminology server token")
	return body.AccessToken, time.Now().Add(time.Duration(expiresIn) * time.Second), nil
}
