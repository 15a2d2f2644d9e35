// Package identity acquires bearer tokens from the identity endpoint via the
// client-credentials grant and caches them in memory until shortly before
// expiry.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// expiryMargin is subtracted from the reported lifetime so a token is never
// presented while it is about to lapse mid-request.
const expiryMargin = 60 * time.Second

const defaultLifetime = 3600 // seconds, when the grant omits expires_in

// Option configures a TokenSource.
type Option func(*TokenSource)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(t *TokenSource) { t.client = client }
}

// WithNow pins the cache clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(t *TokenSource) { t.now = now }
}

// TokenSource is safe for concurrent use; the cached token sits behind a
// mutex so the delivery stage may be parallelized later without changes here.
type TokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	client       *http.Client
	logger       *slog.Logger
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func New(tokenURL, clientID, clientSecret string, logger *slog.Logger, opts ...Option) *TokenSource {
	t := &TokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a valid bearer token, fetching a fresh one when the cached
// token is missing or inside the expiry margin. Errors propagate to the
// caller; they abort only the delivery attempt at hand.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.token != "" && t.expiresAt.Add(-expiryMargin).After(now) {
		return t.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {t.clientID},
		"client_secret": {t.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	lifetime := tr.ExpiresIn
	if lifetime <= 0 {
		lifetime = defaultLifetime
	}

	t.token = tr.AccessToken
	t.expiresAt = now.Add(time.Duration(lifetime) * time.Second)
	t.logger.Info("fetched new access token", slog.Int("expires_in", lifetime))
	return t.token, nil
}
