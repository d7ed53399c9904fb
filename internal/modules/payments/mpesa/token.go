package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// tokenSkew is subtracted from the provider's expiry so a token is never
// presented in the last minute of its life.
const tokenSkew = 60 * time.Second

// tokenCache holds one OAuth access token and refreshes it under a mutex
// so concurrent pushes never race a double refresh.
type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	fetch func(ctx context.Context) (string, time.Duration, error)
	now   func() time.Time
}

func newTokenCache(fetch func(ctx context.Context) (string, time.Duration, error)) *tokenCache {
	return &tokenCache{fetch: fetch, now: time.Now}
}

func (c *tokenCache) get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	token, ttl, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiresAt = c.now().Add(ttl - tokenSkew)
	return token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("mpesa token: status %d: %s", resp.StatusCode, snippet(raw))
	}

	var out tokenResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", 0, fmt.Errorf("mpesa token: bad response: %w", err)
	}
	if out.AccessToken == "" {
		return "", 0, errors.New("mpesa token: response missing access_token")
	}

	// the API returns expires_in as a string of seconds
	secs, err := strconv.Atoi(out.ExpiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return out.AccessToken, time.Duration(secs) * time.Second, nil
}
