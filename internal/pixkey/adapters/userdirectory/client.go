// Package userdirectory resolves platform users and their onboarding
// accounts from the user service over JSON/HTTP.
package userdirectory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pixkeys/internal/pixkey/ports"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/platform/sentinel"
	"pixkeys/pkg/requestcontext"
)

var ErrUnavailable = errors.New("user directory unavailable")

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("user directory base URL is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) GetUser(ctx context.Context, userID id.UserID) (*ports.User, error) {
	var out ports.User
	if err := c.get(ctx, "/users/"+url.PathEscape(userID.String()), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOnboarding(ctx context.Context, userID id.UserID) (*ports.Onboarding, error) {
	var out ports.Onboarding
	if err := c.get(ctx, "/users/"+url.PathEscape(userID.String())+"/onboarding", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if rid := requestcontext.RequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
