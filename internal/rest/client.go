// Package rest consumes the support-desk notification REST API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskwire/pulse/internal/core/logging"
	"github.com/deskwire/pulse/internal/core/notify"
)

// Client is a thin, timeout-bounded HTTP client for the notification
// endpoints. Mark-read operations use POST rather than PATCH to avoid
// cross-origin preflight friction with the upstream API.
type Client struct {
	base  string
	http  *http.Client
	token func() string
	log   zerolog.Logger
}

// NewClient creates a REST client for the given API origin. token is
// called per request so refreshed credentials take effect immediately.
func NewClient(origin string, timeout time.Duration, token func() string) *Client {
	return &Client{
		base:  origin,
		http:  &http.Client{Timeout: timeout},
		token: token,
		log:   logging.Component("rest"),
	}
}

// ListOptions selects a page of notifications.
type ListOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
	Recent     bool
}

// List fetches a page of notification records. The response body may
// arrive in any of the shapes the upstream API has shipped over time;
// see DecodeList.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]notify.Notification, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.UnreadOnly {
		q.Set("unread", "true")
	}
	if opts.Recent {
		q.Set("recent", "true")
	}
	// Cache-buster, matching the upstream client's convention.
	q.Set("_t", strconv.FormatInt(time.Now().UnixMilli(), 10))

	body, err := c.do(ctx, http.MethodGet, "/notifications?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	return DecodeList(body)
}

// Create posts one notification record.
func (c *Client) Create(ctx context.Context, n notify.Notification) error {
	payload, err := json.Marshal(toWire(n))
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/notifications", payload)
	return err
}

// MarkRead marks one notification read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id)+"/read", nil)
	return err
}

// MarkAllRead marks every notification read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/notifications/read-all", nil)
	return err
}

// Delete removes one notification.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil)
	return err
}

// Clear removes all notifications.
func (c *Client) Clear(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/notifications", nil)
	return err
}

// Refresh exchanges a refresh token for a new bearer token. Used by the
// socket manager's single-attempt silent refresh.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", fmt.Errorf("encode refresh request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/auth/refresh", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse refresh response: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("refresh response contained no token")
	}
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("request failed")
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	return body, nil
}
