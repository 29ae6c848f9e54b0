// Package onesignal is a minimal client for the OneSignal REST API covering
// only the calls the kit actually uses: player (device) reads, tag updates,
// unsubscription, and notification creation. There is no official Go SDK, so
// this client is the SDK boundary for the OneSignal provider.
package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultBaseURL is the public OneSignal REST endpoint.
const DefaultBaseURL = "https://onesignal.com/api/v1"

// ErrNoRESTKey is returned by privileged calls when the client was built
// without a REST API key.
var ErrNoRESTKey = errors.New("onesignal: REST API key not configured")

// Client talks to the OneSignal REST API for one application.
type Client struct {
	appID      string
	restAPIKey string
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint, used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient builds a client. restAPIKey may be empty, in which case only
// unprivileged calls are available.
func NewClient(appID, restAPIKey string, opts ...Option) *Client {
	c := &Client{
		appID:      appID,
		restAPIKey: restAPIKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AppID returns the OneSignal application ID this client is bound to.
func (c *Client) AppID() string { return c.appID }

// HasRESTKey reports whether privileged (server-side) calls are available.
func (c *Client) HasRESTKey() bool { return c.restAPIKey != "" }

// Player mirrors the subset of the players resource the kit reads.
type Player struct {
	ID   string            `json:"id"`
	Tags map[string]string `json:"tags"`
}

// GetPlayer fetches a device record.
func (c *Client) GetPlayer(ctx context.Context, playerID string) (*Player, error) {
	url := fmt.Sprintf("%s/players/%s?app_id=%s", c.baseURL, playerID, c.appID)
	var player Player
	if err := c.do(ctx, http.MethodGet, url, nil, &player); err != nil {
		return nil, err
	}
	if player.Tags == nil {
		player.Tags = make(map[string]string)
	}
	return &player, nil
}

// UpdateTags assigns tags to a device. A tag with an empty value is removed
// by OneSignal, which is how unsubscription from a "topic" is expressed.
func (c *Client) UpdateTags(ctx context.Context, playerID string, tags map[string]string) error {
	url := fmt.Sprintf("%s/players/%s", c.baseURL, playerID)
	body := map[string]any{
		"app_id": c.appID,
		"tags":   tags,
	}
	return c.do(ctx, http.MethodPut, url, body, nil)
}

// Unsubscribe marks the device as unsubscribed, invalidating the remote
// registration without deleting the record.
func (c *Client) Unsubscribe(ctx context.Context, playerID string) error {
	url := fmt.Sprintf("%s/players/%s", c.baseURL, playerID)
	body := map[string]any{
		"app_id":             c.appID,
		"notification_types": -2,
	}
	return c.do(ctx, http.MethodPut, url, body, nil)
}

// Notification is the subset of the notifications resource the kit sends.
type Notification struct {
	AppID            string            `json:"app_id"`
	IncludePlayerIDs []string          `json:"include_player_ids,omitempty"`
	Headings         map[string]string `json:"headings,omitempty"`
	Contents         map[string]string `json:"contents,omitempty"`
	Data             map[string]string `json:"data,omitempty"`
	BigPicture       string            `json:"big_picture,omitempty"`
}

// CreateNotification performs a direct send. This is the privileged call: it
// requires the REST API key and fails fast, before any network I/O, without
// one.
func (c *Client) CreateNotification(ctx context.Context, n *Notification) error {
	if !c.HasRESTKey() {
		return ErrNoRESTKey
	}
	n.AppID = c.appID
	return c.do(ctx, http.MethodPost, c.baseURL+"/notifications", n, nil)
}

func (c *Client) do(ctx context.Context, method, url string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("onesignal: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("onesignal: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.restAPIKey != "" {
		req.Header.Set("Authorization", "Basic "+c.restAPIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("onesignal: transport: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The body carries OneSignal's error array; keep a bounded snippet
		// for diagnostics. Credentials never appear in response bodies.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("onesignal: %s %s returned %d: %s", method, resp.Request.URL.Path, resp.StatusCode, snippet)
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("onesignal: decode response: %w", err)
		}
	}
	return nil
}
