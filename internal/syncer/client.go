// Package syncer reconciles the local inbox with a remote notification
// service. Sync is best effort: failures are logged and leave local state
// untouched.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// Client talks to the remote notification endpoint.
type Client struct {
	http     *http.Client
	endpoint string
}

// NewClient creates a client for endpoint, e.g. https://api.example.com/v1.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

type notificationsPayload struct {
	Notifications []model.Notification `json:"notifications"`
	ProfileID     string               `json:"profileId"`
}

// Fetch returns the server's notifications for a profile changed since the
// given instant. A zero since fetches everything.
func (c *Client) Fetch(ctx context.Context, profileID string, since time.Time) ([]model.Notification, error) {
	q := url.Values{"profileId": {profileID}}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/notifications?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSyncUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: server responded %s", common.ErrSyncUnavailable, resp.Status)
	}

	var payload notificationsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload.Notifications, nil
}

// Push uploads the local notifications of a profile.
func (c *Client) Push(ctx context.Context, profileID string, notifications []model.Notification) error {
	body, err := json.Marshal(notificationsPayload{ProfileID: profileID, Notifications: notifications})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrSyncUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: server responded %s", common.ErrSyncUnavailable, resp.Status)
	}
	return nil
}
