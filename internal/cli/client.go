// Package cli implements the HTTP client behind the hustled command line
// tool. Actor identity travels in the X-Actor-ID header.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL    string
	ActorID    string
	ActorName  string
	AdminToken string
	HTTP       *http.Client
}

func NewClient(baseURL, actorID string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		ActorID: actorID,
		HTTP: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

func (c *Client) Balance(ctx context.Context, actorID string) (map[string]any, error) {
	path := "/v1/balance"
	if actorID != "" {
		path += "/" + url.PathEscape(actorID)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, topN int) (map[string]any, error) {
	path := "/v1/leaderboard"
	if topN > 0 {
		path = fmt.Sprintf("/v1/leaderboard?n=%d", topN)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Work(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/work", nil, &out)
	return out, err
}

func (c *Client) Rob(ctx context.Context, targetID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/rob", map[string]any{
		"target_id": targetID,
	}, &out)
	return out, err
}

func (c *Client) Roulette(ctx context.Context, color string, amount int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/roulette", map[string]any{
		"color":  color,
		"amount": amount,
	}, &out)
	return out, err
}

func (c *Client) RoulettePending(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/roulette", nil, &out)
	return out, err
}

func (c *Client) CreateBusiness(ctx context.Context, name, description string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/businesses", map[string]any{
		"name":        name,
		"description": description,
	}, &out)
	return out, err
}

func (c *Client) ListBusinesses(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/businesses", nil, &out)
	return out, err
}

func (c *Client) ManageBusiness(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/businesses/mine", nil, &out)
	return out, err
}

func (c *Client) UpgradeOptions(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/businesses/upgrades", nil, &out)
	return out, err
}

func (c *Client) PurchaseUpgrade(ctx context.Context, selection string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/businesses/upgrade", map[string]any{
		"selection": selection,
	}, &out)
	return out, err
}

func (c *Client) ApplyStart(ctx context.Context, businessName string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/businesses/"+url.PathEscape(businessName)+"/apply", nil, &out)
	return out, err
}

func (c *Client) ApplyReply(ctx context.Context, sessionID, text string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/applications/sessions/"+url.PathEscape(sessionID)+"/reply", map[string]any{
		"text": text,
	}, &out)
	return out, err
}

func (c *Client) Applications(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/applications", nil, &out)
	return out, err
}

func (c *Client) Approve(ctx context.Context, applicationID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/applications/"+url.PathEscape(applicationID)+"/approve", nil, &out)
	return out, err
}

func (c *Client) Deny(ctx context.Context, applicationID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/applications/"+url.PathEscape(applicationID)+"/deny", nil, &out)
	return out, err
}

func (c *Client) Fire(ctx context.Context, actorID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/businesses/employees/"+url.PathEscape(actorID)+"/fire", nil, &out)
	return out, err
}

func (c *Client) AdminCredit(ctx context.Context, actorID string, amount int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/credit", map[string]any{
		"actor_id": actorID,
		"amount":   amount,
	}, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.ActorID != "" {
		req.Header.Set("X-Actor-ID", c.ActorID)
	}
	if c.ActorName != "" {
		req.Header.Set("X-Actor-Name", c.ActorName)
	}
	if c.AdminToken != "" {
		req.Header.Set("X-Admin-Token", c.AdminToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
