package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ponyo877/replicator/server/domain"
)

var errNotFound = errors.New("not found")

// adminClient calls the server's /admin HTTP API.
type adminClient struct {
	base string
	http *http.Client
}

func newAdminClient(base string) *adminClient {
	return &adminClient{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type roomList struct {
	Rooms []domain.Room      `json:"rooms"`
	Stats domain.StreamStats `json:"stats"`
}

type memberList struct {
	Room    string          `json:"room"`
	Members []domain.Member `json:"members"`
}

type reloadResult struct {
	Room string `json:"room"`
	Sent int    `json:"sent"`
}

type historyEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Room      string `json:"room"`
	Name      string `json:"name"`
	Remote    string `json:"remote"`
	Timestamp string `json:"timestamp"`
}

type historyList struct {
	Room   string         `json:"room"`
	Events []historyEvent `json:"events"`
}

func (c *adminClient) Rooms(ctx context.Context) (roomList, error) {
	var out roomList
	err := c.do(ctx, http.MethodGet, "/admin/rooms", nil, &out)
	return out, err
}

func (c *adminClient) Members(ctx context.Context, room string) (memberList, error) {
	var out memberList
	err := c.do(ctx, http.MethodGet, "/admin/rooms/members", url.Values{"room": {room}}, &out)
	return out, err
}

func (c *adminClient) Reload(ctx context.Context, room string) (reloadResult, error) {
	var out reloadResult
	err := c.do(ctx, http.MethodPost, "/admin/rooms/reload", url.Values{"room": {room}}, &out)
	return out, err
}

func (c *adminClient) History(ctx context.Context, room, pattern string, limit int) (historyList, error) {
	query := url.Values{"room": {room}}
	if pattern != "" {
		query.Set("pattern", pattern)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out historyList
	err := c.do(ctx, http.MethodGet, "/admin/sessions/history", query, &out)
	return out, err
}

func (c *adminClient) do(ctx context.Context, method, path string, query url.Values, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&body)
		if body.Error == "" {
			body.Error = resp.Status
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", errNotFound, body.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, body.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
