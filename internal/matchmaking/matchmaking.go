// Package matchmaking talks to the room directory service over HTTP. The
// directory only brokers room membership and hands out relay websocket
// endpoints; all realtime traffic goes through the relay itself.
package matchmaking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultMode is used when a create request does not name a game mode.
const defaultMode = "endless"

// APIError is a structured error response from the directory.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("matchmaking: %s (%s, http %d)", e.Message, e.Code, e.Status)
}

// Room is the directory's answer to create and join: where to connect and
// with what credentials. Seed and region are omitted by some deployments.
type Room struct {
	RoomID  string `json:"roomId"`
	Seed    string `json:"seed,omitempty"`
	Region  string `json:"region,omitempty"`
	WsURL   string `json:"wsUrl"`
	WsToken string `json:"wsToken"`
}

type CreateRoomRequest struct {
	Name       string `json:"name"`
	Region     string `json:"region,omitempty"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

type JoinRoomRequest struct {
	Name string `json:"name"`
}

// Region is one relay location in the status response.
type Region struct {
	ID     string `json:"id"`
	PingMs int    `json:"pingMs,omitempty"`
	WsURL  string `json:"wsUrl"`
}

// Status reports the available regions and the protocol version the
// servers speak, so a client can refuse to connect before dialing.
type Status struct {
	Regions  []Region `json:"regions"`
	ServerPV int      `json:"serverPv"`
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *log.Logger
}

func NewClient(baseURL string, logger *log.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logger,
	}
}

// SetHTTPClient overrides the underlying client, for tests and custom
// transports.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	if strings.TrimSpace(req.Mode) == "" {
		req.Mode = defaultMode
	}
	var room Room
	if err := c.do(ctx, http.MethodPost, "/v1/rooms", req, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID string, req JoinRoomRequest) (*Room, error) {
	var room Room
	path := "/v1/rooms/" + url.PathEscape(roomID) + "/join"
	if err := c.do(ctx, http.MethodPost, path, req, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// LeaveRoom is idempotent. A 404 means the room is already gone, which is
// the desired end state, so it is treated as success.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	path := "/v1/rooms/" + url.PathEscape(roomID) + "/leave"
	err := c.do(ctx, http.MethodPost, path, nil, nil)
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("matchmaking: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("matchmaking: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("matchmaking: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "HTTP_" + fmt.Sprint(resp.StatusCode)
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("matchmaking: decode response: %w", err)
	}
	return nil
}
