package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/clipdot/clipd/internal/types"
)

const (
	maxRetries = 3
	retryDelay = 500 * time.Millisecond
)

// Client talks to the daemon's command endpoint, one framed
// request/response exchange per connection.
type Client struct {
	socketPath     string
	connectTimeout time.Duration
	readPoll       time.Duration
}

// NewClient creates a client for the command socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath:     socketPath,
		connectTimeout: DefaultConnectTimeout,
		readPoll:       DefaultReadPoll,
	}
}

// Send performs one request/response exchange.
func (c *Client) Send(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	if err := WriteMessage(conn, payload); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reply, ok := ReadMessage(conn, c.readPoll)
	if !ok {
		return nil, fmt.Errorf("timed out waiting for daemon response")
	}
	var resp Response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// sendWithRetry retries transient connect failures a few times before
// giving up.
func (c *Client) sendWithRetry(req *Request) (*Response, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		resp, err := c.Send(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// Ping checks that the daemon answers on the command channel.
func (c *Client) Ping() error {
	resp, err := c.sendWithRetry(&Request{Command: "ping"})
	if err != nil {
		return err
	}
	if !resp.IsOK() {
		return fmt.Errorf("ping failed: %s", resp.Message)
	}
	return nil
}

// History retrieves up to limit bundles, most recent first. A limit of
// 0 returns everything.
func (c *Client) History(limit int) ([]*types.Bundle, error) {
	req := &Request{
		Command: "history",
		Args:    map[string]interface{}{"limit": limit},
	}
	resp, err := c.sendWithRetry(req)
	if err != nil {
		return nil, err
	}
	if !resp.IsOK() {
		return nil, fmt.Errorf("failed to get history: %s", resp.Message)
	}
	var bundles []*types.Bundle
	if err := json.Unmarshal(resp.Data, &bundles); err != nil {
		return nil, fmt.Errorf("invalid history data: %w", err)
	}
	return bundles, nil
}

// Copy inserts bundle at the front of the daemon's history.
func (c *Client) Copy(bundle *types.Bundle) error {
	req := &Request{
		Command: "copy",
		Args:    map[string]interface{}{"bundle": bundle},
	}
	resp, err := c.sendWithRetry(req)
	if err != nil {
		return err
	}
	if !resp.IsOK() {
		return fmt.Errorf("failed to copy: %s", resp.Message)
	}
	return nil
}

// Paste promotes the item at row to the front and returns its bundle.
func (c *Client) Paste(row int) (*types.Bundle, error) {
	req := &Request{
		Command: "paste",
		Args:    map[string]interface{}{"row": row},
	}
	resp, err := c.sendWithRetry(req)
	if err != nil {
		return nil, err
	}
	if !resp.IsOK() {
		return nil, fmt.Errorf("failed to paste: %s", resp.Message)
	}
	bundle := types.NewBundle()
	if err := json.Unmarshal(resp.Data, bundle); err != nil {
		return nil, fmt.Errorf("invalid paste data: %w", err)
	}
	return bundle, nil
}

// MonitorFeed streams clipboard snapshots to the daemon's monitor
// endpoint over one long-lived connection. Each snapshot is one frame
// carrying the bundle's stream form.
type MonitorFeed struct {
	conn net.Conn
}

// DialMonitor connects to the monitor endpoint at socketPath.
func DialMonitor(socketPath string, timeout time.Duration) (*MonitorFeed, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to monitor endpoint: %w", err)
	}
	return &MonitorFeed{conn: conn}, nil
}

// Send delivers one clipboard snapshot.
func (f *MonitorFeed) Send(bundle *types.Bundle) error {
	return WriteMessage(f.conn, bundle.Serialize())
}

// Ping sends a body-less wake frame.
func (f *MonitorFeed) Ping() error {
	return WriteMessage(f.conn, nil)
}

// Close closes the feed connection.
func (f *MonitorFeed) Close() error {
	return f.conn.Close()
}

// ClearHistory removes every item from the daemon's history.
func (c *Client) ClearHistory() error {
	resp, err := c.sendWithRetry(&Request{Command: "clear"})
	if err != nil {
		return err
	}
	if !resp.IsOK() {
		return fmt.Errorf("failed to clear history: %s", resp.Message)
	}
	return nil
}
