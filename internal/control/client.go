package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client sends control commands to a running server
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new control client
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    10 * time.Second, // Default 10s timeout
	}
}

// SetTimeout sets the client timeout for commands
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SendCommand sends a command to the server and waits for the response
func (c *Client) SendCommand(cmd Command) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server (is \"taskpilot serve\" running?): %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &resp, nil
}

// Status requests the server's engine and scheduler status
func (c *Client) Status() (*Response, error) {
	return c.SendCommand(Command{Type: CommandStatus, Timestamp: time.Now()})
}

// Trigger asks the server to run a maintenance cycle now
func (c *Client) Trigger() (*Response, error) {
	return c.SendCommand(Command{Type: CommandTrigger, Timestamp: time.Now()})
}

// Rank requests the server's current top-ranked tasks
func (c *Client) Rank(limit int) (*Response, error) {
	return c.SendCommand(Command{Type: CommandRank, Limit: limit, Timestamp: time.Now()})
}

// Decode unmarshals the response data stored under key into v. Data crosses
// the socket as generic JSON, so typed values are recovered by re-encoding.
func (r *Response) Decode(key string, v any) error {
	raw, ok := r.Data[key]
	if !ok {
		return fmt.Errorf("response has no %q field", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
