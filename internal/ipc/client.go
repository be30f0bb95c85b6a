package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

const dialTimeout = 3 * time.Second

// Client talks to the bridge daemon over its Unix sockets.
type Client struct {
	socketPath      string
	eventSocketPath string
}

// NewClient creates a client for the given socket paths.
func NewClient(socketPath, eventSocketPath string) *Client {
	return &Client{
		socketPath:      socketPath,
		eventSocketPath: eventSocketPath,
	}
}

// Call sends one request on the stream socket and reads one response.
func (c *Client) Call(req Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon at %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return nil, fmt.Errorf("connection closed before response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	return &resp, nil
}

// Send fires one event datagram. There is no acknowledgement: a nil error
// only means the datagram left this process.
func (c *Client) Send(ev Event) error {
	conn, err := net.Dial("unixgram", c.eventSocketPath)
	if err != nil {
		return fmt.Errorf("failed to reach event socket at %s: %w", c.eventSocketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}
