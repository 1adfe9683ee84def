package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"syscall"
	"time"
)

// ErrNotRunning means nothing is listening on the socket.
var ErrNotRunning = errors.New("ipc: daemon is not running")

type Client struct {
	SocketPath string
	Timeout    time.Duration
	RetryDelay time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{SocketPath: socketPath, Timeout: 5 * time.Second, RetryDelay: 100 * time.Millisecond}
}

// Send delivers m and waits for the daemon's response. A daemon that is not
// listening yet gets one more attempt after RetryDelay.
func (c *Client) Send(ctx context.Context, m Message) (Response, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	if err := writeMessage(conn, m); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("error receiving response: %w", err)
	}
	return resp, nil
}

// Subscribe streams notices to fn until ctx is cancelled or the daemon hangs up.
func (c *Client) Subscribe(ctx context.Context, fn func(Notice)) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(c.Timeout))
	if err := writeMessage(conn, Subscribe{}); err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Time{})

	decoder := json.NewDecoder(conn)
	var ack Response
	if err := decoder.Decode(&ack); err != nil {
		return fmt.Errorf("error receiving subscription ack: %w", err)
	}
	if !ack.Success {
		return fmt.Errorf("subscription refused: %s", ack.Message)
	}
	for {
		var n Notice
		if err := decoder.Decode(&n); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("error reading notice: %w", err)
		}
		fn(n)
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	conn, err := c.dialOnce(ctx)
	if err == nil {
		return conn, nil
	}
	if !notListening(err) {
		return nil, fmt.Errorf("error connecting to daemon socket (%s): %w", c.SocketPath, err)
	}
	log.Printf("Daemon socket %s not ready, retrying in %s", c.SocketPath, c.RetryDelay)
	select {
	case <-time.After(c.RetryDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	conn, err = c.dialOnce(ctx)
	if err != nil {
		if notListening(err) {
			return nil, fmt.Errorf("%w (%s): %v", ErrNotRunning, c.SocketPath, err)
		}
		return nil, fmt.Errorf("error connecting to daemon socket (%s): %w", c.SocketPath, err)
	}
	return conn, nil
}

func (c *Client) dialOnce(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: 2 * time.Second}
	return d.DialContext(ctx, "unix", c.SocketPath)
}

func notListening(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}

func writeMessage(w io.Writer, m Message) error {
	env, err := Encode(m)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		return fmt.Errorf("error sending %s: %w", m.Kind(), err)
	}
	return nil
}
