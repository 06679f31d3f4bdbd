package connection

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/yndnr/vault-go/internal/server/localserver"
)

// SocketClient talks to the local management socket.
type SocketClient struct {
	path string
	conn net.Conn
	br   *bufio.Reader
}

// NewSocketClient creates a new socket client.
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{path: socketPath}
}

// Path returns the socket path.
func (c *SocketClient) Path() string {
	return c.path
}

// Connect connects to the local socket.
func (c *SocketClient) Connect() error {
	conn, err := net.DialTimeout("unix", c.path, DefaultDialTimeout)
	if err != nil {
		return err
	}
	c.conn = conn
	c.br = bufio.NewReader(conn)
	return nil
}

// Close closes the socket connection.
func (c *SocketClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Execute sends one command line and returns the decoded reply.
func (c *SocketClient) Execute(ctx context.Context, cmd string, args ...string) (*localserver.Response, error) {
	if c.conn == nil {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer func() {
			if c.conn != nil {
				c.conn.SetDeadline(time.Time{})
			}
		}()
	}

	line := strings.Join(append([]string{cmd}, args...), " ")
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.Close()
		return nil, err
	}

	raw, err := c.br.ReadBytes('\n')
	if err != nil {
		c.Close()
		return nil, err
	}

	var resp localserver.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// Call executes cmd and decodes the reply data into target. A failed
// reply is returned as an error carrying its code.
func (c *SocketClient) Call(ctx context.Context, target any, cmd string, args ...string) error {
	resp, err := c.Execute(ctx, cmd, args...)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("[%s] %s", resp.Code, resp.Message)
	}
	if target == nil || resp.Data == nil {
		return nil
	}

	// Data arrives as generic JSON; re-encode it into the typed target.
	b, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, target); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}
