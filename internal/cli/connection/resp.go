package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/yndnr/vault-go/internal/server/redisserver"
)

// DefaultDialTimeout bounds connection setup.
const DefaultDialTimeout = 5 * time.Second

// RESPClient speaks the device protocol of vault-server.
type RESPClient struct {
	addr    string
	timeout time.Duration

	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
}

// NewRESPClient creates a client for addr. The connection is made
// lazily by the first command.
func NewRESPClient(addr string, timeout time.Duration) *RESPClient {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &RESPClient{addr: addr, timeout: timeout}
}

// Addr returns the server address.
func (c *RESPClient) Addr() string {
	return c.addr
}

// Connect dials the server.
func (c *RESPClient) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.addr, err)
	}
	c.conn = conn
	c.br = bufio.NewReader(conn)
	c.bw = bufio.NewWriter(conn)
	return nil
}

// Close closes the connection. Handles still open on the server are
// released with it.
func (c *RESPClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Do sends one command and reads its reply. An error reply is returned
// as *redisserver.ReplyError.
func (c *RESPClient) Do(ctx context.Context, args ...string) (redisserver.Value, error) {
	if err := c.Connect(ctx); err != nil {
		return redisserver.Value{}, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	raw := make([][]byte, len(args))
	for i, a := range args {
		raw[i] = []byte(a)
	}
	if err := redisserver.WriteCommand(c.bw, raw...); err != nil {
		return redisserver.Value{}, c.fail(err)
	}
	if err := c.bw.Flush(); err != nil {
		return redisserver.Value{}, c.fail(err)
	}

	v, err := redisserver.ReadValue(c.br, redisserver.DefaultMaxBulkLen)
	if err != nil {
		return redisserver.Value{}, c.fail(err)
	}
	if err := v.Err(); err != nil {
		return v, err
	}
	return v, nil
}

// fail drops a connection whose stream state is unknown.
func (c *RESPClient) fail(err error) error {
	c.Close()
	return err
}

func (c *RESPClient) doInt(ctx context.Context, args ...string) (int, error) {
	v, err := c.Do(ctx, args...)
	if err != nil {
		return 0, err
	}
	if v.Kind != ':' {
		return 0, unexpected(args[0], v)
	}
	return int(v.Int), nil
}

// Ping checks that the server answers.
func (c *RESPClient) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, "PING")
	return err
}

// Auth elevates the connection with the admin secret.
func (c *RESPClient) Auth(ctx context.Context, secret string) error {
	_, err := c.Do(ctx, "AUTH", secret)
	return err
}

// Open opens device dev and returns the handle number.
func (c *RESPClient) Open(ctx context.Context, dev int, mode string) (int, error) {
	args := []string{"OPEN", strconv.Itoa(dev)}
	if mode != "" {
		args = append(args, mode)
	}
	return c.doInt(ctx, args...)
}

// CloseHandle releases handle fd.
func (c *RESPClient) CloseHandle(ctx context.Context, fd int) error {
	_, err := c.Do(ctx, "CLOSE", strconv.Itoa(fd))
	return err
}

// Read reads up to n bytes at the handle position. An empty result
// means end of data.
func (c *RESPClient) Read(ctx context.Context, fd, n int) ([]byte, error) {
	v, err := c.Do(ctx, "READ", strconv.Itoa(fd), strconv.Itoa(n))
	if err != nil {
		return nil, err
	}
	if v.Kind != '$' {
		return nil, unexpected("READ", v)
	}
	return v.Bulk, nil
}

// Write writes p at the handle position and returns the number of
// bytes accepted, which may be short.
func (c *RESPClient) Write(ctx context.Context, fd int, p []byte) (int, error) {
	return c.doInt(ctx, "WRITE", strconv.Itoa(fd), string(p))
}

// Seek repositions the handle and returns the new position.
func (c *RESPClient) Seek(ctx context.Context, fd int, off int64, whence string) (int64, error) {
	args := []string{"SEEK", strconv.Itoa(fd), strconv.FormatInt(off, 10)}
	if whence != "" {
		args = append(args, whence)
	}
	n, err := c.doInt(ctx, args...)
	return int64(n), err
}

// Ioctl issues a control command on the handle. arg is nil when the
// command takes no value.
func (c *RESPClient) Ioctl(ctx context.Context, fd int, command string, arg *int) (result, out int, err error) {
	args := []string{"IOCTL", strconv.Itoa(fd), command}
	if arg != nil {
		args = append(args, strconv.Itoa(*arg))
	}
	v, err := c.Do(ctx, args...)
	if err != nil {
		return 0, 0, err
	}
	if v.Kind != '*' || len(v.Array) != 2 {
		return 0, 0, unexpected("IOCTL", v)
	}
	return int(v.Array[0].Int), int(v.Array[1].Int), nil
}

// Stat returns the STAT field/value pairs of device dev in order.
func (c *RESPClient) Stat(ctx context.Context, dev int) ([][2]string, error) {
	v, err := c.Do(ctx, "STAT", strconv.Itoa(dev))
	if err != nil {
		return nil, err
	}
	if v.Kind != '*' || len(v.Array)%2 != 0 {
		return nil, unexpected("STAT", v)
	}
	pairs := make([][2]string, 0, len(v.Array)/2)
	for i := 0; i < len(v.Array); i += 2 {
		pairs = append(pairs, [2]string{string(v.Array[i].Bulk), string(v.Array[i+1].Bulk)})
	}
	return pairs, nil
}

// Info returns the INFO text.
func (c *RESPClient) Info(ctx context.Context) (string, error) {
	v, err := c.Do(ctx, "INFO")
	if err != nil {
		return "", err
	}
	if v.Kind != '$' {
		return "", unexpected("INFO", v)
	}
	return string(v.Bulk), nil
}

var errUnexpectedReply = errors.New("unexpected reply")

func unexpected(cmd string, v redisserver.Value) error {
	return fmt.Errorf("%s: %w type %q", cmd, errUnexpectedReply, v.Kind)
}
