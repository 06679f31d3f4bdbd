package redisserver

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/core/service"
	"github.com/yndnr/vault-go/internal/telemetry/logger"
)

// MaxHandles caps the open handles of one connection.
const MaxHandles = 64

// Conn is one client connection and its handle table.
type Conn struct {
	id      string
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer

	// ctx is cancelled by Close so blocked device calls return.
	ctx    context.Context
	cancel context.CancelFunc

	privileged atomic.Bool
	closing    atomic.Bool
	closed     atomic.Bool

	mu    sync.Mutex
	files map[int]*service.File
}

func newConn(parent context.Context, nc net.Conn, id string) *Conn {
	ctx, cancel := context.WithCancel(logger.WithConnID(parent, id))
	return &Conn{
		id:      id,
		netConn: nc,
		br:      bufio.NewReader(nc),
		bw:      bufio.NewWriter(nc),
		ctx:     ctx,
		cancel:  cancel,
		files:   make(map[int]*service.File),
	}
}

// ID returns the connection ID.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }

// Privileged reports whether AUTH succeeded on this connection.
func (c *Conn) Privileged() bool { return c.privileged.Load() }

// callContext returns the per-call context carrying the connection's
// credentials.
func (c *Conn) callContext() context.Context {
	return domain.WithCredentials(c.ctx, domain.Credentials{
		Privileged: c.privileged.Load(),
		Peer:       c.RemoteAddr().String(),
	})
}

func (c *Conn) flush(timeout time.Duration) error {
	if err := c.netConn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.bw.Flush()
}

// Close cancels pending calls, closes every handle and the socket.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()

	c.mu.Lock()
	for fd, f := range c.files {
		_ = f.Close()
		delete(c.files, fd)
	}
	c.mu.Unlock()

	return c.netConn.Close()
}

// addFile stores f under the lowest free handle.
func (c *Conn) addFile(f *service.File) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for fd := 0; fd < MaxHandles; fd++ {
		if _, used := c.files[fd]; !used {
			c.files[fd] = f
			return fd, nil
		}
	}
	return -1, domain.ErrBadHandle.WithDetails("too many open handles")
}

func (c *Conn) file(fd int) (*service.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.files[fd]
	if !ok {
		return nil, domain.ErrBadHandle
	}
	return f, nil
}

func (c *Conn) removeFile(fd int) (*service.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.files[fd]
	if !ok {
		return nil, domain.ErrBadHandle
	}
	delete(c.files, fd)
	return f, nil
}

func (c *Conn) openFiles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}
