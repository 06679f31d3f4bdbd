package redisserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/core/service"
	"github.com/yndnr/vault-go/internal/infra/buildinfo"
	"github.com/yndnr/vault-go/pkg/cmap"
)

// formatRedisError renders an error as "ERR <code> <message>[: details]".
func formatRedisError(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		msg := "ERR " + de.Code + " " + de.Message
		if de.Details != "" {
			msg += ": " + de.Details
		}
		return msg
	}
	return "ERR " + err.Error()
}

// RateLimiterRegistry keeps one token bucket per peer.
type RateLimiterRegistry struct {
	limit    int
	limiters *cmap.Map[string, *rate.Limiter]
}

// NewRateLimiterRegistry creates limiters allowing limit commands per
// second with a burst of limit. limit <= 0 allows everything.
func NewRateLimiterRegistry(limit int) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limit:    limit,
		limiters: cmap.New[string, *rate.Limiter](),
	}
}

// Allow reports whether peer may run one more command now.
func (r *RateLimiterRegistry) Allow(peer string) bool {
	if r.limit <= 0 {
		return true
	}
	l := r.limiters.GetOrCreate(peer, func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(r.limit), r.limit)
	})
	return l.Allow()
}

func peerIP(addr net.Addr) string {
	s := addr.String()
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}

// CommandHandler executes RESP commands against the registry.
type CommandHandler struct {
	srv      *Server
	registry *service.Registry
	limiter  *RateLimiterRegistry
	logger   *slog.Logger
	started  time.Time
}

// NewCommandHandler creates a handler bound to srv's configuration.
func NewCommandHandler(srv *Server, registry *service.Registry) *CommandHandler {
	return &CommandHandler{
		srv:      srv,
		registry: registry,
		limiter:  NewRateLimiterRegistry(srv.cfg.RateLimit),
		logger:   srv.logger,
		started:  time.Now(),
	}
}

// Handle runs one command and buffers its reply.
func (h *CommandHandler) Handle(conn *Conn, args [][]byte) {
	name := normalizeCommandName(args[0])
	start := time.Now()

	if name != "QUIT" && !h.limiter.Allow(peerIP(conn.RemoteAddr())) {
		h.srv.metrics.RecordRateLimited(surface)
		_ = WriteError(conn.bw, formatRedisError(domain.ErrRateLimited))
		return
	}

	err := h.dispatch(conn, name, args)

	status := "ok"
	if err != nil {
		status = domain.GetErrorCode(err)
		if status == "" {
			status = "error"
		}
		_ = WriteError(conn.bw, formatRedisError(err))
	}
	h.srv.metrics.RecordRequest(surface, metricName(name), status)
	h.srv.metrics.ObserveRequestDuration(surface, metricName(name), time.Since(start).Seconds())
}

// metricName keeps unknown command names out of metric labels.
func metricName(name string) string {
	switch name {
	case "PING", "QUIT", "AUTH", "OPEN", "CLOSE", "READ", "WRITE", "SEEK", "IOCTL", "STAT", "INFO":
		return name
	}
	return "UNKNOWN"
}

// dispatch writes the success reply itself and returns any error for
// Handle to render.
func (h *CommandHandler) dispatch(conn *Conn, name string, args [][]byte) error {
	switch name {
	case "PING":
		return h.handlePing(conn, args)
	case "QUIT":
		return h.handleQuit(conn, args)
	case "AUTH":
		return h.handleAuth(conn, args)
	case "OPEN":
		return h.handleOpen(conn, args)
	case "CLOSE":
		return h.handleClose(conn, args)
	case "READ":
		return h.handleRead(conn, args)
	case "WRITE":
		return h.handleWrite(conn, args)
	case "SEEK":
		return h.handleSeek(conn, args)
	case "IOCTL":
		return h.handleIoctl(conn, args)
	case "STAT":
		return h.handleStat(conn, args)
	case "INFO":
		return h.handleInfo(conn, args)
	}
	return domain.ErrBadRequest.WithDetails("unknown command '" + name + "'")
}

func badArgs(cmd string) error {
	return domain.ErrBadRequest.WithDetails("wrong number of arguments for '" + cmd + "' command")
}

func parseInt(b []byte, what string) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidArgument.WithDetails(what + " is not an integer")
	}
	return n, nil
}

// PING [message]
func (h *CommandHandler) handlePing(conn *Conn, args [][]byte) error {
	switch len(args) {
	case 1:
		return WriteSimpleString(conn.bw, "PONG")
	case 2:
		return WriteBulk(conn.bw, args[1])
	}
	return badArgs("PING")
}

// QUIT
func (h *CommandHandler) handleQuit(conn *Conn, _ [][]byte) error {
	conn.closing.Store(true)
	return WriteSimpleString(conn.bw, "OK")
}

// AUTH <secret>
func (h *CommandHandler) handleAuth(conn *Conn, args [][]byte) error {
	if len(args) != 2 {
		return badArgs("AUTH")
	}
	if h.srv.cfg.AdminSecretHash == "" {
		return domain.ErrAuthFailed.WithDetails("AUTH is not configured")
	}
	if !domain.VerifySecret(string(args[1]), h.srv.cfg.AdminSecretHash) {
		h.srv.metrics.RecordAuthFailure(surface)
		h.logger.Warn("admin authentication failed", "conn_id", conn.id, "remote", conn.RemoteAddr().String())
		return domain.ErrAuthFailed
	}

	conn.privileged.Store(true)
	h.logger.Info("connection elevated", "conn_id", conn.id, "remote", conn.RemoteAddr().String())
	return WriteSimpleString(conn.bw, "OK")
}

// OPEN <dev> [mode]
func (h *CommandHandler) handleOpen(conn *Conn, args [][]byte) error {
	if len(args) < 2 || len(args) > 3 {
		return badArgs("OPEN")
	}
	dev, err := parseInt(args[1], "device")
	if err != nil {
		return err
	}
	mode := domain.ReadOnly
	if len(args) == 3 {
		if mode, err = domain.ParseAccessMode(string(args[2])); err != nil {
			return err
		}
	}

	f, err := h.registry.Open(conn.callContext(), int(dev), mode)
	if err != nil {
		return err
	}
	fd, err := conn.addFile(f)
	if err != nil {
		_ = f.Close()
		return err
	}
	return WriteInteger(conn.bw, int64(fd))
}

// CLOSE <h>
func (h *CommandHandler) handleClose(conn *Conn, args [][]byte) error {
	if len(args) != 2 {
		return badArgs("CLOSE")
	}
	fd, err := parseInt(args[1], "handle")
	if err != nil {
		return err
	}
	f, err := conn.removeFile(int(fd))
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return WriteSimpleString(conn.bw, "OK")
}

func (h *CommandHandler) fileArg(conn *Conn, b []byte) (*service.File, error) {
	fd, err := parseInt(b, "handle")
	if err != nil {
		return nil, err
	}
	return conn.file(int(fd))
}

// READ <h> <count>
func (h *CommandHandler) handleRead(conn *Conn, args [][]byte) error {
	if len(args) != 3 {
		return badArgs("READ")
	}
	f, err := h.fileArg(conn, args[1])
	if err != nil {
		return err
	}
	n, err := parseInt(args[2], "count")
	if err != nil {
		return err
	}
	if n < 0 {
		return domain.ErrInvalidArgument.WithDetails("negative count")
	}
	if n > int64(h.srv.cfg.MaxBulk) {
		n = int64(h.srv.cfg.MaxBulk)
	}

	data, err := f.Read(conn.callContext(), int(n))
	if err != nil {
		return err
	}
	return WriteBulk(conn.bw, data)
}

// WRITE <h> <data>
func (h *CommandHandler) handleWrite(conn *Conn, args [][]byte) error {
	if len(args) != 3 {
		return badArgs("WRITE")
	}
	f, err := h.fileArg(conn, args[1])
	if err != nil {
		return err
	}

	n, err := f.Write(conn.callContext(), args[2])
	if err != nil {
		return err
	}
	return WriteInteger(conn.bw, int64(n))
}

// SEEK <h> <offset> [whence]
func (h *CommandHandler) handleSeek(conn *Conn, args [][]byte) error {
	if len(args) < 3 || len(args) > 4 {
		return badArgs("SEEK")
	}
	f, err := h.fileArg(conn, args[1])
	if err != nil {
		return err
	}
	off, err := parseInt(args[2], "offset")
	if err != nil {
		return err
	}
	whence := domain.SeekSet
	if len(args) == 4 {
		if whence, err = domain.ParseWhence(string(args[3])); err != nil {
			return err
		}
	}

	pos, err := f.Seek(off, whence)
	if err != nil {
		return err
	}
	return WriteInteger(conn.bw, pos)
}

// IOCTL <h> <command> [arg]
//
// command is a name ("X-QUANTUM") or a numeric code. For Set and
// Exchange, arg is the value stored at the argument address; leaving it
// out passes a null address. The reply is [result, out], where out is
// the value at the argument address after the call.
func (h *CommandHandler) handleIoctl(conn *Conn, args [][]byte) error {
	if len(args) < 3 || len(args) > 4 {
		return badArgs("IOCTL")
	}
	f, err := h.fileArg(conn, args[1])
	if err != nil {
		return err
	}
	code, err := domain.LookupCode(string(args[2]))
	if err != nil {
		return err
	}

	var v int64
	hasArg := len(args) == 4
	if hasArg {
		if v, err = parseInt(args[3], "argument"); err != nil {
			return err
		}
	}
	arg, out := domain.BindArg(code, int(v), hasArg)

	ret, err := f.Control(conn.callContext(), code, arg)
	if err != nil {
		return err
	}

	if err := WriteArrayHeader(conn.bw, 2); err != nil {
		return err
	}
	if err := WriteInteger(conn.bw, int64(ret)); err != nil {
		return err
	}
	return WriteInteger(conn.bw, int64(*out))
}

// STAT <dev>
func (h *CommandHandler) handleStat(conn *Conn, args [][]byte) error {
	if len(args) != 2 {
		return badArgs("STAT")
	}
	idx, err := parseInt(args[1], "device")
	if err != nil {
		return err
	}
	dev, err := h.registry.Device(int(idx))
	if err != nil {
		return err
	}
	st, err := dev.Stat(conn.callContext())
	if err != nil {
		return err
	}

	fields := [][2]string{
		{"index", strconv.Itoa(st.Index)},
		{"name", st.Name},
		{"devnum", st.DevNum.String()},
		{"size", strconv.FormatInt(st.Size, 10)},
		{"quantum", strconv.Itoa(st.Quantum)},
		{"qset", strconv.Itoa(st.Qset)},
		{"capacity", strconv.FormatInt(st.Capacity, 10)},
		{"segments", strconv.Itoa(st.Segments)},
		{"resident_bytes", strconv.FormatInt(st.Resident, 10)},
	}
	if err := WriteArrayHeader(conn.bw, len(fields)*2); err != nil {
		return err
	}
	for _, kv := range fields {
		if err := WriteBulkString(conn.bw, kv[0]); err != nil {
			return err
		}
		if err := WriteBulkString(conn.bw, kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// INFO
func (h *CommandHandler) handleInfo(conn *Conn, args [][]byte) error {
	if len(args) != 1 {
		return badArgs("INFO")
	}

	quantum, qset := h.registry.Params().Snapshot()
	defQuantum, defQset := h.registry.Params().Defaults()
	budget := h.registry.Budget()
	bi := buildinfo.Get()

	var b strings.Builder
	section := func(name string) { fmt.Fprintf(&b, "# %s\r\n", name) }
	kv := func(k string, v any) { fmt.Fprintf(&b, "%s:%v\r\n", k, v) }

	section("Server")
	kv("version", bi.Version)
	kv("commit", bi.Commit)
	kv("go_version", bi.GoVersion)
	kv("uptime_seconds", int64(time.Since(h.started).Seconds()))
	b.WriteString("\r\n")

	section("Clients")
	kv("connected_clients", h.srv.ConnCount())
	kv("open_handles", conn.openFiles())
	kv("privileged", conn.Privileged())
	b.WriteString("\r\n")

	section("Vault")
	kv("nr_devs", h.registry.Len())
	kv("major", h.registry.Major())
	kv("quantum", quantum)
	kv("qset", qset)
	kv("default_quantum", defQuantum)
	kv("default_qset", defQset)
	kv("memory_used", budget.Used())
	kv("memory_limit", budget.Limit())

	return WriteBulkString(conn.bw, b.String())
}
