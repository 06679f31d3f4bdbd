package redisserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Protocol limits.
const (
	// MaxArrayLen limits the number of elements in a command array.
	MaxArrayLen = 16

	// DefaultMaxBulkLen limits a single bulk string unless the reader is
	// configured otherwise.
	DefaultMaxBulkLen = 1 << 20

	// MaxInlineLen limits an inline command line.
	MaxInlineLen = 4 * 1024

	maxHeaderLen = 64
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// ReadCommand reads one command as an array of bulk strings, or an
// inline command line.
func ReadCommand(r *bufio.Reader, maxBulk int) ([][]byte, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}

	if b[0] != '*' {
		line, err := readLine(r, MaxInlineLen)
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		out := make([][]byte, 0, len(fields))
		for _, f := range fields {
			out = append(out, []byte(f))
		}
		return out, nil
	}

	n, err := readHeader(r, '*')
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		size, err := readHeader(r, '$')
		if err != nil {
			return nil, err
		}
		arg, err := readBulkBody(r, size, maxBulk)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

func readHeader(r *bufio.Reader, prefix byte) (int, error) {
	line, err := readLine(r, maxHeaderLen)
	if err != nil {
		return 0, err
	}
	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("%w: expected '%c'", ErrProtocol, prefix)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid length", ErrProtocol)
	}
	return n, nil
}

// readBulkBody reads n bytes plus CRLF. n == -1 is the null bulk.
func readBulkBody(r *bufio.Reader, n, maxBulk int) ([]byte, error) {
	if maxBulk <= 0 {
		maxBulk = DefaultMaxBulkLen
	}
	switch {
	case n == -1:
		return nil, nil
	case n < 0:
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	case n > maxBulk:
		return nil, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, maxBulk)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return buf[:n], nil
}

func readLine(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		buf = append(buf, frag...)
		if len(buf) > maxLen {
			return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
		}
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return "", err
		}
	}

	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(buf[:len(buf)-2]), nil
}

// ============================================================================
// Replies
// ============================================================================

func WriteSimpleString(w *bufio.Writer, s string) error {
	_, err := w.WriteString("+" + s + "\r\n")
	return err
}

func WriteError(w *bufio.Writer, s string) error {
	_, err := w.WriteString("-" + s + "\r\n")
	return err
}

func WriteInteger(w *bufio.Writer, n int64) error {
	_, err := w.WriteString(":" + strconv.FormatInt(n, 10) + "\r\n")
	return err
}

func WriteNullBulk(w *bufio.Writer) error {
	_, err := w.WriteString("$-1\r\n")
	return err
}

func WriteBulk(w *bufio.Writer, b []byte) error {
	if b == nil {
		b = []byte{}
	}
	if _, err := w.WriteString("$" + strconv.Itoa(len(b)) + "\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

func WriteBulkString(w *bufio.Writer, s string) error {
	return WriteBulk(w, []byte(s))
}

func WriteArrayHeader(w *bufio.Writer, n int) error {
	_, err := w.WriteString("*" + strconv.Itoa(n) + "\r\n")
	return err
}

// ============================================================================
// Client side
// ============================================================================

// Value is a decoded reply.
type Value struct {
	Kind  byte // '+', '-', ':', '$' or '*'
	Str   string
	Int   int64
	Bulk  []byte
	Null  bool
	Array []Value
}

// Err returns the reply as an error if it is an error reply.
func (v Value) Err() error {
	if v.Kind == '-' {
		return &ReplyError{Msg: v.Str}
	}
	return nil
}

// ReplyError is an error reply sent by the server.
type ReplyError struct {
	Msg string
}

func (e *ReplyError) Error() string { return e.Msg }

// Code returns the error code of an "ERR <code> <message>" reply.
func (e *ReplyError) Code() string {
	fields := strings.Fields(e.Msg)
	if len(fields) >= 2 && fields[0] == "ERR" && strings.HasPrefix(fields[1], "VT-") {
		return fields[1]
	}
	return ""
}

// ReadValue reads one reply of any type.
func ReadValue(r *bufio.Reader, maxBulk int) (Value, error) {
	line, err := readLine(r, maxHeaderLen+MaxInlineLen)
	if err != nil {
		return Value{}, err
	}
	if line == "" {
		return Value{}, fmt.Errorf("%w: empty reply", ErrProtocol)
	}

	v := Value{Kind: line[0]}
	switch v.Kind {
	case '+', '-':
		v.Str = line[1:]
	case ':':
		if v.Int, err = strconv.ParseInt(line[1:], 10, 64); err != nil {
			return Value{}, fmt.Errorf("%w: invalid integer", ErrProtocol)
		}
	case '$':
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid length", ErrProtocol)
		}
		if v.Bulk, err = readBulkBody(r, n, maxBulk); err != nil {
			return Value{}, err
		}
		v.Null = n == -1
	case '*':
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid length", ErrProtocol)
		}
		if n == -1 {
			v.Null = true
			break
		}
		for i := 0; i < n; i++ {
			elem, err := ReadValue(r, maxBulk)
			if err != nil {
				return Value{}, err
			}
			v.Array = append(v.Array, elem)
		}
	default:
		return Value{}, fmt.Errorf("%w: unknown reply type %q", ErrProtocol, v.Kind)
	}
	return v, nil
}

// WriteCommand encodes args as a command array.
func WriteCommand(w *bufio.Writer, args ...[]byte) error {
	if err := WriteArrayHeader(w, len(args)); err != nil {
		return err
	}
	for _, a := range args {
		if err := WriteBulk(w, a); err != nil {
			return err
		}
	}
	return nil
}

func normalizeCommandName(b []byte) string {
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}
