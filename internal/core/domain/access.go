package domain

import "strings"

// AccessMode is the open mode of a handle.
type AccessMode uint8

const (
	ReadOnly AccessMode = iota
	WriteOnly
	ReadWrite
)

// CanRead reports whether the mode permits reads.
func (m AccessMode) CanRead() bool { return m != WriteOnly }

// CanWrite reports whether the mode permits writes.
func (m AccessMode) CanWrite() bool { return m != ReadOnly }

// String implements fmt.Stringer.
func (m AccessMode) String() string {
	switch m {
	case WriteOnly:
		return "WRONLY"
	case ReadWrite:
		return "RDWR"
	}
	return "RDONLY"
}

// ParseAccessMode parses "RDONLY", "WRONLY", "RDWR" (case-insensitive,
// with or without an "O_" prefix, or the short forms r, w, rw).
func ParseAccessMode(s string) (AccessMode, error) {
	switch strings.TrimPrefix(strings.ToUpper(s), "O_") {
	case "RDONLY", "R", "":
		return ReadOnly, nil
	case "WRONLY", "W":
		return WriteOnly, nil
	case "RDWR", "RW":
		return ReadWrite, nil
	}
	return ReadOnly, ErrInvalidArgument.WithDetails("access mode " + s)
}

// Whence selects the origin of a seek.
type Whence uint8

const (
	SeekSet Whence = iota // absolute
	SeekCur               // relative to the current position
	SeekEnd               // relative to the device size
)

// ParseWhence parses "SET", "CUR", "END" or "0", "1", "2".
func ParseWhence(s string) (Whence, error) {
	switch strings.TrimPrefix(strings.ToUpper(s), "SEEK_") {
	case "SET", "0":
		return SeekSet, nil
	case "CUR", "1":
		return SeekCur, nil
	case "END", "2":
		return SeekEnd, nil
	}
	return SeekSet, ErrInvalidArgument.WithDetails("whence " + s)
}
