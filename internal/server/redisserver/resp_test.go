package redisserver

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestReadCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"array", "*2\r\n$4\r\nOPEN\r\n$1\r\n0\r\n", []string{"OPEN", "0"}},
		{"binary payload", "*3\r\n$5\r\nWRITE\r\n$1\r\n0\r\n$4\r\na\r\nb\r\n", []string{"WRITE", "0", "a\r\nb"}},
		{"empty bulk", "*2\r\n$4\r\nPING\r\n$0\r\n\r\n", []string{"PING", ""}},
		{"inline", "PING hello\r\n", []string{"PING", "hello"}},
		{"empty array", "*0\r\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCommand(reader(tt.input), 0)
			if err != nil {
				t.Fatalf("ReadCommand() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ReadCommand() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if string(got[i]) != tt.want[i] {
					t.Errorf("arg[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestReadCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxBulk int
		wantErr error
	}{
		{"too many elements", "*17\r\n", 0, ErrLimitExceeded},
		{"bulk over limit", "*1\r\n$9\r\n", 8, ErrLimitExceeded},
		{"bad header", "*1\r\n:4\r\n", 0, ErrProtocol},
		{"bad length", "*1\r\n$x\r\n", 0, ErrProtocol},
		{"bad terminator", "*1\r\n$4\r\nPINGxx", 0, ErrProtocol},
		{"missing CR", "*1\n", 0, ErrProtocol},
		{"inline too long", strings.Repeat("a", MaxInlineLen+10) + "\r\n", 0, ErrLimitExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCommand(reader(tt.input), tt.maxBulk)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadCommand() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriters(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	_ = WriteSimpleString(w, "OK")
	_ = WriteError(w, "ERR VT-DEV-4040 device not found")
	_ = WriteInteger(w, -3)
	_ = WriteBulk(w, nil)
	_ = WriteBulkString(w, "hi")
	_ = WriteNullBulk(w)
	_ = WriteArrayHeader(w, 2)
	_ = w.Flush()

	want := "+OK\r\n-ERR VT-DEV-4040 device not found\r\n:-3\r\n$0\r\n\r\n$2\r\nhi\r\n$-1\r\n*2\r\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestReadValue(t *testing.T) {
	r := reader("*2\r\n:7\r\n$3\r\nabc\r\n-ERR VT-AUTH-4030 permission denied\r\n$-1\r\n")

	v, err := ReadValue(r, 0)
	if err != nil {
		t.Fatalf("ReadValue() error = %v", err)
	}
	if v.Kind != '*' || len(v.Array) != 2 {
		t.Fatalf("ReadValue() = %+v, want 2-element array", v)
	}
	if v.Array[0].Int != 7 || string(v.Array[1].Bulk) != "abc" {
		t.Errorf("array = %+v", v.Array)
	}

	v, err = ReadValue(r, 0)
	if err != nil {
		t.Fatalf("ReadValue() error = %v", err)
	}
	var re *ReplyError
	if !errors.As(v.Err(), &re) {
		t.Fatalf("Err() = %v, want *ReplyError", v.Err())
	}
	if re.Code() != "VT-AUTH-4030" {
		t.Errorf("Code() = %q, want VT-AUTH-4030", re.Code())
	}

	v, err = ReadValue(r, 0)
	if err != nil {
		t.Fatalf("ReadValue() error = %v", err)
	}
	if !v.Null {
		t.Errorf("expected null bulk, got %+v", v)
	}
}

func TestWriteCommandRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := WriteCommand(w, []byte("WRITE"), []byte("3"), []byte{0, 1, 2}); err != nil {
		t.Fatalf("WriteCommand() error = %v", err)
	}
	_ = w.Flush()

	args, err := ReadCommand(bufio.NewReader(&buf), 0)
	if err != nil {
		t.Fatalf("ReadCommand() error = %v", err)
	}
	if len(args) != 3 || !bytes.Equal(args[2], []byte{0, 1, 2}) {
		t.Errorf("args = %q", args)
	}
}

func TestNormalizeCommandName(t *testing.T) {
	for in, want := range map[string]string{"ping": "PING", "Ioctl": "IOCTL", "STAT": "STAT"} {
		if got := normalizeCommandName([]byte(in)); got != want {
			t.Errorf("normalizeCommandName(%q) = %q, want %q", in, got, want)
		}
	}
}
