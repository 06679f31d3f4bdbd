package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is the shape of a control command.
type Op uint8

const (
	OpReset    Op = iota // restore compiled defaults
	OpSet                // new value read through Arg.Ptr
	OpTell               // new value in Arg.Value
	OpGet                // current value written through Arg.Ptr
	OpQuery              // current value returned as the result
	OpExchange           // Set, previous value written through Arg.Ptr
	OpShift              // Tell, previous value returned as the result
)

var opLetters = [...]string{
	OpReset:    "RESET",
	OpSet:      "S",
	OpTell:     "T",
	OpGet:      "G",
	OpQuery:    "Q",
	OpExchange: "X",
	OpShift:    "H",
}

// String implements fmt.Stringer.
func (o Op) String() string {
	if int(o) < len(opLetters) {
		return opLetters[o]
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// Indirect reports whether the shape passes its argument through a pointer.
func (o Op) Indirect() bool {
	return o == OpSet || o == OpGet || o == OpExchange
}

// Mutates reports whether the shape changes Params (and so needs privilege).
// Reset is deliberately unprivileged.
func (o Op) Mutates() bool {
	switch o {
	case OpSet, OpTell, OpExchange, OpShift:
		return true
	}
	return false
}

// Direction is the data direction of a command, seen from the caller.
type Direction uint8

const (
	DirNone  Direction = 0
	DirWrite Direction = 1 // caller -> store
	DirRead  Direction = 2 // store -> caller
)

// Direction returns the transfer direction implied by the shape.
func (o Op) Direction() Direction {
	switch o {
	case OpSet:
		return DirWrite
	case OpGet:
		return DirRead
	case OpExchange:
		return DirRead | DirWrite
	}
	return DirNone
}

// Field is the Params field a command addresses.
type Field uint8

const (
	FieldNone Field = iota
	FieldQuantum
	FieldQset
)

// String implements fmt.Stringer.
func (f Field) String() string {
	switch f {
	case FieldQuantum:
		return "QUANTUM"
	case FieldQset:
		return "QSET"
	}
	return ""
}

// Arg is the argument of a control command: a direct value or a pointer.
// A nil Ptr on an indirect shape is reported as ErrBadAddress.
type Arg struct {
	Value int
	Ptr   *int
}

// Command is a decoded, validated control command.
type Command struct {
	Op    Op
	Field Field
	Arg
}

// Name returns the table name of the command, e.g. "X-QUANTUM".
func (c Command) Name() string {
	if c.Op == OpReset {
		return "RESET"
	}
	return c.Op.String() + "-" + c.Field.String()
}

// Privileged reports whether the command requires elevated credentials.
func (c Command) Privileged() bool {
	return c.Op.Mutates()
}

// Code returns the packed command code.
func (c Command) Code() Code {
	return encode(c.Op, c.Field)
}

// ============================================================================
// Packed command codes
// ============================================================================

// Code is a packed control command: dir:2 | size:14 | type:8 | nr:8.
type Code uint32

// Command code layout and number space.
const (
	Magic = 'k'
	MaxNR = 12

	nrBits   = 8
	typeBits = 8
	sizeBits = 14

	nrShift   = 0
	typeShift = nrShift + nrBits
	sizeShift = typeShift + typeBits
	dirShift  = sizeShift + sizeBits

	argSize = 4 // int-sized argument
)

// IOC packs a command code.
func IOC(dir Direction, typ, nr uint8, size uint16) Code {
	return Code(uint32(dir)<<dirShift |
		uint32(size&(1<<sizeBits-1))<<sizeShift |
		uint32(typ)<<typeShift |
		uint32(nr)<<nrShift)
}

// Dir returns the direction bits.
func (c Code) Dir() Direction { return Direction(uint32(c) >> dirShift & 0x3) }

// Type returns the magic byte.
func (c Code) Type() uint8 { return uint8(uint32(c) >> typeShift) }

// Nr returns the command number.
func (c Code) Nr() uint8 { return uint8(uint32(c) >> nrShift) }

// Size returns the argument size.
func (c Code) Size() uint16 { return uint16(uint32(c) >> sizeShift & (1<<sizeBits - 1)) }

// String implements fmt.Stringer.
func (c Code) String() string {
	if cmd, err := Decode(c, Arg{}); err == nil {
		return cmd.Name()
	}
	return fmt.Sprintf("0x%08x", uint32(c))
}

type entry struct {
	op    Op
	field Field
}

// table is indexed by command number.
var table = [MaxNR + 1]entry{
	0:  {OpReset, FieldNone},
	1:  {OpSet, FieldQuantum},
	2:  {OpSet, FieldQset},
	3:  {OpTell, FieldQuantum},
	4:  {OpTell, FieldQset},
	5:  {OpGet, FieldQuantum},
	6:  {OpGet, FieldQset},
	7:  {OpQuery, FieldQuantum},
	8:  {OpQuery, FieldQset},
	9:  {OpExchange, FieldQuantum},
	10: {OpExchange, FieldQset},
	11: {OpShift, FieldQuantum},
	12: {OpShift, FieldQset},
}

func encode(op Op, field Field) Code {
	for nr, e := range table {
		if e.op == op && e.field == field {
			var size uint16
			if op.Direction() != DirNone {
				size = argSize
			}
			return IOC(op.Direction(), Magic, uint8(nr), size)
		}
	}
	return 0
}

// Decode validates a packed code and binds arg to it.
// Wrong magic, a number above MaxNR, or direction/size bits that do not
// match the table all yield ErrInvalidCommand.
func Decode(code Code, arg Arg) (Command, error) {
	if code.Type() != Magic || code.Nr() > MaxNR {
		return Command{}, ErrInvalidCommand.WithDetails(fmt.Sprintf("0x%08x", uint32(code)))
	}
	e := table[code.Nr()]
	if encode(e.op, e.field) != code {
		return Command{}, ErrInvalidCommand.WithDetails(fmt.Sprintf("0x%08x", uint32(code)))
	}
	return Command{Op: e.op, Field: e.field, Arg: arg}, nil
}

// Codes returns every valid command code in number order.
func Codes() []Code {
	out := make([]Code, 0, len(table))
	for _, e := range table {
		out = append(out, encode(e.op, e.field))
	}
	return out
}

// LookupCode resolves a command name ("X-QUANTUM", "xquantum", "reset")
// or a numeric code ("0xc0046b09") to its Code.
func LookupCode(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 0, 32); err == nil {
		return Code(n), nil
	}
	name := strings.ToUpper(strings.NewReplacer("-", "", "_", "").Replace(s))
	for _, e := range table {
		cmd := Command{Op: e.op, Field: e.field}
		if strings.ReplaceAll(cmd.Name(), "-", "") == name {
			return cmd.Code(), nil
		}
	}
	return 0, ErrInvalidCommand.WithDetails(s)
}

// BindArg builds the argument for code from an optional caller value v.
// Shapes that only return data through the address always get one. Shapes
// that read through it get one holding v only when v is present, so a
// missing value reaches the controller as a null address. out is the
// value left at the address after the call, or v when there is none.
func BindArg(code Code, v int, present bool) (arg Arg, out *int) {
	out = new(int)
	if present {
		arg.Value = v
		*out = v
	}
	switch dir := code.Dir(); {
	case dir == DirRead:
		arg.Ptr = out
	case dir&DirWrite != 0 && present:
		arg.Ptr = out
	}
	return arg, out
}
