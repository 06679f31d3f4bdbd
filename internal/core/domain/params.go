package domain

import (
	"fmt"
	"sync/atomic"
)

// Compiled-in sizing defaults.
const (
	DefaultQuantum = 4000
	DefaultQset    = 1000
)

// Upper bounds accepted for new sizing values.
const (
	MaxQuantum = 1 << 30
	MaxQset    = 1 << 20
)

// ValidateValue checks a proposed value for f.
func ValidateValue(f Field, v int) error {
	max := MaxQuantum
	if f == FieldQset {
		max = MaxQset
	}
	if v <= 0 || v > max {
		return ErrInvalidArgument.WithDetails(fmt.Sprintf("%s must be in [1, %d], got %d", f, max, v))
	}
	return nil
}

// Params holds the process-wide sizing defaults that new and trimmed
// stores snapshot. Each field is an independent atomic word: Snapshot
// reads them one after the other, so a concurrent writer can be observed
// half-applied. The store never reads Params while holding it.
type Params struct {
	quantum atomic.Int64
	qset    atomic.Int64

	defQuantum int64
	defQset    int64
}

// NewParams creates Params whose compiled defaults (and initial values)
// are quantum and qset.
func NewParams(quantum, qset int) *Params {
	p := &Params{
		defQuantum: int64(quantum),
		defQset:    int64(qset),
	}
	p.Reset()
	return p
}

// DefaultParams returns Params initialized to DefaultQuantum/DefaultQset.
func DefaultParams() *Params {
	return NewParams(DefaultQuantum, DefaultQset)
}

// Reset restores both fields to their compiled defaults.
func (p *Params) Reset() {
	p.quantum.Store(p.defQuantum)
	p.qset.Store(p.defQset)
}

// Quantum returns the current segment size.
func (p *Params) Quantum() int {
	return int(p.quantum.Load())
}

// Qset returns the current segment count.
func (p *Params) Qset() int {
	return int(p.qset.Load())
}

// SetQuantum replaces the segment size and returns the previous value.
func (p *Params) SetQuantum(v int) int {
	return int(p.quantum.Swap(int64(v)))
}

// SetQset replaces the segment count and returns the previous value.
func (p *Params) SetQset(v int) int {
	return int(p.qset.Swap(int64(v)))
}

// Get returns the current value of f.
func (p *Params) Get(f Field) int {
	if f == FieldQset {
		return p.Qset()
	}
	return p.Quantum()
}

// Swap stores v into f and returns the previous value.
func (p *Params) Swap(f Field, v int) int {
	if f == FieldQset {
		return p.SetQset(v)
	}
	return p.SetQuantum(v)
}

// Snapshot returns (quantum, qset) read one field at a time.
func (p *Params) Snapshot() (quantum, qset int) {
	return p.Quantum(), p.Qset()
}

// Defaults returns the compiled defaults.
func (p *Params) Defaults() (quantum, qset int) {
	return int(p.defQuantum), int(p.defQset)
}

// String implements fmt.Stringer.
func (p *Params) String() string {
	q, s := p.Snapshot()
	return fmt.Sprintf("quantum=%d qset=%d", q, s)
}
