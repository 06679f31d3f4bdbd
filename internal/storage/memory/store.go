// Package memory provides the sparse in-memory byte store behind each
// vault device.
package memory

import (
	"github.com/yndnr/vault-go/internal/core/domain"
)

// slotBytes is the accounted cost of one segment slot in the slot vector.
const slotBytes = 8

// Store is a sparse, lazily allocated segment array.
type Store struct {
	// Slot vector: nil until the first write; then qset entries,
	// each nil (absent) or a quantum-sized buffer.
	segments [][]byte

	quantum int
	qset    int

	// Number of present segments.
	allocated int

	budget *Budget
}

// Option configures the Store.
type Option func(*Store)

// WithBudget charges the store's allocations against b.
func WithBudget(b *Budget) Option {
	return func(s *Store) {
		s.budget = b
	}
}

// New creates an empty store with the given geometry.
func New(quantum, qset int, opts ...Option) *Store {
	s := &Store{
		quantum: quantum,
		qset:    qset,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Quantum returns the store's segment size.
func (s *Store) Quantum() int {
	return s.quantum
}

// Qset returns the store's segment count.
func (s *Store) Qset() int {
	return s.qset
}

// Capacity returns the logical size of the address space (quantum*qset).
func (s *Store) Capacity() int64 {
	if s.quantum <= 0 || s.qset <= 0 {
		return 0
	}
	return int64(s.quantum) * int64(s.qset)
}

// Allocated returns the number of present segments.
func (s *Store) Allocated() int {
	return s.allocated
}

// Resident returns the bytes held by present segments and the slot vector.
func (s *Store) Resident() int64 {
	n := int64(s.allocated) * int64(s.quantum)
	if s.segments != nil {
		n += int64(s.qset) * slotBytes
	}
	return n
}

// locate splits an offset into a segment index and an offset within it.
func (s *Store) locate(off int64) (int, int) {
	q := int64(s.quantum)
	return int(off / q), int(off % q)
}

// Read returns a copy of up to n bytes at off, stopping at the end of the
// segment that contains off. It returns nil when the segment is absent or
// off lies outside the store.
func (s *Store) Read(off int64, n int) []byte {
	if n <= 0 || off < 0 || off >= s.Capacity() || s.segments == nil {
		return nil
	}

	idx, pos := s.locate(off)
	seg := s.segments[idx]
	if seg == nil {
		return nil
	}

	// Read only up to the end of this segment.
	if n > s.quantum-pos {
		n = s.quantum - pos
	}

	out := make([]byte, n)
	copy(out, seg[pos:pos+n])
	return out
}

// Write copies as much of p as fits in the segment containing off and
// returns the number of bytes written. Offsets at or beyond capacity
// write nothing. Allocation failure returns domain.ErrOutOfMemory.
func (s *Store) Write(off int64, p []byte) (int, error) {
	if off < 0 {
		return 0, domain.ErrInvalidArgument.WithDetails("negative offset")
	}
	if off >= s.Capacity() || len(p) == 0 {
		return 0, nil
	}

	idx, pos := s.locate(off)

	if s.segments == nil {
		if err := s.budget.Reserve(int64(s.qset) * slotBytes); err != nil {
			return 0, err
		}
		s.segments = make([][]byte, s.qset)
	}

	if s.segments[idx] == nil {
		if err := s.budget.Reserve(int64(s.quantum)); err != nil {
			return 0, err
		}
		s.segments[idx] = make([]byte, s.quantum)
		s.allocated++
	}

	// Write only up to the end of this segment.
	n := len(p)
	if n > s.quantum-pos {
		n = s.quantum - pos
	}

	copy(s.segments[idx][pos:], p[:n])
	return n, nil
}

// Trim frees every segment and the slot vector, then adopts the given
// geometry. It never fails.
func (s *Store) Trim(quantum, qset int) {
	s.budget.Release(s.Resident())

	s.segments = nil
	s.allocated = 0
	s.quantum = quantum
	s.qset = qset
}

// Segments reports which segment slots are present, in index order.
// It returns nil when the slot vector has not been allocated.
func (s *Store) Segments() []int {
	if s.segments == nil {
		return nil
	}
	out := make([]int, 0, s.allocated)
	for i, seg := range s.segments {
		if seg != nil {
			out = append(out, i)
		}
	}
	return out
}
