package memory

import (
	"fmt"
	"sync/atomic"

	"github.com/yndnr/vault-go/internal/core/domain"
)

// Budget caps the bytes that all stores sharing it may hold.
// A zero limit means unlimited.
type Budget struct {
	limit int64
	used  atomic.Int64
}

// NewBudget creates a Budget with the given limit in bytes.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// Reserve claims n bytes or fails with domain.ErrOutOfMemory.
func (b *Budget) Reserve(n int64) error {
	if b == nil {
		return nil
	}
	for {
		used := b.used.Load()
		if b.limit > 0 && used+n > b.limit {
			return domain.ErrOutOfMemory.WithDetails(
				fmt.Sprintf("need %d bytes, %d of %d in use", n, used, b.limit))
		}
		if b.used.CompareAndSwap(used, used+n) {
			return nil
		}
	}
}

// Release returns n bytes to the budget.
func (b *Budget) Release(n int64) {
	if b == nil {
		return
	}
	b.used.Add(-n)
}

// Used returns the bytes currently reserved.
func (b *Budget) Used() int64 {
	if b == nil {
		return 0
	}
	return b.used.Load()
}

// Limit returns the configured limit (0 = unlimited).
func (b *Budget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.limit
}
