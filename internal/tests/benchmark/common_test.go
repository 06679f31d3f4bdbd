package benchmark

import (
	"io"
	"log/slog"
	"runtime"
	"testing"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/core/service"
	"github.com/yndnr/vault-go/internal/storage/memory"
)

// Geometries covers small, default and large segment sizes.
var Geometries = []struct {
	Name    string
	Quantum int
	Qset    int
}{
	{"q512", 512, 64},
	{"q4000", domain.DefaultQuantum, domain.DefaultQset},
	{"q64k", 64 * 1024, 256},
}

// PayloadSizes are the write sizes exercised per call.
var PayloadSizes = []int{64, 1024, 4000, 16 * 1024}

func newRegistry(b *testing.B, n, quantum, qset int) *service.Registry {
	b.Helper()
	r, err := service.NewRegistry(n, domain.NewParams(quantum, qset),
		service.WithMemoryBudget(memory.NewBudget(0)),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		b.Fatalf("NewRegistry() error = %v", err)
	}
	b.Cleanup(func() { _ = r.Close() })
	return r
}

func payload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte('a' + i%26)
	}
	return p
}

// reportMemory reports heap usage after a forced GC.
func reportMemory(b *testing.B) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.HeapAlloc)/1024/1024, "heap-MB")
}
