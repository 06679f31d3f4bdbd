package benchmark

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
)

// BenchmarkDeviceWrite measures sequential writes that wrap at capacity.
func BenchmarkDeviceWrite(b *testing.B) {
	ctx := context.Background()
	for _, g := range Geometries {
		for _, size := range PayloadSizes {
			b.Run(fmt.Sprintf("%s/%dB", g.Name, size), func(b *testing.B) {
				dev, err := newRegistry(b, 1, g.Quantum, g.Qset).Device(0)
				if err != nil {
					b.Fatal(err)
				}
				p := payload(size)
				capacity := int64(g.Quantum) * int64(g.Qset)

				b.SetBytes(int64(size))
				b.ReportAllocs()
				b.ResetTimer()

				var off int64
				for i := 0; i < b.N; i++ {
					n, err := dev.Write(ctx, off, p)
					if err != nil {
						b.Fatalf("Write() error = %v", err)
					}
					if off += int64(n); off >= capacity {
						off = 0
					}
				}
				b.StopTimer()
				reportMemory(b)
			})
		}
	}
}

// BenchmarkDeviceRead measures reads over a fully written device.
func BenchmarkDeviceRead(b *testing.B) {
	ctx := context.Background()
	for _, g := range Geometries {
		b.Run(g.Name, func(b *testing.B) {
			dev, err := newRegistry(b, 1, g.Quantum, g.Qset).Device(0)
			if err != nil {
				b.Fatal(err)
			}
			capacity := int64(g.Quantum) * int64(g.Qset)
			p := payload(g.Quantum)
			for off := int64(0); off < capacity; off += int64(g.Quantum) {
				if _, err := dev.Write(ctx, off, p); err != nil {
					b.Fatalf("Write() error = %v", err)
				}
			}

			b.SetBytes(int64(g.Quantum))
			b.ReportAllocs()
			b.ResetTimer()

			var off int64
			for i := 0; i < b.N; i++ {
				data, err := dev.Read(ctx, off, g.Quantum)
				if err != nil {
					b.Fatalf("Read() error = %v", err)
				}
				if off += int64(len(data)); off >= capacity {
					off = 0
				}
			}
		})
	}
}

// BenchmarkDeviceParallel spreads writers over several devices; each
// device serialises its own callers.
func BenchmarkDeviceParallel(b *testing.B) {
	ctx := context.Background()
	for _, devs := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("devs=%d", devs), func(b *testing.B) {
			r := newRegistry(b, devs, 4000, 64)
			p := payload(1024)

			b.SetBytes(int64(len(p)))
			b.ReportAllocs()
			b.ResetTimer()

			var next atomic.Int64
			b.RunParallel(func(pb *testing.PB) {
				dev, err := r.Device(int(next.Add(1)-1) % devs)
				if err != nil {
					b.Error(err)
					return
				}
				var off int64
				for pb.Next() {
					n, err := dev.Write(ctx, off, p)
					if err != nil {
						b.Error(err)
						return
					}
					if off += int64(n); off >= 4000*64 {
						off = 0
					}
				}
			})
		})
	}
}

// BenchmarkDeviceTrim measures freeing a fully populated device.
func BenchmarkDeviceTrim(b *testing.B) {
	ctx := context.Background()
	dev, err := newRegistry(b, 1, 4000, 256).Device(0)
	if err != nil {
		b.Fatal(err)
	}
	p := payload(4000)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for off := int64(0); off < 4000*256; off += 4000 {
			if _, err := dev.Write(ctx, off, p); err != nil {
				b.Fatalf("Write() error = %v", err)
			}
		}
		b.StartTimer()

		if err := dev.Trim(ctx); err != nil {
			b.Fatalf("Trim() error = %v", err)
		}
	}
}
