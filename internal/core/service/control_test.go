package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/vault-go/internal/core/domain"
)

func privileged() context.Context {
	return domain.WithCredentials(context.Background(), domain.Credentials{Privileged: true, Peer: "test"})
}

func newTestController(quantum, qset int) (*Controller, *countingObserver) {
	obs := &countingObserver{}
	return NewController(domain.NewParams(quantum, qset), obs, discardLogger()), obs
}

func mustLookup(t *testing.T, name string) domain.Code {
	t.Helper()
	code, err := domain.LookupCode(name)
	if err != nil {
		t.Fatalf("LookupCode(%q) error = %v", name, err)
	}
	return code
}

func TestController_SetThenQuery(t *testing.T) {
	for _, field := range []string{"QUANTUM", "QSET"} {
		t.Run(field, func(t *testing.T) {
			c, _ := newTestController(4000, 1000)
			ctx := privileged()

			v := 123
			if _, err := c.Dispatch(ctx, mustLookup(t, "S-"+field), domain.Arg{Ptr: &v}); err != nil {
				t.Fatalf("Set error = %v", err)
			}
			got, err := c.Dispatch(ctx, mustLookup(t, "Q-"+field), domain.Arg{})
			if err != nil || got != 123 {
				t.Errorf("Query = %d, %v; want 123", got, err)
			}

			if _, err := c.Dispatch(ctx, mustLookup(t, "T-"+field), domain.Arg{Value: 77}); err != nil {
				t.Fatalf("Tell error = %v", err)
			}
			var out int
			if _, err := c.Dispatch(context.Background(), mustLookup(t, "G-"+field), domain.Arg{Ptr: &out}); err != nil {
				t.Fatalf("Get error = %v", err)
			}
			if out != 77 {
				t.Errorf("Get wrote %d, want 77", out)
			}
		})
	}
}

func TestController_UnprivilegedDenied(t *testing.T) {
	tests := []struct {
		name string
		arg  domain.Arg
	}{
		{"S-QUANTUM", domain.Arg{Ptr: new(int)}},
		{"T-QUANTUM", domain.Arg{Value: 10}},
		{"X-QUANTUM", domain.Arg{Ptr: new(int)}},
		{"H-QUANTUM", domain.Arg{Value: 10}},
		{"S-QSET", domain.Arg{Ptr: new(int)}},
		{"T-QSET", domain.Arg{Value: 10}},
		{"X-QSET", domain.Arg{Ptr: new(int)}},
		{"H-QSET", domain.Arg{Value: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, obs := newTestController(4000, 1000)
			if tt.arg.Ptr != nil {
				*tt.arg.Ptr = 10
			}

			_, err := c.Dispatch(context.Background(), mustLookup(t, tt.name), tt.arg)
			if !errors.Is(err, domain.ErrPermissionDenied) {
				t.Fatalf("error = %v, want ErrPermissionDenied", err)
			}
			if q, s := c.Params().Snapshot(); q != 4000 || s != 1000 {
				t.Errorf("params changed to %d/%d", q, s)
			}
			if obs.denied.Load() != 1 {
				t.Errorf("denied observations = %d", obs.denied.Load())
			}
		})
	}
}

func TestController_UnprivilegedReads(t *testing.T) {
	c, _ := newTestController(4000, 1000)
	ctx := context.Background()

	if got, err := c.Dispatch(ctx, mustLookup(t, "Q-QSET"), domain.Arg{}); err != nil || got != 1000 {
		t.Errorf("Q-QSET = %d, %v", got, err)
	}
	var out int
	if _, err := c.Dispatch(ctx, mustLookup(t, "G-QUANTUM"), domain.Arg{Ptr: &out}); err != nil || out != 4000 {
		t.Errorf("G-QUANTUM wrote %d, %v", out, err)
	}
}

func TestController_Exchange(t *testing.T) {
	c, _ := newTestController(4000, 1000)
	ctx := privileged()

	v := 2048
	if _, err := c.Dispatch(ctx, mustLookup(t, "X-QUANTUM"), domain.Arg{Ptr: &v}); err != nil {
		t.Fatalf("X-QUANTUM error = %v", err)
	}
	if v != 4000 {
		t.Errorf("X-QUANTUM returned previous %d, want 4000", v)
	}
	if got, _ := c.Dispatch(ctx, mustLookup(t, "Q-QUANTUM"), domain.Arg{}); got != 2048 {
		t.Errorf("Q-QUANTUM = %d, want 2048", got)
	}
}

func TestController_Shift(t *testing.T) {
	c, _ := newTestController(4000, 1000)
	ctx := privileged()

	prev, err := c.Dispatch(ctx, mustLookup(t, "H-QSET"), domain.Arg{Value: 16})
	if err != nil || prev != 1000 {
		t.Fatalf("H-QSET = %d, %v; want 1000", prev, err)
	}
	if got := c.Params().Qset(); got != 16 {
		t.Errorf("Qset() = %d, want 16", got)
	}
}

func TestController_ResetUnprivileged(t *testing.T) {
	c, _ := newTestController(4000, 1000)
	c.Params().SetQuantum(1)
	c.Params().SetQset(2)

	if _, err := c.Dispatch(context.Background(), mustLookup(t, "RESET"), domain.Arg{}); err != nil {
		t.Fatalf("RESET error = %v", err)
	}
	if q, s := c.Params().Snapshot(); q != 4000 || s != 1000 {
		t.Errorf("after RESET = %d/%d", q, s)
	}
}

func TestController_BadAddress(t *testing.T) {
	c, _ := newTestController(4000, 1000)

	for _, name := range []string{"S-QUANTUM", "G-QSET", "X-QSET"} {
		// Checked before privilege, so an unprivileged caller sees it too.
		_, err := c.Dispatch(context.Background(), mustLookup(t, name), domain.Arg{})
		if !errors.Is(err, domain.ErrBadAddress) {
			t.Errorf("%s error = %v, want ErrBadAddress", name, err)
		}
	}
}

func TestController_InvalidCommand(t *testing.T) {
	c, obs := newTestController(4000, 1000)

	codes := []domain.Code{
		domain.IOC(domain.DirNone, 'x', 0, 0),
		domain.IOC(domain.DirNone, domain.Magic, domain.MaxNR+1, 0),
		domain.IOC(domain.DirWrite, domain.Magic, 7, 4),
	}
	for _, code := range codes {
		if _, err := c.Dispatch(privileged(), code, domain.Arg{}); !errors.Is(err, domain.ErrInvalidCommand) {
			t.Errorf("Dispatch(%s) error = %v, want ErrInvalidCommand", code, err)
		}
	}
	if obs.controls.Load() != int64(len(codes)) {
		t.Errorf("control observations = %d", obs.controls.Load())
	}
}

func TestController_InvalidValue(t *testing.T) {
	c, _ := newTestController(4000, 1000)
	ctx := privileged()

	tests := []struct {
		name string
		arg  domain.Arg
	}{
		{"T-QUANTUM", domain.Arg{Value: 0}},
		{"H-QSET", domain.Arg{Value: -5}},
		{"T-QSET", domain.Arg{Value: domain.MaxQset + 1}},
	}
	for _, tt := range tests {
		if _, err := c.Dispatch(ctx, mustLookup(t, tt.name), tt.arg); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("%s error = %v, want ErrInvalidArgument", tt.name, err)
		}
	}

	v := 0
	if _, err := c.Dispatch(ctx, mustLookup(t, "X-QUANTUM"), domain.Arg{Ptr: &v}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("X-QUANTUM(0) error = %v", err)
	}
	if v != 0 {
		t.Errorf("rejected exchange wrote %d", v)
	}
	if q, s := c.Params().Snapshot(); q != 4000 || s != 1000 {
		t.Errorf("params changed to %d/%d", q, s)
	}
}
