package circuitbreaker

import (
	"context"
	"errors"
	"testing"
)

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := New("test-open")
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: error = %v, want boom", i, err)
		}
	}

	if !cb.IsOpen() {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("function ran while the breaker was open")
	}

	fallback := cb.ExecuteWithFallback(ctx, func() error { return nil }, func() error { return nil })
	if fallback != nil {
		t.Errorf("fallback error = %v, want nil", fallback)
	}
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := New("test-cancel")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, func() error { return context.Canceled })
	}
	if cb.IsOpen() {
		t.Error("cancelled calls tripped the breaker")
	}
}

func TestCircuitBreakerRejectsDoneContext(t *testing.T) {
	cb := New("test-done")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("function ran with a cancelled context")
	}
	if cb.Name() != "test-done" {
		t.Errorf("Name() = %q", cb.Name())
	}
}
