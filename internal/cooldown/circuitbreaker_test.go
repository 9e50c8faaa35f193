package cooldown

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerClosedAllowsCalls(t *testing.T) {
	cb := newCircuitBreaker(3, time.Minute)
	called := false
	err := cb.execute(func() error { called = true; return nil })
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if !called {
		t.Fatalf("expected fn to be called while closed")
	}
}

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := newCircuitBreaker(2, time.Minute)
	failing := errors.New("boom")

	cb.execute(func() error { return failing })
	cb.execute(func() error { return failing })

	calls := 0
	err := cb.execute(func() error { calls++; return nil })
	if err != errCircuitOpen {
		t.Fatalf("execute() error = %v, want errCircuitOpen", err)
	}
	if calls != 0 {
		t.Fatalf("fn should not be called while circuit is open")
	}
}

func TestCircuitBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	cb := newCircuitBreaker(1, 1*time.Millisecond)
	failing := errors.New("boom")

	cb.execute(func() error { return failing })
	time.Sleep(5 * time.Millisecond)

	called := false
	err := cb.execute(func() error { called = true; return nil })
	if err != nil {
		t.Fatalf("execute() error = %v, want nil (half-open probe should succeed)", err)
	}
	if !called {
		t.Fatalf("expected probe call after reset timeout")
	}
}

func TestCircuitBreakerClosesAfterSuccessfulProbe(t *testing.T) {
	cb := newCircuitBreaker(1, 1*time.Millisecond)
	failing := errors.New("boom")

	cb.execute(func() error { return failing })
	time.Sleep(5 * time.Millisecond)
	cb.execute(func() error { return nil })

	calls := 0
	err := cb.execute(func() error { calls++; return nil })
	if err != nil {
		t.Fatalf("execute() error = %v, want nil once closed again", err)
	}
	if calls != 1 {
		t.Fatalf("expected fn called once circuit is closed again")
	}
}
