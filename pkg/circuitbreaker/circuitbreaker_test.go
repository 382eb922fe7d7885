package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing() (interface{}, error) { return nil, errBoom }
func succeeding() (interface{}, error) { return "ok", nil }

func TestTripsAfterFailureThreshold(t *testing.T) {
	cb := New(3, 1, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want boom", i, err)
		}
	}
	if cb.State() != Open {
		t.Fatalf("state = %s, want Open", cb.State())
	}
	if _, err := cb.Execute(succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestRecoversThroughHalfOpen(t *testing.T) {
	cb := New(1, 2, 10*time.Millisecond)

	if _, err := cb.Execute(failing); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if cb.State() != Open {
		t.Fatalf("state = %s, want Open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	// Two successes in half-open close the circuit again.
	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(succeeding); err != nil {
			t.Fatalf("half-open call %d: %v", i, err)
		}
	}
	if cb.State() != Closed {
		t.Fatalf("state = %s, want Closed", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(1, 2, 10*time.Millisecond)

	if _, err := cb.Execute(failing); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := cb.Execute(failing); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if cb.State() != Open {
		t.Fatalf("state = %s, want Open", cb.State())
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(2, 1, time.Minute)

	if _, err := cb.Execute(failing); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := cb.Execute(succeeding); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if _, err := cb.Execute(failing); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if cb.State() != Closed {
		t.Fatalf("state = %s, want Closed after interleaved success", cb.State())
	}
}
