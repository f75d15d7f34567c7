package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestService() *Service {
	return &Service{
		logger:          zerolog.Nop(),
		healthy:         true,
		maxFailures:     3,
		recoveryBackoff: 5 * time.Second,
	}
}

func TestCircuitOpensAfterMaxFailures(t *testing.T) {
	s := newTestService()
	err := errors.New("connection refused")

	s.recordFailure(err)
	s.recordFailure(err)
	if !s.Healthy() {
		t.Fatal("circuit opened before reaching max failures")
	}

	s.recordFailure(err)
	if s.Healthy() {
		t.Fatal("circuit still closed after max failures")
	}
	if s.available() {
		t.Error("open circuit admitted a call inside the backoff window")
	}
}

func TestCircuitProbesAfterBackoff(t *testing.T) {
	s := newTestService()
	s.healthy = false
	s.lastCheck = time.Now().Add(-10 * time.Second)

	if !s.available() {
		t.Fatal("open circuit refused the probe after the backoff window")
	}
	// The probe consumed the window; the next call inside it is refused.
	if s.available() {
		t.Error("second call admitted inside the same backoff window")
	}
}

func TestSuccessClosesCircuit(t *testing.T) {
	s := newTestService()
	s.healthy = false
	s.failureCount = 5

	s.recordSuccess()
	if !s.Healthy() {
		t.Fatal("success did not close the circuit")
	}
	if s.failureCount != 0 {
		t.Errorf("failure count = %d after success, want 0", s.failureCount)
	}
}
