package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/ludotime/go/internal/engine"
)

func fastRetry(n uint) RetryPolicy {
	return RetryPolicy{MaxAttempts: n, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func TestRunRetriesConflicts(t *testing.T) {
	calls := 0
	v, err := run(context.Background(), fastRetry(5), "test", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, ErrTransactionConflict
		}
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("run = %d, %v", v, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRunGivesUp(t *testing.T) {
	calls := 0
	_, err := run(context.Background(), fastRetry(3), "test", func() (int, error) {
		calls++
		return 0, ErrTransactionConflict
	})
	if !errors.Is(err, ErrTransactionConflict) {
		t.Errorf("err = %v, want conflict", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRunDoesNotRetryOtherErrors(t *testing.T) {
	tests := []struct {
		name   string
		policy RetryPolicy
	}{
		{"retrying policy", fastRetry(5)},
		{"no retry", NoRetry()},
		{"zero value", RetryPolicy{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := run(context.Background(), tt.policy, "test", func() (int, error) {
				calls++
				return 0, engine.ErrIllegalMove
			})
			if !errors.Is(err, engine.ErrIllegalMove) {
				t.Errorf("err = %v", err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestNoRetrySurfacesConflict(t *testing.T) {
	calls := 0
	_, err := run(context.Background(), NoRetry(), "test", func() (int, error) {
		calls++
		return 0, ErrTransactionConflict
	})
	if !errors.Is(err, ErrTransactionConflict) || calls != 1 {
		t.Errorf("run = %v after %d calls", err, calls)
	}
}
