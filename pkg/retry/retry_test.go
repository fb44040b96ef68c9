package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0,
	}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("Do() made %d calls, want 3", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	wantErr := errors.New("persistent")
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}
	// MaxRetries=3 means 1 initial attempt + 3 retries.
	if calls != 4 {
		t.Errorf("Do() made %d calls, want 4", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastConfig()
	cfg.InitialDelay = time.Hour

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func() error {
			calls++
			return errors.New("always fails")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do() did not return after context cancellation")
	}

	if calls != 1 {
		t.Errorf("Do() made %d calls before cancellation, want 1", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("DoWithResult() error = %v, want nil", err)
	}
	if got != 42 {
		t.Errorf("DoWithResult() = %d, want 42", got)
	}
}

func TestDoNilConfigUsesDefaults(t *testing.T) {
	err := Do(context.Background(), nil, func() error { return nil })
	if err != nil {
		t.Errorf("Do() with nil config error = %v, want nil", err)
	}
}

func TestApplyJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		got := applyJitter(base, 0.1)
		if got < 90*time.Millisecond || got > 110*time.Millisecond {
			t.Fatalf("applyJitter() = %v, outside +/-10%% of %v", got, base)
		}
	}
	if got := applyJitter(base, 0); got != base {
		t.Errorf("applyJitter() with zero factor = %v, want %v", got, base)
	}
}
