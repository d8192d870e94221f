package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type trackedComponent struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
}

func (c *trackedComponent) Start(context.Context) error {
	*c.log = append(*c.log, "start:"+c.name)
	return c.startErr
}

func (c *trackedComponent) Stop(context.Context) error {
	*c.log = append(*c.log, "stop:"+c.name)
	return c.stopErr
}

func TestRuntimeStartStopOrder(t *testing.T) {
	t.Parallel()

	var log []string
	runtime := NewRuntime().
		Register("a", &trackedComponent{name: "a", log: &log}).
		Register("b", &trackedComponent{name: "b", log: &log})
	runtime.Register("c", &trackedComponent{name: "c", log: &log})

	ctx := context.Background()
	if err := runtime.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := runtime.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestRuntimeStartFailureRollsBack(t *testing.T) {
	t.Parallel()

	var log []string
	boom := errors.New("boom")
	runtime := NewRuntime().
		Register("a", &trackedComponent{name: "a", log: &log}).
		Register("b", &trackedComponent{name: "b", startErr: boom, log: &log}).
		Register("c", &trackedComponent{name: "c", log: &log})

	err := runtime.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "start b") {
		t.Fatalf("err = %v, want the failed component named", err)
	}

	want := []string{"start:a", "start:b", "stop:a"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestRuntimeStopCollectsErrors(t *testing.T) {
	t.Parallel()

	var log []string
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	runtime := NewRuntime().
		Register("a", &trackedComponent{name: "a", stopErr: errA, log: &log}).
		Register("b", &trackedComponent{name: "b", stopErr: errB, log: &log})

	ctx := context.Background()
	if err := runtime.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := runtime.Stop(ctx)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("err = %v, want both stop errors", err)
	}
	if !strings.Contains(err.Error(), "stop a") || !strings.Contains(err.Error(), "stop b") {
		t.Fatalf("err = %v, want both components named", err)
	}
}

func TestRuntimeIgnoresNilComponents(t *testing.T) {
	t.Parallel()

	var log []string
	runtime := NewRuntime().Register("nothing", nil)
	runtime.Register("a", &trackedComponent{name: "a", log: &log})

	ctx := context.Background()
	if err := runtime.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := runtime.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("log = %v, want one start and one stop", log)
	}
}
