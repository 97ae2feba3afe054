package backend_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"exrun/internal/runner/backend"
)

func TestSimulatedBackendFullCallSequence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sim := backend.NewSimulatedBackend(10 * time.Millisecond)

	bundle, err := sim.StageBundle(ctx, "python-test-ab12cd34", map[string]string{"solution.py": "print(1)"})
	if err != nil {
		t.Fatalf("stage bundle failed: %v", err)
	}
	unit, err := sim.Launch(ctx, "python-test-ab12cd34", backend.LaunchSpec{
		Image:    "exercism/python-test-runner:latest",
		Command:  []string{"sh", "-c", "true"},
		Bundle:   bundle,
		Deadline: time.Minute,
	})
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	state, output, err := sim.AwaitTerminal(ctx, unit, time.Minute, time.Millisecond)
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if state != backend.StateSucceeded {
		t.Fatalf("unexpected state: %s", state)
	}
	if !strings.Contains(output, "test_hello_world") {
		t.Fatalf("unexpected canned output: %s", output)
	}

	// Cleanup must be callable without error side effects.
	sim.Reclaim(ctx, bundle)

	if got := sim.Status(ctx); got != backend.StatusSimulated {
		t.Fatalf("unexpected status: %s", got)
	}
}

func TestSimulatedBackendGenericLanguageOutput(t *testing.T) {
	t.Parallel()
	sim := backend.NewSimulatedBackend(time.Millisecond)
	state, output, err := sim.AwaitTerminal(context.Background(), backend.UnitHandle{Name: "rust-test-ff00aa11"}, time.Second, time.Millisecond)
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if state != backend.StateSucceeded {
		t.Fatalf("unexpected state: %s", state)
	}
	if !strings.Contains(output, "All tests passed") {
		t.Fatalf("unexpected output: %s", output)
	}
}

func TestSimulatedBackendRejectsEmptyBundle(t *testing.T) {
	t.Parallel()
	sim := backend.NewSimulatedBackend(time.Millisecond)
	if _, err := sim.StageBundle(context.Background(), "python-test-x", nil); err == nil {
		t.Fatalf("expected error for empty bundle")
	}
}
