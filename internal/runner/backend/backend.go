// Package backend abstracts the cluster-like resource manager that stages
// input bundles and runs one-shot, isolated test jobs.
package backend

import (
	"context"
	"time"
)

// TerminalState is the final outcome of an execution unit.
type TerminalState string

const (
	StateSucceeded TerminalState = "succeeded"
	StateFailed    TerminalState = "failed"
	// StateTimedOut is synthesized by AwaitTerminal when the deadline elapses
	// before the backend reports a terminal state.
	StateTimedOut TerminalState = "timed_out"
)

// TimeoutMessage is the fixed diagnostic returned with StateTimedOut.
const TimeoutMessage = "Timeout waiting for job completion"

// Status reports whether the backend is reachable.
type Status string

const (
	StatusLiveConnected Status = "live-connected"
	StatusSimulated     Status = "simulated"
	StatusUnreachable   Status = "unreachable"
)

// BundleHandle names a staged bundle of input files.
type BundleHandle struct {
	Name string
}

// UnitHandle names a launched execution unit.
type UnitHandle struct {
	Name string
}

// LaunchSpec describes one execution unit to launch. The unit is bound to a
// staged bundle, runs once with no automatic retry, and is killed by the
// backend when Deadline elapses.
type LaunchSpec struct {
	Image     string
	Command   []string
	Bundle    BundleHandle
	MountPath string
	Deadline  time.Duration
}

// Backend is the capability contract both the live and the simulated
// implementations satisfy. The orchestrator cannot tell them apart.
type Backend interface {
	// StageBundle creates a named bundle holding the given files.
	// files must be non-empty.
	StageBundle(ctx context.Context, name string, files map[string]string) (BundleHandle, error)

	// Launch starts a one-shot execution unit bound to the spec's bundle.
	Launch(ctx context.Context, name string, spec LaunchSpec) (UnitHandle, error)

	// AwaitTerminal polls the unit at pollInterval until a terminal state is
	// observed or deadline elapses. Deadline elapse yields StateTimedOut with
	// TimeoutMessage as output, never an error. The returned error is reserved
	// for status reads the backend itself could not serve.
	AwaitTerminal(ctx context.Context, unit UnitHandle, deadline, pollInterval time.Duration) (TerminalState, string, error)

	// FetchOutput returns the unit's captured output, or an explanatory
	// placeholder when none is retrievable. It never fails the run.
	FetchOutput(ctx context.Context, unit UnitHandle) string

	// Reclaim removes a staged bundle. Best effort: failures are logged,
	// never propagated.
	Reclaim(ctx context.Context, bundle BundleHandle)

	// Status reports backend reachability for health checks.
	Status(ctx context.Context) Status
}
