package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"exrun/internal/runner/backend"
	"exrun/internal/runner/model"
	"exrun/internal/runner/registry"
	"exrun/internal/runner/service"
	appErr "exrun/pkg/errors"
)

// fakeBackend records the call sequence and lets each step be forced to fail.
type fakeBackend struct {
	stageCalls   int
	launchCalls  int
	awaitCalls   int
	reclaimCalls int

	stageErr  error
	launchErr error
	awaitErr  error

	state  backend.TerminalState
	output string

	stagedFiles map[string]string
	launchSpec  backend.LaunchSpec
}

func (f *fakeBackend) StageBundle(ctx context.Context, name string, files map[string]string) (backend.BundleHandle, error) {
	f.stageCalls++
	if f.stageErr != nil {
		return backend.BundleHandle{}, f.stageErr
	}
	f.stagedFiles = files
	return backend.BundleHandle{Name: name}, nil
}

func (f *fakeBackend) Launch(ctx context.Context, name string, spec backend.LaunchSpec) (backend.UnitHandle, error) {
	f.launchCalls++
	if f.launchErr != nil {
		return backend.UnitHandle{}, f.launchErr
	}
	f.launchSpec = spec
	return backend.UnitHandle{Name: name}, nil
}

func (f *fakeBackend) AwaitTerminal(ctx context.Context, unit backend.UnitHandle, deadline, pollInterval time.Duration) (backend.TerminalState, string, error) {
	f.awaitCalls++
	if f.awaitErr != nil {
		return "", "", f.awaitErr
	}
	return f.state, f.output, nil
}

func (f *fakeBackend) FetchOutput(ctx context.Context, unit backend.UnitHandle) string {
	return f.output
}

func (f *fakeBackend) Reclaim(ctx context.Context, bundle backend.BundleHandle) {
	f.reclaimCalls++
}

func (f *fakeBackend) Status(ctx context.Context) backend.Status {
	return backend.StatusSimulated
}

func newTestService(t *testing.T, b backend.Backend) *service.Service {
	t.Helper()
	svc, err := service.NewService(service.Config{
		Registry:     registry.Default(),
		Backend:      b,
		JobDeadline:  time.Minute,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	return svc
}

func validRequest() model.RunRequest {
	return model.RunRequest{
		Language: "python",
		Code:     []byte("def hello():\n    return 'Hello, World!'\n"),
		TestConfig: map[string]interface{}{
			"version":    1,
			"test_files": []string{"hello_world_test.py"},
		},
	}
}

func TestRunOncePassVerdictThroughSimulatedBackend(t *testing.T) {
	t.Parallel()
	sim := backend.NewSimulatedBackend(10 * time.Millisecond)
	svc := newTestService(t, sim)

	verdict, err := svc.RunOnce(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if verdict.Status != model.StatusPass {
		t.Fatalf("unexpected status: %s", verdict.Status)
	}
	if len(verdict.Tests) != 1 || verdict.Tests[0].Name != "test_hello_world" {
		t.Fatalf("unexpected tests: %v", verdict.Tests)
	}
}

func TestRunOnceUnknownLanguageNeverTouchesBackend(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{}
	svc := newTestService(t, fake)

	req := validRequest()
	req.Language = "ruby"
	_, err := svc.RunOnce(context.Background(), req)
	if !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
	if fake.stageCalls != 0 || fake.launchCalls != 0 || fake.reclaimCalls != 0 {
		t.Fatalf("rejected request must not reach the backend: %+v", fake)
	}
}

func TestRunOnceInvalidConfigNeverTouchesBackend(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{}
	svc := newTestService(t, fake)

	req := validRequest()
	req.TestConfig = map[string]interface{}{"test_files": []string{"t.py"}}
	_, err := svc.RunOnce(context.Background(), req)
	if !appErr.Is(err, appErr.InvalidTestConfig) {
		t.Fatalf("expected InvalidTestConfig, got %v", err)
	}
	if fake.stageCalls != 0 || fake.launchCalls != 0 || fake.reclaimCalls != 0 {
		t.Fatalf("rejected request must not reach the backend: %+v", fake)
	}
}

func TestRunOnceStagesSolutionAndConfig(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{state: backend.StateSucceeded, output: `{"status": "pass"}`}
	svc := newTestService(t, fake)

	if _, err := svc.RunOnce(context.Background(), validRequest()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, ok := fake.stagedFiles["solution.py"]; !ok {
		t.Fatalf("solution file not staged: %v", fake.stagedFiles)
	}
	if !strings.Contains(fake.stagedFiles["test_config.json"], `"version":1`) {
		t.Fatalf("config file not staged: %v", fake.stagedFiles)
	}
	if len(fake.launchSpec.Command) != 3 || fake.launchSpec.Command[0] != "sh" {
		t.Fatalf("unexpected command: %v", fake.launchSpec.Command)
	}
	if !strings.Contains(fake.launchSpec.Command[2], "solution.py") {
		t.Fatalf("command must reference the staged solution: %v", fake.launchSpec.Command)
	}
	if fake.launchSpec.MountPath != "/mnt/exercise" {
		t.Fatalf("unexpected mount path: %s", fake.launchSpec.MountPath)
	}
}

func TestRunOnceFailedExecutionIsFailVerdict(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{state: backend.StateFailed, output: "boom"}
	svc := newTestService(t, fake)

	verdict, err := svc.RunOnce(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("backend failure must not surface as transport error: %v", err)
	}
	if verdict.Status != model.StatusFail {
		t.Fatalf("unexpected status: %s", verdict.Status)
	}
	if verdict.Message != "Test execution failed" {
		t.Fatalf("unexpected message: %s", verdict.Message)
	}
	if verdict.RawOutput != "boom" {
		t.Fatalf("raw output must be preserved: %q", verdict.RawOutput)
	}
	if fake.reclaimCalls != 1 {
		t.Fatalf("bundle must be reclaimed exactly once, got %d", fake.reclaimCalls)
	}
}

func TestRunOnceTimedOutIsFailVerdict(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{state: backend.StateTimedOut, output: backend.TimeoutMessage}
	svc := newTestService(t, fake)

	verdict, err := svc.RunOnce(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("timeout must not surface as transport error: %v", err)
	}
	if verdict.Status != model.StatusFail {
		t.Fatalf("unexpected status: %s", verdict.Status)
	}
	if !strings.Contains(verdict.Message, "Timeout") {
		t.Fatalf("unexpected message: %s", verdict.Message)
	}
	if fake.reclaimCalls != 1 {
		t.Fatalf("bundle must be reclaimed exactly once, got %d", fake.reclaimCalls)
	}
}

func TestRunOnceStageFailureSkipsReclaim(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{stageErr: appErr.New(appErr.BackendUnavailable)}
	svc := newTestService(t, fake)

	verdict, err := svc.RunOnce(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("stage failure must be absorbed into the verdict: %v", err)
	}
	if verdict.Status != model.StatusError {
		t.Fatalf("unexpected status: %s", verdict.Status)
	}
	if fake.reclaimCalls != 0 {
		t.Fatalf("nothing was staged, nothing to reclaim: %d", fake.reclaimCalls)
	}
}

func TestRunOnceLaunchFailureStillReclaims(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{launchErr: appErr.New(appErr.LaunchRejected)}
	svc := newTestService(t, fake)

	verdict, err := svc.RunOnce(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("launch failure must be absorbed into the verdict: %v", err)
	}
	if verdict.Status != model.StatusError {
		t.Fatalf("unexpected status: %s", verdict.Status)
	}
	if fake.reclaimCalls != 1 {
		t.Fatalf("staged bundle must be reclaimed exactly once, got %d", fake.reclaimCalls)
	}
}

func TestRunOnceAwaitFailureStillReclaims(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{awaitErr: appErr.New(appErr.StatusReadFailed)}
	svc := newTestService(t, fake)

	verdict, err := svc.RunOnce(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("await failure must be absorbed into the verdict: %v", err)
	}
	if verdict.Status != model.StatusError {
		t.Fatalf("unexpected status: %s", verdict.Status)
	}
	if fake.awaitCalls != 1 {
		t.Fatalf("await must be attempted once, got %d", fake.awaitCalls)
	}
	if fake.reclaimCalls != 1 {
		t.Fatalf("staged bundle must be reclaimed exactly once, got %d", fake.reclaimCalls)
	}
}

func TestRunOnceConcurrentRunsAreIndependent(t *testing.T) {
	t.Parallel()
	sim := backend.NewSimulatedBackend(5 * time.Millisecond)
	svc := newTestService(t, sim)

	const runs = 8
	results := make(chan error, runs)
	for i := 0; i < runs; i++ {
		go func() {
			verdict, err := svc.RunOnce(context.Background(), validRequest())
			if err == nil && verdict.Status != model.StatusPass {
				err = appErr.Newf(appErr.ExecutionFailed, "unexpected status %s", verdict.Status)
			}
			results <- err
		}()
	}
	for i := 0; i < runs; i++ {
		if err := <-results; err != nil {
			t.Fatalf("concurrent run failed: %v", err)
		}
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()
	if _, err := service.NewService(service.Config{Backend: &fakeBackend{}}); err == nil {
		t.Fatalf("expected error without registry")
	}
	if _, err := service.NewService(service.Config{Registry: registry.Default()}); err == nil {
		t.Fatalf("expected error without backend")
	}
}
