// Package service implements the run orchestrator: stage, launch, await,
// retrieve, reclaim, interpret.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"exrun/internal/runner/backend"
	"exrun/internal/runner/interpret"
	"exrun/internal/runner/model"
	"exrun/internal/runner/registry"
	appErr "exrun/pkg/errors"
	"exrun/pkg/utils/contextkey"
	"exrun/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultJobDeadline  = 2 * time.Minute
	defaultPollInterval = 5 * time.Second

	bundleMountPath = "/mnt/exercise"
	configFileName  = "test_config.json"
)

// Service orchestrates one test run per RunOnce call. Each run owns a distinct
// bundle/unit pair, so concurrent calls need no coordination.
type Service struct {
	registry     *registry.Registry
	backend      backend.Backend
	jobDeadline  time.Duration
	pollInterval time.Duration
}

// Config holds service dependencies and settings.
type Config struct {
	Registry     *registry.Registry
	Backend      backend.Backend
	JobDeadline  time.Duration
	PollInterval time.Duration
}

// NewService creates a run orchestrator.
func NewService(cfg Config) (*Service, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("language registry is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("execution backend is required")
	}
	if cfg.JobDeadline <= 0 {
		cfg.JobDeadline = defaultJobDeadline
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Service{
		registry:     cfg.Registry,
		backend:      cfg.Backend,
		jobDeadline:  cfg.JobDeadline,
		pollInterval: cfg.PollInterval,
	}, nil
}

// RunOnce executes one test run end to end and returns its verdict.
//
// The returned error is non-nil only for rejected requests (unknown language,
// invalid test config); those never touch the backend. Every failure past that
// gate is absorbed into a Verdict with status "error" or "fail" - a backend
// problem is an application-level outcome, not a transport error.
func (s *Service) RunOnce(ctx context.Context, req model.RunRequest) (model.Verdict, error) {
	lang, err := s.registry.Lookup(req.Language)
	if err != nil {
		return model.Verdict{}, err
	}
	if err := interpret.ValidateTestConfig(req.TestConfig, req.Language); err != nil {
		return model.Verdict{}, err
	}

	runID := shortID()
	name := fmt.Sprintf("%s-test-%s", req.Language, runID)
	ctx = context.WithValue(ctx, contextkey.RunID, runID)
	logger.Info(ctx, "starting test run",
		zap.String("language", req.Language),
		zap.String("name", name),
	)

	configJSON, err := json.Marshal(req.TestConfig)
	if err != nil {
		return model.Verdict{}, appErr.Wrapf(err, appErr.InvalidTestConfig, "encode test config failed")
	}
	codeFile := "solution." + lang.FileExtension
	files := map[string]string{
		codeFile:       string(req.Code),
		configFileName: string(configJSON),
	}

	bundle, err := s.backend.StageBundle(ctx, name, files)
	if err != nil {
		logger.Error(ctx, "stage bundle failed", zap.Error(err))
		return errorVerdict("Error staging test bundle", err), nil
	}
	// Reclaim exactly once on every path past this point, even if the request
	// context is already cancelled.
	defer s.backend.Reclaim(context.WithoutCancel(ctx), bundle)

	deadline := lang.Timeout
	if deadline <= 0 {
		deadline = s.jobDeadline
	}

	unit, err := s.backend.Launch(ctx, name, backend.LaunchSpec{
		Image:     lang.Image,
		Command:   runnerCommand(codeFile),
		Bundle:    bundle,
		MountPath: bundleMountPath,
		Deadline:  deadline,
	})
	if err != nil {
		logger.Error(ctx, "launch job failed", zap.Error(err))
		return errorVerdict("Error launching test job", err), nil
	}

	state, output, err := s.backend.AwaitTerminal(ctx, unit, deadline, s.pollInterval)
	if err != nil {
		logger.Error(ctx, "await job failed", zap.Error(err))
		return errorVerdict("Error running tests", err), nil
	}

	verdict := interpret.ExtractVerdict(state, output)
	logger.Info(ctx, "test run finished",
		zap.String("state", string(state)),
		zap.String("verdict", string(verdict.Status)),
	)
	return verdict, nil
}

// BackendStatus reports backend reachability for the health endpoint.
func (s *Service) BackendStatus(ctx context.Context) backend.Status {
	return s.backend.Status(ctx)
}

// runnerCommand builds the fixed command-line contract of the runner images:
// copy the staged files into the runner workspace and invoke its entry script.
func runnerCommand(codeFile string) []string {
	script := fmt.Sprintf(
		"cd %s && cp %s /opt/test-runner/code/%s && cp %s /opt/test-runner/config.json && cd /opt/test-runner && ./bin/run.sh /opt/test-runner/code /opt/test-runner/output",
		bundleMountPath, codeFile, codeFile, configFileName,
	)
	return []string{"sh", "-c", script}
}

// errorVerdict absorbs an internal failure into the verdict taxonomy.
func errorVerdict(msg string, err error) model.Verdict {
	return model.Verdict{
		Status:  model.StatusError,
		Message: fmt.Sprintf("%s: %v", msg, err),
	}
}

// shortID returns the 8-char run identifier shared by the run's bundle and
// unit names.
func shortID() string {
	return uuid.NewString()[:8]
}
