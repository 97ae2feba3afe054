// Package interpret validates test configurations and converts raw runner
// output into verdicts. All functions are pure.
package interpret

import (
	"encoding/json"
	"strings"

	"exrun/internal/runner/backend"
	"exrun/internal/runner/model"
	appErr "exrun/pkg/errors"
)

// resultMarker is the literal prefix of the structured result object the
// runner image embeds in its log stream. The scan is best effort; the output
// contract is owned by the execution image.
const resultMarker = `{"status":`

// ValidateTestConfig checks an incoming test-config document against
// per-language rules. It runs before any backend resource is allocated.
func ValidateTestConfig(config map[string]interface{}, language string) error {
	if len(config) == 0 {
		return appErr.New(appErr.InvalidTestConfig).WithMessage("test config must be a non-empty object")
	}

	if language == "python" {
		if _, ok := config["version"]; !ok {
			return appErr.New(appErr.InvalidTestConfig).
				WithMessage("missing 'version' in python test config").
				WithDetail("field", "version")
		}
		_, hasFile := config["test_file"]
		_, hasFiles := config["test_files"]
		if !hasFile && !hasFiles {
			return appErr.New(appErr.InvalidTestConfig).
				WithMessage("missing 'test_file' or 'test_files' in python test config").
				WithDetail("field", "test_files")
		}
	}

	return nil
}

// ExtractVerdict converts a terminal state plus captured output into a
// Verdict. Failed and timed-out runs map to a fail verdict; a successful run
// is scanned for an embedded structured result.
func ExtractVerdict(state backend.TerminalState, output string) model.Verdict {
	switch state {
	case backend.StateTimedOut:
		return model.Verdict{
			Status:    model.StatusFail,
			Message:   backend.TimeoutMessage,
			RawOutput: output,
		}
	case backend.StateFailed:
		return model.Verdict{
			Status:    model.StatusFail,
			Message:   "Test execution failed",
			RawOutput: output,
		}
	}

	idx := strings.Index(output, resultMarker)
	if idx < 0 {
		return model.Verdict{
			Status:    model.StatusPass,
			Message:   "Tests passed but no structured output found",
			RawOutput: output,
		}
	}

	var verdict model.Verdict
	if err := json.Unmarshal([]byte(output[idx:]), &verdict); err != nil {
		return model.Verdict{
			Status:    model.StatusError,
			Message:   "Error parsing test results: " + err.Error(),
			RawOutput: output,
		}
	}
	if !verdict.Status.Valid() {
		return model.Verdict{
			Status:    model.StatusError,
			Message:   "Test results missing a valid status",
			RawOutput: output,
		}
	}
	return verdict
}
