// Package model holds the data types exchanged between the runner layers.
package model

// VerdictStatus is the normalized outcome of one test run.
type VerdictStatus string

const (
	StatusPass  VerdictStatus = "pass"
	StatusFail  VerdictStatus = "fail"
	StatusError VerdictStatus = "error"
)

// Valid reports whether the status is one of the three run outcomes.
func (s VerdictStatus) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusError:
		return true
	}
	return false
}

// TestResult is one named test outcome inside a Verdict.
type TestResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Verdict is the caller-facing result of one run. It is constructed fresh per
// run and is never persisted.
type Verdict struct {
	Status    VerdictStatus `json:"status"`
	Message   string        `json:"message,omitempty"`
	Tests     []TestResult  `json:"tests,omitempty"`
	RawOutput string        `json:"raw_output,omitempty"`
}

// RunRequest contains everything needed to execute one test run.
// It is immutable once accepted by the orchestrator.
type RunRequest struct {
	Language   string
	Code       []byte
	TestConfig map[string]interface{}
}
