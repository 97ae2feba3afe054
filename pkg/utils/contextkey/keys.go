package contextkey

// Key is a private type for context keys defined in this package.
type Key string

const (
	// TraceID carries the request trace id across service boundaries.
	TraceID Key = "trace_id"
	// RequestID identifies one inbound HTTP request.
	RequestID Key = "request_id"
	// RunID identifies one test run inside the orchestrator.
	RunID Key = "run_id"
)
