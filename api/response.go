package api

// Final, non-streaming response types for a completed submission

type ExecStatus string

const (
	Success       ExecStatus = "success"
	BuildError    ExecStatus = "build_error"
	InternalError ExecStatus = "internal_error"
)

// TestResult is the verdict for a single test case.
type TestResult struct {
	TestCase int    `json:"testCase"`
	Status   string `json:"status"`

	// Captured combined output; empty if the test case timed out.
	ActualOutput string `json:"actualOutput"`
}

// ExecResponse is the complete result of one submission run.
type ExecResponse struct {
	SubmUuid string     `json:"subm_uuid"`
	Status   ExecStatus `json:"status"`

	// Compiler diagnostic text, populated whenever a build was attempted
	BuildLog string `json:"build_log,omitempty"`

	// Ordered by test case index; may be a prefix of the submitted test
	// cases when the pipeline aborted mid-run.
	TestResults []TestResult `json:"test_results"`

	ErrorMessage *string `json:"error_message,omitempty"`

	StartTime   string `json:"start_time"`
	FinishTime  string `json:"finish_time"`
	TotalTimeMs int64  `json:"total_time_ms"`
}
