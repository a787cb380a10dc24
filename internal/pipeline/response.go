package pipeline

import (
	"errors"
	"time"

	"github.com/johnliu0/codematic-executor/api"
	"github.com/johnliu0/codematic-executor/internal/sandbox"
	"github.com/johnliu0/codematic-executor/internal/submission"
)

// BuildResponse flattens a pipeline outcome into the final response shape.
// Exactly one of res and err is meaningful; on error the partial results
// carried by the *SubmissionError are included.
func BuildResponse(res *Result, err error, start, finish time.Time) api.ExecResponse {
	resp := api.ExecResponse{
		StartTime:   start.UTC().Format(time.RFC3339),
		FinishTime:  finish.UTC().Format(time.RFC3339),
		TotalTimeMs: finish.Sub(start).Milliseconds(),
	}

	if err == nil {
		resp.SubmUuid = res.SubmUuid
		resp.Status = api.Success
		resp.BuildLog = res.BuildLog
		resp.TestResults = toTestResults(res.TestResults)
		return resp
	}

	resp.Status = api.InternalError
	var submErr *SubmissionError
	if errors.As(err, &submErr) {
		resp.SubmUuid = submErr.SubmUuid
		resp.BuildLog = submErr.BuildLog
		resp.TestResults = toTestResults(submErr.Partial)
	}
	var buildErr *sandbox.BuildError
	if errors.As(err, &buildErr) {
		resp.Status = api.BuildError
	}
	msg := err.Error()
	resp.ErrorMessage = &msg
	return resp
}

func toTestResults(results []submission.TestCaseResult) []api.TestResult {
	out := make([]api.TestResult, 0, len(results))
	for _, r := range results {
		out = append(out, api.TestResult{
			TestCase:     r.Index,
			Status:       string(r.Status),
			ActualOutput: r.ActualOutput,
		})
	}
	return out
}
