package pipeline

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/johnliu0/codematic-executor/api"
	"github.com/johnliu0/codematic-executor/internal/sandbox"
	"github.com/johnliu0/codematic-executor/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResponseSuccess(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	finish := start.Add(1500 * time.Millisecond)

	res := &Result{
		SubmUuid: "abc",
		BuildLog: "warning: unused variable",
		TestResults: []submission.TestCaseResult{
			{Index: 0, Status: submission.StatusPassed, ActualOutput: "9\n"},
			{Index: 1, Status: submission.StatusFailed, ActualOutput: "10\n"},
		},
	}

	resp := BuildResponse(res, nil, start, finish)

	assert.Equal(t, "abc", resp.SubmUuid)
	assert.Equal(t, api.Success, resp.Status)
	assert.Equal(t, int64(1500), resp.TotalTimeMs)
	assert.Equal(t, "2026-01-02T03:04:05Z", resp.StartTime)
	require.Len(t, resp.TestResults, 2)
	assert.Equal(t, api.TestResult{TestCase: 1, Status: "failed", ActualOutput: "10\n"}, resp.TestResults[1])
	assert.Nil(t, resp.ErrorMessage)
}

func TestBuildResponseBuildError(t *testing.T) {
	now := time.Now()
	err := &SubmissionError{
		SubmUuid: "abc",
		BuildLog: "main.cpp:1:1: error: expected declaration",
		Err:      fmt.Errorf("image build: %w", &sandbox.BuildError{Log: "..."}),
	}

	resp := BuildResponse(nil, err, now, now)

	assert.Equal(t, api.BuildError, resp.Status)
	assert.Equal(t, "abc", resp.SubmUuid)
	assert.Contains(t, resp.BuildLog, "error:")
	require.NotNil(t, resp.ErrorMessage)
	assert.Empty(t, resp.TestResults)
}

func TestBuildResponseInternalErrorWithPartials(t *testing.T) {
	now := time.Now()
	err := &SubmissionError{
		SubmUuid: "abc",
		Partial: []submission.TestCaseResult{
			{Index: 0, Status: submission.StatusPassed, ActualOutput: "9\n"},
		},
		Err: errors.New("daemon went away"),
	}

	resp := BuildResponse(nil, err, now, now)

	assert.Equal(t, api.InternalError, resp.Status)
	require.Len(t, resp.TestResults, 1)
	assert.Equal(t, "passed", resp.TestResults[0].Status)
	require.NotNil(t, resp.ErrorMessage)
	assert.Contains(t, *resp.ErrorMessage, "daemon went away")
}
