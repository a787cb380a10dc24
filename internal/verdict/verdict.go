// Package verdict classifies test case outcomes.
package verdict

import "github.com/johnliu0/codematic-executor/internal/submission"

// Evaluate classifies one test case. TimedOut takes precedence over any
// output comparison; otherwise the captured output must equal the expected
// output byte for byte. There is deliberately no normalization: a missing
// trailing newline or stray whitespace is a mismatch.
func Evaluate(actualOutput, expectedOutput string, timedOut bool) submission.Status {
	if timedOut {
		return submission.StatusTimedOut
	}
	if actualOutput == expectedOutput {
		return submission.StatusPassed
	}
	return submission.StatusFailed
}
