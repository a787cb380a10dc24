package submission

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/johnliu0/codematic-executor/api"
)

// ID is the process-wide-unique identifier minted once per submission. It
// namespaces every resource the pipeline allocates: the workspace
// directory, the image tag and the container names. Two concurrent
// submissions therefore never contend over the same engine object.
type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}

// ImageTag is the tag the built image is addressable by. Exactly one image
// per submission carries it, which makes cleanup address exactly one image.
func (id ID) ImageTag() string {
	return "codematic-build-" + string(id)
}

// ContainerName names the k-th container of this submission. Sequential
// runs only ever use k=0; parallel test-case mode starts one container per
// worker.
func (id ID) ContainerName(k int) string {
	return "codematic-run-" + string(id) + "-" + strconv.Itoa(k)
}

// SourceFile is one named source file. Order within a submission is
// significant: it determines compiler argument order.
type SourceFile struct {
	Name    string
	Content string
}

// TestCase pairs an input with the output the program must produce.
type TestCase struct {
	Input          string
	ExpectedOutput string
}

// Status classifies the outcome of one test case.
type Status string

const (
	StatusPassed   Status = "passed"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
)

// TestCaseResult is the verdict for one test case, immutable once created.
type TestCaseResult struct {
	Index        int
	Status       Status
	ActualOutput string
}

// Submission is one build-and-run request. It is constructed once from a
// validated request, never mutated afterwards, and owned by exactly one
// pipeline run.
type Submission struct {
	ID          ID
	SourceFiles []SourceFile
	EntryPoint  string
	Language    string
	TestCases   []TestCase
}

// SourceFilenames returns the filenames in submission order.
func (s *Submission) SourceFilenames() []string {
	names := make([]string, 0, len(s.SourceFiles))
	for _, f := range s.SourceFiles {
		names = append(names, f.Name)
	}
	return names
}

// FromRequest builds a Submission from an already validated and decoded
// request, minting a fresh ID.
func FromRequest(req *api.ExecReq) *Submission {
	subm := &Submission{
		ID:         NewID(),
		EntryPoint: req.EntryPoint,
		Language:   req.Language,
	}
	for i, code := range req.SourceCodes {
		subm.SourceFiles = append(subm.SourceFiles, SourceFile{
			Name:    req.SourceCodeFilenames[i],
			Content: code,
		})
	}
	for i, input := range req.TestCaseInputs {
		subm.TestCases = append(subm.TestCases, TestCase{
			Input:          input,
			ExpectedOutput: req.TestCaseOutputs[i],
		})
	}
	return subm
}
