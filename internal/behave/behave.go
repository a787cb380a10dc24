// Package behave turns TOML behaviour files into runnable submission
// requests, for the offline scenario runner and for tests.
package behave

import (
	"fmt"
	"os"

	"github.com/johnliu0/codematic-executor/api"
	"github.com/pelletier/go-toml/v2"
)

// SpecSource is a single source file in the behaviour file
type SpecSource struct {
	Name    string `toml:"name"`
	Content string `toml:"content"`
}

// SpecTest is a single test case in the behaviour file
type SpecTest struct {
	In  string `toml:"in"`
	Ans string `toml:"ans"`
}

// SpecRequest represents a request block inside a scenario entry
type SpecRequest struct {
	EntryPoint string       `toml:"entry_point"`
	Language   string       `toml:"language"`
	Sources    []SpecSource `toml:"sources"`
	Tests      []SpecTest   `toml:"tests"`
}

// SpecTestVerdict represents an expected verdict for a test result
type SpecTestVerdict struct {
	Verdict string `toml:"verdict"`
}

// SpecExpect describes expected overall status and per-test verdicts
type SpecExpect struct {
	Status      string            `toml:"status"`
	TestResults []SpecTestVerdict `toml:"test_results"`
}

// specSuite maps to [[scenarios]] entries. The request is written as an
// array-of-table, so we model it as a slice and use the first element.
type specSuite struct {
	Description string        `toml:"description"`
	RequestAOT  []SpecRequest `toml:"request"`
	Expect      SpecExpect    `toml:"expect"`
}

type specRoot struct {
	Suites []specSuite `toml:"scenarios"`
}

// Case is a runnable scenario converted from TOML
type Case struct {
	Name    string
	Request api.ExecReq
	Expect  SpecExpect
}

// Parse reads a behaviour TOML file and converts it to runnable cases
func Parse(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read behaviour file: %w", err)
	}
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cases := make([]Case, 0, len(root.Suites))
	for _, suite := range root.Suites {
		if len(suite.RequestAOT) == 0 {
			return nil, fmt.Errorf("scenario entry is missing request block")
		}
		reqSpec := suite.RequestAOT[0]

		req := api.ExecReq{
			Language:   reqSpec.Language,
			EntryPoint: reqSpec.EntryPoint,
		}
		if req.Language == "" {
			req.Language = "cpp17"
		}
		for _, s := range reqSpec.Sources {
			req.SourceCodes = append(req.SourceCodes, s.Content)
			req.SourceCodeFilenames = append(req.SourceCodeFilenames, s.Name)
		}
		for _, t := range reqSpec.Tests {
			req.TestCaseInputs = append(req.TestCaseInputs, t.In)
			req.TestCaseOutputs = append(req.TestCaseOutputs, t.Ans)
		}

		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %q is invalid: %w", suite.Description, err)
		}

		cases = append(cases, Case{
			Name:    suite.Description,
			Request: req,
			Expect:  suite.Expect,
		})
	}

	return cases, nil
}
