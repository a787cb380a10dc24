package api

import (
	"fmt"
	"regexp"
)

// ExecReq is the request shape the boundary layer accepts. Field names
// mirror the submission form: parallel arrays of source files and test
// case inputs/outputs, plus the toolchain id and the executable name the
// compile step should produce.
type ExecReq struct {
	SourceCodes         []string `json:"sourceCodes"`
	SourceCodeFilenames []string `json:"sourceCodeFilenames"`
	TestCaseInputs      []string `json:"testCaseInputs"`
	TestCaseOutputs     []string `json:"testCaseOutputs"`
	Language            string   `json:"language"`
	EntryPoint          string   `json:"entryPoint"`
}

// Filenames may contain only alphanumerics and periods. Anything else is
// rejected before it can reach a shell line or escape the workspace.
var filenameRe = regexp.MustCompile(`^[a-zA-Z0-9.]+$`)

// Validate checks the invariants the pipeline assumes already hold:
// non-empty parallel arrays of equal length and safe filenames. It does
// not check the language against the allow-list; that is the caller's
// registry lookup.
func (r *ExecReq) Validate() error {
	if len(r.SourceCodes) == 0 {
		return fmt.Errorf("no source codes provided")
	}
	if len(r.SourceCodeFilenames) != len(r.SourceCodes) {
		return fmt.Errorf("number of source codes differs from number of source code filenames")
	}
	if len(r.TestCaseInputs) != len(r.TestCaseOutputs) {
		return fmt.Errorf("number of test case inputs differs from number of test case outputs")
	}
	if len(r.TestCaseInputs) == 0 {
		return fmt.Errorf("no test cases provided")
	}
	for _, fname := range r.SourceCodeFilenames {
		if !filenameRe.MatchString(fname) {
			return fmt.Errorf("invalid filename: %s", fname)
		}
	}
	if r.EntryPoint == "" {
		return fmt.Errorf("no entry point provided")
	}
	if !filenameRe.MatchString(r.EntryPoint) {
		return fmt.Errorf("invalid entry point: %s", r.EntryPoint)
	}
	return nil
}

// DecodeEscapes rewrites escape sequences in all text payloads to literal
// bytes, so "3\n" in a JSON form field becomes an actual newline before
// the files are staged.
func (r *ExecReq) DecodeEscapes() {
	for i := range r.SourceCodes {
		r.SourceCodes[i] = decodeEscapes(r.SourceCodes[i])
	}
	for i := range r.TestCaseInputs {
		r.TestCaseInputs[i] = decodeEscapes(r.TestCaseInputs[i])
	}
	for i := range r.TestCaseOutputs {
		r.TestCaseOutputs[i] = decodeEscapes(r.TestCaseOutputs[i])
	}
}

func decodeEscapes(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b = append(b, s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b = append(b, '\n')
		case 't':
			b = append(b, '\t')
		case 'r':
			b = append(b, '\r')
		case '\\':
			b = append(b, '\\')
		default:
			// Unknown escapes pass through untouched.
			b = append(b, s[i], s[i+1])
		}
		i++
	}
	return string(b)
}
