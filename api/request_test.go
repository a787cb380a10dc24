package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReq() ExecReq {
	return ExecReq{
		SourceCodes:         []string{"int main() { return 0; }"},
		SourceCodeFilenames: []string{"main.cpp"},
		TestCaseInputs:      []string{"3"},
		TestCaseOutputs:     []string{"9"},
		Language:            "cpp17",
		EntryPoint:          "main.cpp",
	}
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	req := validReq()
	assert.NoError(t, req.Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ExecReq)
		want   string
	}{
		{
			name:   "no sources",
			mutate: func(r *ExecReq) { r.SourceCodes = nil },
			want:   "no source codes",
		},
		{
			name:   "filename count mismatch",
			mutate: func(r *ExecReq) { r.SourceCodeFilenames = []string{"a.cpp", "b.cpp"} },
			want:   "source code filenames",
		},
		{
			name:   "test case count mismatch",
			mutate: func(r *ExecReq) { r.TestCaseOutputs = []string{"9", "16"} },
			want:   "test case",
		},
		{
			name: "no test cases",
			mutate: func(r *ExecReq) {
				r.TestCaseInputs = nil
				r.TestCaseOutputs = nil
			},
			want: "no test cases",
		},
		{
			name:   "filename with path separator",
			mutate: func(r *ExecReq) { r.SourceCodeFilenames = []string{"../main.cpp"} },
			want:   "invalid filename",
		},
		{
			name:   "filename with space",
			mutate: func(r *ExecReq) { r.SourceCodeFilenames = []string{"my main.cpp"} },
			want:   "invalid filename",
		},
		{
			name:   "missing entry point",
			mutate: func(r *ExecReq) { r.EntryPoint = "" },
			want:   "no entry point",
		},
		{
			name:   "entry point with shell metacharacter",
			mutate: func(r *ExecReq) { r.EntryPoint = "main.cpp; rm" },
			want:   "invalid entry point",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validReq()
			tt.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeEscapes(t *testing.T) {
	req := validReq()
	req.SourceCodes = []string{`printf("hi\n");`}
	req.TestCaseInputs = []string{`1\t2\n`}
	req.TestCaseOutputs = []string{`3\r\n`}

	req.DecodeEscapes()

	assert.Equal(t, "printf(\"hi\n\");", req.SourceCodes[0])
	assert.Equal(t, "1\t2\n", req.TestCaseInputs[0])
	assert.Equal(t, "3\r\n", req.TestCaseOutputs[0])
}

func TestDecodeEscapesEdgeCases(t *testing.T) {
	assert.Equal(t, "a\\qb", decodeEscapes(`a\qb`), "unknown escape passes through")
	assert.Equal(t, `\`, decodeEscapes(`\`), "trailing backslash survives")
	assert.Equal(t, `\n`, decodeEscapes(`\\n`), "escaped backslash stops re-decoding")
	assert.Equal(t, "", decodeEscapes(""))
}
