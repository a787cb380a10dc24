package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/johnliu0/codematic-executor/internal/submission"
)

// Error reports a failed staging operation: the directory could not be
// created or a file could not be written.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to stage workspace %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Manager stages submission files into per-submission build directories
// under a single root, and removes them again. Removal is scoped: Teardown
// refuses to touch anything outside the root it owns.
type Manager struct {
	root string
	log  *slog.Logger
}

func NewManager(root string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{root: root, log: log}
}

// DefaultRoot resolves the workspace root under the user cache directory,
// which honours XDG_CACHE_HOME on Linux.
func DefaultRoot() string {
	cache, err := os.UserCacheDir()
	if err != nil {
		cache = os.TempDir()
	}
	return filepath.Join(cache, "codematic", "workspaces")
}

// TestCaseFilename is the on-disk (and in-image) name of the i-th test
// case input. The container exec pipes this file into the entry point.
func TestCaseFilename(i int) string {
	return "test_case_" + strconv.Itoa(i) + ".in"
}

// Stage creates the submission-scoped build directory and materializes
// every source file and every test case input into it. On any failure the
// partially staged directory is removed before the error is returned.
func (m *Manager) Stage(subm *submission.Submission) (string, error) {
	dir := filepath.Join(m.root, subm.ID.String())

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &Error{Path: dir, Err: err}
	}

	for _, f := range subm.SourceFiles {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
			m.Teardown(dir)
			return "", &Error{Path: path, Err: err}
		}
	}

	for i, tc := range subm.TestCases {
		path := filepath.Join(dir, TestCaseFilename(i))
		if err := os.WriteFile(path, []byte(tc.Input), 0644); err != nil {
			m.Teardown(dir)
			return "", &Error{Path: path, Err: err}
		}
	}

	return dir, nil
}

// Teardown removes a staged directory. It never returns an error: a
// failed removal is logged as a warning so it cannot mask whichever error
// sent the pipeline here. Missing paths are a no-op, which also makes
// double teardown safe.
func (m *Manager) Teardown(path string) {
	if path == "" {
		return
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		m.log.Warn("refusing to tear down path outside workspace root", "path", path, "root", m.root)
		return
	}
	if err := os.RemoveAll(path); err != nil {
		m.log.Warn("failed to tear down workspace", "path", path, "error", err)
	}
}
