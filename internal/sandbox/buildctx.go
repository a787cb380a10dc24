package sandbox

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/johnliu0/codematic-executor/internal/langconf"
	"github.com/klauspost/compress/gzip"
)

// workDir is where the workspace lands inside the image and where every
// test case exec runs.
const workDir = "/usr/src/app"

const dockerfileName = "Dockerfile"

// renderDockerfile produces the build descriptor for one submission: base
// toolchain image, the staged workspace copied in, and a single compile
// step with the source files in submission order.
func renderDockerfile(lang langconf.LanguageConfig, entryPoint string, sources []string) string {
	return fmt.Sprintf(
		"FROM %s\nCOPY . %s\nWORKDIR %s\nRUN %s\n",
		lang.BaseImage,
		workDir,
		workDir,
		lang.BuildCommand(entryPoint, sources),
	)
}

// buildContext tars the staged workspace together with the generated
// Dockerfile into a gzipped build context the engine accepts directly.
func buildContext(workspacePath string, dockerfile string) (io.Reader, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := tw.WriteHeader(&tar.Header{
		Name: dockerfileName,
		Mode: 0644,
		Size: int64(len(dockerfile)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write dockerfile header: %w", err)
	}
	if _, err := tw.Write([]byte(dockerfile)); err != nil {
		return nil, fmt.Errorf("failed to write dockerfile: %w", err)
	}

	entries, err := os.ReadDir(workspacePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(workspacePath, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read workspace file %s: %w", entry.Name(), err)
		}
		err = tw.WriteHeader(&tar.Header{
			Name: entry.Name(),
			Mode: 0644,
			Size: int64(len(content)),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to write tar header for %s: %w", entry.Name(), err)
		}
		if _, err := tw.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write tar entry for %s: %w", entry.Name(), err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize build context tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize build context gzip: %w", err)
	}

	return &buf, nil
}
