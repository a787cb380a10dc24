package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/johnliu0/codematic-executor/internal/langconf"
)

// BuildSpec describes one image build: the staged workspace to send as
// build context, the toolchain, the executable to produce and the
// submission-unique tag the result must be retrievable by.
type BuildSpec struct {
	WorkspacePath   string
	Lang            langconf.LanguageConfig
	SourceFilenames []string
	EntryPoint      string
	Tag             string
}

// BuildError reports a failed compile. Log carries the accumulated
// compiler diagnostic text.
type BuildError struct {
	Log string
}

func (e *BuildError) Error() string {
	return "image build failed"
}

// BuildImage drives the engine's streaming build and returns the filtered
// build log. Success means the image is retrievable by its tag after the
// stream ends; a compile failure does not surface as a stream error, so
// the retrieval check is the authoritative verdict. On failure a
// *BuildError carrying the log is returned.
func (c *Client) BuildImage(ctx context.Context, spec BuildSpec) (string, error) {
	dockerfile := renderDockerfile(spec.Lang, spec.EntryPoint, spec.SourceFilenames)
	buildCtx, err := buildContext(spec.WorkspacePath, dockerfile)
	if err != nil {
		return "", fmt.Errorf("failed to assemble build context: %w", err)
	}

	resp, err := c.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{spec.Tag},
		Dockerfile:  dockerfileName,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start image build: %w", err)
	}
	defer resp.Body.Close()

	buildLog, err := consumeBuildStream(resp.Body)
	if err != nil {
		return buildLog, fmt.Errorf("failed to read build stream: %w", err)
	}

	// A partial compile leaves no tagged image behind; inspecting by tag
	// is what distinguishes success from a build that merely terminated.
	if _, _, err := c.cli.ImageInspectWithRaw(ctx, spec.Tag); err != nil {
		c.log.Debug("built image not retrievable", "tag", spec.Tag, "error", err)
		return buildLog, &BuildError{Log: buildLog}
	}

	return buildLog, nil
}

func consumeBuildStream(body io.Reader) (string, error) {
	var sb strings.Builder
	dec := json.NewDecoder(body)
	for {
		var jm jsonmessage.JSONMessage
		if err := dec.Decode(&jm); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return sb.String(), err
		}
		if jm.Error != nil {
			appendLogLines(&sb, []string{jm.Error.Message})
			continue
		}
		if jm.Stream != "" {
			appendLogLines(&sb, filterBuildOutput(jm.Stream))
		}
	}
	return sb.String(), nil
}

func appendLogLines(sb *strings.Builder, lines []string) {
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}

// RemoveImage force-removes the submission's image. It is idempotent:
// removing an image that is already gone is a no-op, and failures are
// logged, never propagated, so cleanup cannot mask a prior error.
func (c *Client) RemoveImage(ctx context.Context, tag string) {
	if tag == "" {
		return
	}
	_, err := c.cli.ImageRemove(ctx, tag, image.RemoveOptions{
		Force:         true,
		PruneChildren: true,
	})
	if err != nil {
		c.log.Debug("image removal skipped", "tag", tag, "error", err)
	}
}
