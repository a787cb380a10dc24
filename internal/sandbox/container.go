package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// Limits are the resource caps one submission's containers run under.
type Limits struct {
	MemoryMB int64
	CPUs     float64
}

// RunSpec describes one container start: the image to run, the
// submission-unique name, and the resource caps.
type RunSpec struct {
	ImageTag string
	Name     string
	Limits   Limits
}

// LaunchError reports that the engine could not schedule a container.
type LaunchError struct {
	Name string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch container %s: %v", e.Name, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// StartContainer creates and starts a detached container with stdin held
// open under the given memory and CPU caps. The returned id is what all
// later exec and stop calls address.
func (c *Client) StartContainer(ctx context.Context, spec RunSpec) (string, error) {
	resp, err := c.cli.ContainerCreate(ctx,
		&container.Config{
			Image:     spec.ImageTag,
			Tty:       true,
			OpenStdin: true,
		},
		&container.HostConfig{
			Resources: container.Resources{
				Memory:   spec.Limits.MemoryMB * 1024 * 1024,
				NanoCPUs: int64(spec.Limits.CPUs * 1e9),
			},
		},
		nil, nil, spec.Name)
	if err != nil {
		return "", &LaunchError{Name: spec.Name, Err: err}
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		c.StopContainer(ctx, resp.ID)
		return "", &LaunchError{Name: spec.Name, Err: err}
	}

	return resp.ID, nil
}

// StopContainer force-terminates and removes a container. Idempotent:
// stopping an already-removed container is a no-op and failures are
// logged, never propagated.
func (c *Client) StopContainer(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := c.cli.ContainerRemove(ctx, id, container.RemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	}); err != nil {
		c.log.Debug("container removal skipped", "container", id, "error", err)
	}
}

// ExecTestCase runs one test case inside the container: a single shell
// invocation piping the staged input file into the entry point, capturing
// combined output. The exec runs on its own goroutine so a hard
// wall-clock bound can be enforced; when the timeout fires first, the
// call returns timedOut=true with empty output and the exec is abandoned.
// The process keeps running inside the container until the container is
// force-stopped during end-of-submission cleanup.
func (c *Client) ExecTestCase(ctx context.Context, containerID, entryPoint, inputFile string, timeout time.Duration) (string, bool, error) {
	type execResult struct {
		output string
		err    error
	}

	done := make(chan execResult, 1)
	go func() {
		out, err := c.runExec(ctx, containerID, entryPoint, inputFile)
		done <- execResult{output: out, err: err}
	}()

	select {
	case res := <-done:
		return res.output, false, res.err
	case <-time.After(timeout):
		return "", true, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (c *Client) runExec(ctx context.Context, containerID, entryPoint, inputFile string) (string, error) {
	cmd := []string{"sh", "-c", fmt.Sprintf("./%s < %s", entryPoint, inputFile)}

	idResp, err := c.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create exec: %w", err)
	}

	attach, err := c.cli.ContainerExecAttach(ctx, idResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attach.Close()

	// stdout and stderr demux into one combined buffer.
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, attach.Reader); err != nil {
		return buf.String(), fmt.Errorf("failed to read exec output: %w", err)
	}

	return buf.String(), nil
}
