// Package pipeline sequences one submission through staging, image build,
// container execution and verdict collection, with unconditional teardown
// of every resource it allocated.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/johnliu0/codematic-executor/api"
	"github.com/johnliu0/codematic-executor/internal/langconf"
	"github.com/johnliu0/codematic-executor/internal/progress"
	"github.com/johnliu0/codematic-executor/internal/sandbox"
	"github.com/johnliu0/codematic-executor/internal/submission"
	"github.com/johnliu0/codematic-executor/internal/verdict"
	"github.com/johnliu0/codematic-executor/internal/workspace"
	"golang.org/x/sync/errgroup"
)

// Engine is the sandbox surface the pipeline drives. BuildImage returns
// the accumulated build log alongside its error; RemoveImage and
// StopContainer are idempotent and never fail outward.
type Engine interface {
	BuildImage(ctx context.Context, spec sandbox.BuildSpec) (string, error)
	RemoveImage(ctx context.Context, tag string)
	StartContainer(ctx context.Context, spec sandbox.RunSpec) (string, error)
	StopContainer(ctx context.Context, id string)
	ExecTestCase(ctx context.Context, containerID, entryPoint, inputFile string, timeout time.Duration) (string, bool, error)
}

// Stager is the workspace surface the pipeline drives. Teardown is
// tolerant of missing paths and never fails outward.
type Stager interface {
	Stage(subm *submission.Submission) (string, error)
	Teardown(path string)
}

// Config holds the per-submission execution knobs.
type Config struct {
	// Hard wall-clock bound for one test case execution.
	TestCaseTimeout time.Duration

	// Resource caps every container of a submission runs under.
	Limits sandbox.Limits

	// Number of containers started per submission. 1 runs test cases
	// strictly sequentially in submission order; higher values run them
	// on a bounded worker pool with results still ordered by index.
	ContainersPerSubmission int
}

func DefaultConfig() Config {
	return Config{
		TestCaseTimeout:         5 * time.Second,
		Limits:                  sandbox.Limits{MemoryMB: 50, CPUs: 0.05},
		ContainersPerSubmission: 1,
	}
}

// Result is the final verdict structure of a completed run.
type Result struct {
	SubmUuid    string
	BuildLog    string
	TestResults []submission.TestCaseResult
}

// SubmissionError wraps whatever aborted a pipeline run, after cleanup
// has already happened. Partial carries the test case results produced
// before the abort.
type SubmissionError struct {
	SubmUuid string
	BuildLog string
	Partial  []submission.TestCaseResult
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission %s failed: %v", e.SubmUuid, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Pipeline runs submissions. One Pipeline is shared by all submissions;
// it holds no per-run state, so concurrent Run calls are independent.
type Pipeline struct {
	ws    Stager
	eng   Engine
	langs *langconf.Registry
	sink  progress.Sink
	cfg   Config
	log   *slog.Logger
}

func New(ws Stager, eng Engine, langs *langconf.Registry, sink progress.Sink, cfg Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = progress.NewSlogSink(log)
	}
	return &Pipeline{
		ws:    ws,
		eng:   eng,
		langs: langs,
		sink:  sink,
		cfg:   cfg,
		log:   log,
	}
}

// cleanups collects release actions for acquired resources. Each release
// is idempotent, so the deferred backstop run and the explicit run on the
// exit paths cannot double-free anything.
type cleanups struct {
	fns  []func()
	done bool
}

func (c *cleanups) add(fn func()) {
	c.fns = append(c.fns, fn)
}

func (c *cleanups) run() {
	if c.done {
		return
	}
	c.done = true
	for i := len(c.fns) - 1; i >= 0; i-- {
		c.fns[i]()
	}
}

// Run executes the full pipeline for one submission: stage workspace,
// build image, start container(s), run every test case, tear everything
// down, in that order. Every abort path runs the same cleanup before the
// error is returned as a *SubmissionError.
func (p *Pipeline) Run(ctx context.Context, subm *submission.Submission) (*Result, error) {
	uuid := subm.ID.String()
	log := p.log.With("subm_uuid", uuid)

	cl := &cleanups{}
	defer cl.run()

	fail := func(err error, partial []submission.TestCaseResult, buildLog string) (*Result, error) {
		log.Error("submission failed", "error", err)
		p.sink.Publish(api.NewCleaningUp(uuid))
		cl.run()
		p.sink.Publish(api.NewFailed(uuid, err))
		return nil, &SubmissionError{
			SubmUuid: uuid,
			BuildLog: buildLog,
			Partial:  partial,
			Err:      err,
		}
	}

	p.sink.Publish(api.NewInitializing(uuid))

	lang, err := p.langs.Get(subm.Language)
	if err != nil {
		return fail(err, nil, "")
	}

	p.sink.Publish(api.NewWritingWorkspace(uuid))
	dir, err := p.ws.Stage(subm)
	if err != nil {
		return fail(err, nil, "")
	}
	cl.add(func() { p.ws.Teardown(dir) })
	log.Debug("workspace staged", "dir", dir)

	p.sink.Publish(api.NewBuildingImage(uuid))
	tag := subm.ID.ImageTag()
	cl.add(func() { p.eng.RemoveImage(ctx, tag) })
	buildLog, err := p.eng.BuildImage(ctx, sandbox.BuildSpec{
		WorkspacePath:   dir,
		Lang:            lang,
		SourceFilenames: subm.SourceFilenames(),
		EntryPoint:      subm.EntryPoint,
		Tag:             tag,
	})
	if err != nil {
		var buildErr *sandbox.BuildError
		if errors.As(err, &buildErr) {
			p.sink.Publish(api.NewImageBuildFailed(uuid, buildErr.Log))
		}
		return fail(err, nil, buildLog)
	}
	p.sink.Publish(api.NewImageBuilt(uuid))
	log.Debug("image built", "tag", tag)

	results, err := p.runTestCases(ctx, cl, subm, tag)
	if err != nil {
		return fail(err, results, buildLog)
	}

	p.sink.Publish(api.NewCleaningUp(uuid))
	cl.run()
	p.sink.Publish(api.NewFinished(uuid))
	log.Info("submission finished", "test_cases", len(results))

	return &Result{
		SubmUuid:    uuid,
		BuildLog:    buildLog,
		TestResults: results,
	}, nil
}

func (p *Pipeline) runTestCases(ctx context.Context, cl *cleanups, subm *submission.Submission, tag string) ([]submission.TestCaseResult, error) {
	uuid := subm.ID.String()

	n := p.cfg.ContainersPerSubmission
	if n < 1 {
		n = 1
	}
	if n > len(subm.TestCases) {
		n = len(subm.TestCases)
	}

	p.sink.Publish(api.NewStartingContainer(uuid))
	containers := make([]string, 0, n)
	for k := 0; k < n; k++ {
		id, err := p.eng.StartContainer(ctx, sandbox.RunSpec{
			ImageTag: tag,
			Name:     subm.ID.ContainerName(k),
			Limits:   p.cfg.Limits,
		})
		if err != nil {
			return nil, err
		}
		cl.add(func() { p.eng.StopContainer(ctx, id) })
		containers = append(containers, id)
	}
	p.sink.Publish(api.NewContainerRunning(uuid))

	if len(containers) == 1 {
		return p.runSequential(ctx, subm, containers[0])
	}
	return p.runParallel(ctx, subm, containers)
}

// runSequential executes every test case in submission order on one
// container. There is no short-circuit: a failed or timed-out test case
// does not stop the remaining ones.
func (p *Pipeline) runSequential(ctx context.Context, subm *submission.Submission, containerID string) ([]submission.TestCaseResult, error) {
	uuid := subm.ID.String()
	results := make([]submission.TestCaseResult, 0, len(subm.TestCases))

	for i, tc := range subm.TestCases {
		p.sink.Publish(api.NewRunningTestCase(uuid, i))

		output, timedOut, err := p.eng.ExecTestCase(
			ctx, containerID, subm.EntryPoint, workspace.TestCaseFilename(i), p.cfg.TestCaseTimeout)
		if err != nil {
			return results, fmt.Errorf("test case %d execution failed: %w", i, err)
		}

		status := verdict.Evaluate(output, tc.ExpectedOutput, timedOut)
		results = append(results, submission.TestCaseResult{
			Index:        i,
			Status:       status,
			ActualOutput: output,
		})
		p.sink.Publish(api.NewTestCaseFinished(uuid, i, string(status)))
	}

	return results, nil
}

// runParallel distributes test cases over the started containers with a
// bounded worker pool. Results land in their index slot, so the returned
// order is deterministic even though completion order is not; per-test
// progress events may interleave between indices in this mode.
func (p *Pipeline) runParallel(ctx context.Context, subm *submission.Submission, containers []string) ([]submission.TestCaseResult, error) {
	uuid := subm.ID.String()
	results := make([]submission.TestCaseResult, len(subm.TestCases))
	filled := make([]bool, len(subm.TestCases))

	pool := make(chan string, len(containers))
	for _, id := range containers {
		pool <- id
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(containers))

	for i, tc := range subm.TestCases {
		g.Go(func() error {
			containerID := <-pool
			defer func() { pool <- containerID }()

			p.sink.Publish(api.NewRunningTestCase(uuid, i))

			output, timedOut, err := p.eng.ExecTestCase(
				gctx, containerID, subm.EntryPoint, workspace.TestCaseFilename(i), p.cfg.TestCaseTimeout)
			if err != nil {
				return fmt.Errorf("test case %d execution failed: %w", i, err)
			}

			status := verdict.Evaluate(output, tc.ExpectedOutput, timedOut)
			results[i] = submission.TestCaseResult{
				Index:        i,
				Status:       status,
				ActualOutput: output,
			}
			filled[i] = true
			p.sink.Publish(api.NewTestCaseFinished(uuid, i, string(status)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var partial []submission.TestCaseResult
		for i := range results {
			if filled[i] {
				partial = append(partial, results[i])
			}
		}
		return partial, err
	}

	return results, nil
}
