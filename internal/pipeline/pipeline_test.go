package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/johnliu0/codematic-executor/api"
	"github.com/johnliu0/codematic-executor/internal/langconf"
	"github.com/johnliu0/codematic-executor/internal/progress"
	"github.com/johnliu0/codematic-executor/internal/sandbox"
	"github.com/johnliu0/codematic-executor/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStager struct {
	stageErr error
	staged   []string
	tornDown []string
	mu       sync.Mutex
}

func (f *fakeStager) Stage(subm *submission.Submission) (string, error) {
	if f.stageErr != nil {
		return "", f.stageErr
	}
	dir := "/ws/" + subm.ID.String()
	f.mu.Lock()
	f.staged = append(f.staged, dir)
	f.mu.Unlock()
	return dir, nil
}

func (f *fakeStager) Teardown(path string) {
	f.mu.Lock()
	f.tornDown = append(f.tornDown, path)
	f.mu.Unlock()
}

type fakeEngine struct {
	mu sync.Mutex

	buildErr  error
	buildLog  string
	launchErr error

	// outputs maps the input filename to what the program prints.
	outputs map[string]string
	// timeouts marks input filenames whose exec exceeds the wall clock.
	timeouts map[string]bool
	// execErrs marks input filenames whose exec fails outright.
	execErrs map[string]error

	builtTags     []string
	removedTags   []string
	started       []string
	stopped       []string
	execedFiles   []string
	nextContainer int
}

func (f *fakeEngine) BuildImage(ctx context.Context, spec sandbox.BuildSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buildErr != nil {
		return f.buildLog, f.buildErr
	}
	f.builtTags = append(f.builtTags, spec.Tag)
	return f.buildLog, nil
}

func (f *fakeEngine) RemoveImage(ctx context.Context, tag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedTags = append(f.removedTags, tag)
}

func (f *fakeEngine) StartContainer(ctx context.Context, spec sandbox.RunSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.launchErr != nil && f.nextContainer > 0 {
		return "", f.launchErr
	}
	f.nextContainer++
	id := fmt.Sprintf("ctr-%d", f.nextContainer)
	f.started = append(f.started, id)
	return id, nil
}

func (f *fakeEngine) StopContainer(ctx context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
}

func (f *fakeEngine) ExecTestCase(ctx context.Context, containerID, entryPoint, inputFile string, timeout time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execedFiles = append(f.execedFiles, inputFile)
	if err := f.execErrs[inputFile]; err != nil {
		return "", false, err
	}
	if f.timeouts[inputFile] {
		return "", true, nil
	}
	return f.outputs[inputFile], false, nil
}

func squaresSubmission() *submission.Submission {
	return &submission.Submission{
		ID:         submission.NewID(),
		EntryPoint: "main.cpp",
		Language:   "cpp17",
		SourceFiles: []submission.SourceFile{
			{Name: "main.cpp", Content: "..."},
		},
		TestCases: []submission.TestCase{
			{Input: "3\n", ExpectedOutput: "9\n"},
			{Input: "4\n", ExpectedOutput: "16\n"},
		},
	}
}

func newTestPipeline(eng *fakeEngine, ws *fakeStager, cfg Config, sink progress.Sink) *Pipeline {
	return New(ws, eng, langconf.Default(), sink, cfg, nil)
}

func eventTypes(events []api.StatusEvent) []api.MsgType {
	types := make([]api.MsgType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func TestRunHappyPath(t *testing.T) {
	eng := &fakeEngine{
		outputs: map[string]string{
			"test_case_0.in": "9\n",
			"test_case_1.in": "16\n",
		},
	}
	ws := &fakeStager{}
	sink := progress.NewCaptureSink()
	p := newTestPipeline(eng, ws, DefaultConfig(), sink)

	subm := squaresSubmission()
	res, err := p.Run(context.Background(), subm)
	require.NoError(t, err)

	assert.Equal(t, subm.ID.String(), res.SubmUuid)
	require.Len(t, res.TestResults, 2)
	assert.Equal(t, submission.TestCaseResult{Index: 0, Status: submission.StatusPassed, ActualOutput: "9\n"}, res.TestResults[0])
	assert.Equal(t, submission.StatusPassed, res.TestResults[1].Status)

	assert.Equal(t, []api.MsgType{
		api.InitializingMsg,
		api.WritingWorkspaceMsg,
		api.BuildingImageMsg,
		api.ImageBuiltMsg,
		api.StartingContainerMsg,
		api.ContainerRunningMsg,
		api.RunningTestCaseMsg,
		api.TestCaseFinishedMsg,
		api.RunningTestCaseMsg,
		api.TestCaseFinishedMsg,
		api.CleaningUpMsg,
		api.FinishedMsg,
	}, eventTypes(sink.Events()))

	assert.Equal(t, ws.staged, ws.tornDown)
	assert.Equal(t, []string{subm.ID.ImageTag()}, eng.removedTags)
	assert.Equal(t, eng.started, eng.stopped)
}

func TestRunWrongOutputIsFailedNotError(t *testing.T) {
	eng := &fakeEngine{
		outputs: map[string]string{
			"test_case_0.in": "6\n",
			"test_case_1.in": "16\n",
		},
	}
	p := newTestPipeline(eng, &fakeStager{}, DefaultConfig(), nil)

	res, err := p.Run(context.Background(), squaresSubmission())
	require.NoError(t, err)
	assert.Equal(t, submission.StatusFailed, res.TestResults[0].Status)
	assert.Equal(t, submission.StatusPassed, res.TestResults[1].Status)
}

func TestRunTimeoutDoesNotAbortRemainingTests(t *testing.T) {
	eng := &fakeEngine{
		outputs:  map[string]string{"test_case_1.in": "16\n"},
		timeouts: map[string]bool{"test_case_0.in": true},
	}
	ws := &fakeStager{}
	sink := progress.NewCaptureSink()
	p := newTestPipeline(eng, ws, DefaultConfig(), sink)

	res, err := p.Run(context.Background(), squaresSubmission())
	require.NoError(t, err)

	require.Len(t, res.TestResults, 2)
	assert.Equal(t, submission.StatusTimedOut, res.TestResults[0].Status)
	assert.Equal(t, "", res.TestResults[0].ActualOutput)
	assert.Equal(t, submission.StatusPassed, res.TestResults[1].Status)

	types := eventTypes(sink.Events())
	assert.Equal(t, api.FinishedMsg, types[len(types)-1])
	assert.Equal(t, ws.staged, ws.tornDown)
}

func TestRunBuildFailure(t *testing.T) {
	log := "main.cpp:3:5: error: 'cout' was not declared in this scope"
	eng := &fakeEngine{
		buildErr: &sandbox.BuildError{Log: log},
		buildLog: log,
	}
	ws := &fakeStager{}
	sink := progress.NewCaptureSink()
	p := newTestPipeline(eng, ws, DefaultConfig(), sink)

	_, err := p.Run(context.Background(), squaresSubmission())
	require.Error(t, err)

	var buildErr *sandbox.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, log, buildErr.Log)

	var submErr *SubmissionError
	require.ErrorAs(t, err, &submErr)
	assert.Equal(t, log, submErr.BuildLog)
	assert.Empty(t, submErr.Partial)

	assert.Empty(t, eng.started, "no container may start after a failed build")
	assert.Equal(t, ws.staged, ws.tornDown)

	types := eventTypes(sink.Events())
	assert.Contains(t, types, api.ImageBuildFailedMsg)
	assert.Equal(t, api.FailedMsg, types[len(types)-1])
	assert.NotContains(t, types, api.StartingContainerMsg)

	for _, ev := range sink.Events() {
		if ev.Type == api.ImageBuildFailedMsg {
			data, ok := ev.Data.(api.BuildFailedData)
			require.True(t, ok)
			assert.Contains(t, data.BuildLog, "error:")
		}
	}
}

func TestRunLaunchFailureStopsStartedContainers(t *testing.T) {
	eng := &fakeEngine{
		launchErr: errors.New("port exhausted"),
		outputs:   map[string]string{},
	}
	ws := &fakeStager{}
	cfg := DefaultConfig()
	cfg.ContainersPerSubmission = 2
	sink := progress.NewCaptureSink()
	p := newTestPipeline(eng, ws, cfg, sink)

	_, err := p.Run(context.Background(), squaresSubmission())
	require.Error(t, err)

	require.Len(t, eng.started, 1, "first container starts, second fails")
	assert.Equal(t, eng.started, eng.stopped)
	assert.Equal(t, ws.staged, ws.tornDown)

	types := eventTypes(sink.Events())
	assert.Equal(t, api.FailedMsg, types[len(types)-1])
	assert.NotContains(t, types, api.ContainerRunningMsg)
}

func TestRunExecErrorCarriesPartialResults(t *testing.T) {
	eng := &fakeEngine{
		outputs:  map[string]string{"test_case_0.in": "9\n"},
		execErrs: map[string]error{"test_case_1.in": errors.New("daemon went away")},
	}
	p := newTestPipeline(eng, &fakeStager{}, DefaultConfig(), nil)

	_, err := p.Run(context.Background(), squaresSubmission())
	require.Error(t, err)

	var submErr *SubmissionError
	require.ErrorAs(t, err, &submErr)
	require.Len(t, submErr.Partial, 1)
	assert.Equal(t, submission.StatusPassed, submErr.Partial[0].Status)
}

func TestRunUnknownLanguage(t *testing.T) {
	eng := &fakeEngine{}
	ws := &fakeStager{}
	sink := progress.NewCaptureSink()
	p := newTestPipeline(eng, ws, DefaultConfig(), sink)

	subm := squaresSubmission()
	subm.Language = "fortran"

	_, err := p.Run(context.Background(), subm)
	require.Error(t, err)

	var undefErr *langconf.ErrUndefinedLanguage
	assert.ErrorAs(t, err, &undefErr)

	assert.Empty(t, ws.staged)
	types := eventTypes(sink.Events())
	assert.Equal(t, []api.MsgType{api.InitializingMsg, api.CleaningUpMsg, api.FailedMsg}, types)
}

func TestRunParallelMode(t *testing.T) {
	subm := squaresSubmission()
	subm.TestCases = []submission.TestCase{
		{Input: "1\n", ExpectedOutput: "1\n"},
		{Input: "2\n", ExpectedOutput: "4\n"},
		{Input: "3\n", ExpectedOutput: "9\n"},
		{Input: "4\n", ExpectedOutput: "16\n"},
	}
	eng := &fakeEngine{
		outputs: map[string]string{
			"test_case_0.in": "1\n",
			"test_case_1.in": "4\n",
			"test_case_2.in": "8\n",
			"test_case_3.in": "16\n",
		},
	}
	ws := &fakeStager{}
	cfg := DefaultConfig()
	cfg.ContainersPerSubmission = 2
	p := newTestPipeline(eng, ws, cfg, nil)

	res, err := p.Run(context.Background(), subm)
	require.NoError(t, err)

	require.Len(t, res.TestResults, 4)
	for i, r := range res.TestResults {
		assert.Equal(t, i, r.Index, "results ordered by index")
	}
	assert.Equal(t, submission.StatusFailed, res.TestResults[2].Status)
	assert.Equal(t, submission.StatusPassed, res.TestResults[3].Status)

	assert.Len(t, eng.started, 2)
	assert.ElementsMatch(t, eng.started, eng.stopped)
	assert.Equal(t, ws.staged, ws.tornDown)
}

func TestRunCapsContainersToTestCaseCount(t *testing.T) {
	eng := &fakeEngine{
		outputs: map[string]string{
			"test_case_0.in": "9\n",
			"test_case_1.in": "16\n",
		},
	}
	cfg := DefaultConfig()
	cfg.ContainersPerSubmission = 8
	p := newTestPipeline(eng, &fakeStager{}, cfg, nil)

	_, err := p.Run(context.Background(), squaresSubmission())
	require.NoError(t, err)
	assert.Len(t, eng.started, 2, "never more containers than test cases")
}

func TestRunStageFailure(t *testing.T) {
	eng := &fakeEngine{}
	ws := &fakeStager{stageErr: errors.New("disk full")}
	sink := progress.NewCaptureSink()
	p := newTestPipeline(eng, ws, DefaultConfig(), sink)

	_, err := p.Run(context.Background(), squaresSubmission())
	require.Error(t, err)

	assert.Empty(t, ws.tornDown, "nothing staged, nothing to tear down")
	assert.Empty(t, eng.builtTags)
	types := eventTypes(sink.Events())
	assert.Equal(t, api.FailedMsg, types[len(types)-1])
}
