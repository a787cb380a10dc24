package api

import "strconv"

// MsgType identifies a pipeline phase transition in a streamed status event.
type MsgType string

// One message type per phase of the submission pipeline, emitted in the
// order the transitions occur.
const (
	InitializingMsg      MsgType = "initializing"
	WritingWorkspaceMsg  MsgType = "writing_workspace"
	BuildingImageMsg     MsgType = "building_image"
	ImageBuiltMsg        MsgType = "image_built"
	ImageBuildFailedMsg  MsgType = "image_build_failed"
	StartingContainerMsg MsgType = "starting_container"
	ContainerRunningMsg  MsgType = "container_running"
	RunningTestCaseMsg   MsgType = "running_test_case"
	TestCaseFinishedMsg  MsgType = "test_case_finished"
	CleaningUpMsg        MsgType = "cleaning_up"
	FinishedMsg          MsgType = "finished"
	FailedMsg            MsgType = "failed"
)

// Output size constraints for streamed diagnostic text
const (
	MaxStreamHeight = 40
	MaxStreamWidth  = 80
)

// StatusEvent is the wire format of one lifecycle event.
type StatusEvent struct {
	SubmUuid string    `json:"subm_uuid"`
	Type     MsgType   `json:"type"`
	Message  string    `json:"message"`
	Data     EventData `json:"data"`
}

// EventData is the payload attached to a status event.
type EventData interface {
	isEventData()
}

// EmptyData marshals to an empty object for phases without a payload.
type EmptyData struct{}

// TestCaseData accompanies the running_test_case message.
type TestCaseData struct {
	TestCase int `json:"testCase"`
}

// TestCaseFinishedData accompanies the test_case_finished message.
type TestCaseFinishedData struct {
	TestCase int    `json:"testCase"`
	Status   string `json:"status"`
}

// BuildFailedData carries the compiler diagnostic log of a failed build.
type BuildFailedData struct {
	BuildLog string `json:"buildLog"`
}

// FailedData carries the error text of an aborted pipeline run.
type FailedData struct {
	Error string `json:"error"`
}

func (EmptyData) isEventData()            {}
func (TestCaseData) isEventData()         {}
func (TestCaseFinishedData) isEventData() {}
func (BuildFailedData) isEventData()      {}
func (FailedData) isEventData()           {}

func newEvent(submUuid string, msgType MsgType, message string, data EventData) StatusEvent {
	return StatusEvent{
		SubmUuid: submUuid,
		Type:     msgType,
		Message:  message,
		Data:     data,
	}
}

func NewInitializing(submUuid string) StatusEvent {
	return newEvent(submUuid, InitializingMsg, "Initializing submission", EmptyData{})
}

func NewWritingWorkspace(submUuid string) StatusEvent {
	return newEvent(submUuid, WritingWorkspaceMsg, "Writing workspace files", EmptyData{})
}

func NewBuildingImage(submUuid string) StatusEvent {
	return newEvent(submUuid, BuildingImageMsg, "Building image", EmptyData{})
}

func NewImageBuilt(submUuid string) StatusEvent {
	return newEvent(submUuid, ImageBuiltMsg, "Image built successfully", EmptyData{})
}

func NewImageBuildFailed(submUuid string, buildLog string) StatusEvent {
	return newEvent(submUuid, ImageBuildFailedMsg, "Image build failed", BuildFailedData{
		BuildLog: TrimStrToRect(buildLog, MaxStreamHeight, MaxStreamWidth),
	})
}

func NewStartingContainer(submUuid string) StatusEvent {
	return newEvent(submUuid, StartingContainerMsg, "Starting container", EmptyData{})
}

func NewContainerRunning(submUuid string) StatusEvent {
	return newEvent(submUuid, ContainerRunningMsg, "Container running", EmptyData{})
}

func NewRunningTestCase(submUuid string, testCase int) StatusEvent {
	msg := "Running test case " + strconv.Itoa(testCase)
	return newEvent(submUuid, RunningTestCaseMsg, msg, TestCaseData{TestCase: testCase})
}

func NewTestCaseFinished(submUuid string, testCase int, status string) StatusEvent {
	msg := "Test case " + strconv.Itoa(testCase) + " " + status
	return newEvent(submUuid, TestCaseFinishedMsg, msg, TestCaseFinishedData{
		TestCase: testCase,
		Status:   status,
	})
}

func NewCleaningUp(submUuid string) StatusEvent {
	return newEvent(submUuid, CleaningUpMsg, "Cleaning up", EmptyData{})
}

func NewFinished(submUuid string) StatusEvent {
	return newEvent(submUuid, FinishedMsg, "Finished", EmptyData{})
}

func NewFailed(submUuid string, err error) StatusEvent {
	return newEvent(submUuid, FailedMsg, "Submission failed", FailedData{Error: err.Error()})
}
