// Package services contains the enrollment and identification workflows that
// orchestrate the device, the template store, and the event stream.
package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ShafiqSadat/ZKFingerprint/database"
	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/ShafiqSadat/ZKFingerprint/realtime"
	"github.com/ShafiqSadat/ZKFingerprint/repository"
	"github.com/google/uuid"
)

// Workflow names carried on events and scan history rows.
const (
	WorkflowEnrollment     = "enrollment"
	WorkflowIdentification = "identification"
)

// Workflow stages, in the order a run visits them.
const (
	StageCapturing        = "capturing"
	StageMerging          = "merging"
	StagePersistingStore  = "persisting_store"
	StagePersistingDevice = "persisting_device"
	StageDeviceMatching   = "device_matching"
	StageLocalFallback    = "local_fallback"
	StageDone             = "done"
)

var (
	// ErrWorkflowActive is returned when a second workflow is started while
	// one already owns the device.
	ErrWorkflowActive = errors.New("another workflow is already running")

	// ErrAlreadyEnrolled aborts an enrollment whose samples match an
	// existing person in device memory.
	ErrAlreadyEnrolled = errors.New("finger is already enrolled")
)

// EventSink receives workflow events. The realtime hub implements it.
type EventSink interface {
	Broadcast(event realtime.Event)
}

// ScanRecorder appends workflow outcomes to scan history.
type ScanRecorder interface {
	Record(workflow string, personID *int64, result string, score *int, detail string) error
}

// PreviewArchiver saves a PNG of an enrollment's final capture.
type PreviewArchiver interface {
	SaveEnrollment(personID int64, frame device.Frame) (string, error)
}

// SyncRequester queues a device sync pass.
type SyncRequester interface {
	RequestSync()
}

// Outcome is the terminal result of one workflow run, mirrored by the final
// success or failure event.
type Outcome struct {
	WorkflowID  string `json:"workflow_id"`
	Workflow    string `json:"workflow"`
	Succeeded   bool   `json:"succeeded"`
	PersonID    *int64 `json:"person_id,omitempty"`
	PersonName  string `json:"person_name,omitempty"`
	Score       *int   `json:"score,omitempty"`
	Detail      string `json:"detail,omitempty"`
	PendingSync bool   `json:"pending_sync,omitempty"`
}

// WorkflowService runs at most one workflow at a time. The device is a
// singly-owned resource: the run that acquires the service's lock holds the
// device until it reaches a terminal state.
type WorkflowService struct {
	Device    device.Device
	People    repository.PersonRepositoryInterface
	Templates repository.TemplateRepositoryInterface
	Events    EventSink
	Scans     ScanRecorder    // optional
	Previews  PreviewArchiver // optional
	Sync      SyncRequester   // optional

	SampleCount    int
	CaptureTimeout time.Duration
	MatchThreshold int

	running  sync.Mutex
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func NewWorkflowService(
	dev device.Device,
	people repository.PersonRepositoryInterface,
	templates repository.TemplateRepositoryInterface,
	events EventSink,
	sampleCount int,
	captureTimeout time.Duration,
	matchThreshold int,
) *WorkflowService {
	if sampleCount <= 0 {
		sampleCount = 3
	}
	if captureTimeout <= 0 {
		captureTimeout = 15 * time.Second
	}
	return &WorkflowService{
		Device:         dev,
		People:         people,
		Templates:      templates,
		Events:         events,
		SampleCount:    sampleCount,
		CaptureTimeout: captureTimeout,
		MatchThreshold: matchThreshold,
	}
}

// acquire claims the device for one run and installs its cancel hook.
func (s *WorkflowService) acquire(ctx context.Context) (context.Context, func(), error) {
	if !s.running.TryLock() {
		return nil, nil, ErrWorkflowActive
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
	release := func() {
		s.cancelMu.Lock()
		s.cancel = nil
		s.cancelMu.Unlock()
		cancel()
		s.running.Unlock()
	}
	return runCtx, release, nil
}

// Cancel aborts the active workflow, if any. The run terminates with a
// "cancelled" failure event.
func (s *WorkflowService) Cancel() bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

func (s *WorkflowService) progress(id, workflow, stage string, sample int) {
	if s.Events == nil {
		return
	}
	s.Events.Broadcast(realtime.Event{
		Type:       realtime.TypeWorkflow,
		WorkflowID: id,
		Workflow:   workflow,
		Kind:       realtime.KindProgress,
		Stage:      stage,
		Sample:     sample,
		Samples:    s.SampleCount,
	})
}

// fail emits the terminal failure event, records history, and builds the
// matching outcome.
func (s *WorkflowService) fail(id, workflow, stage string, err error) *Outcome {
	detail := failureDetail(err)
	log.Printf("%s %s failed at %s: %v", workflow, id, stage, err)
	if s.Events != nil {
		s.Events.Broadcast(realtime.Event{
			Type:       realtime.TypeWorkflow,
			WorkflowID: id,
			Workflow:   workflow,
			Kind:       realtime.KindFailure,
			Stage:      stage,
			Detail:     detail,
		})
	}
	s.record(workflow, nil, database.ScanResultFailed, nil, detail)
	return &Outcome{WorkflowID: id, Workflow: workflow, Detail: detail}
}

func (s *WorkflowService) record(workflow string, personID *int64, result string, score *int, detail string) {
	if s.Scans == nil {
		return
	}
	if err := s.Scans.Record(workflow, personID, result, score, detail); err != nil {
		log.Printf("could not record %s outcome: %v", workflow, err)
	}
}

func newWorkflowID() string {
	return uuid.NewString()
}

// failureDetail translates an internal error into the phrase the shell sees.
// Typed failures map to stable wording; anything unexpected is logged by the
// caller and surfaced generically so no raw vendor error leaks through.
func failureDetail(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, device.ErrCaptureTimeout):
		return "capture timed out waiting for a finger"
	case errors.Is(err, device.ErrCaptureRejected):
		return "capture was rejected, try again"
	case errors.Is(err, device.ErrDeviceUnavailable):
		return "no fingerprint device connected"
	case errors.Is(err, device.ErrDeviceFull):
		return "device memory is full"
	case errors.Is(err, device.ErrEnrollRejected):
		return "device rejected the template"
	case errors.Is(err, ErrAlreadyEnrolled):
		return err.Error()
	case errors.Is(err, ErrWorkflowActive):
		return "another workflow is already running"
	default:
		return "internal error"
	}
}
