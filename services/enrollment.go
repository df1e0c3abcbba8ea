package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ShafiqSadat/ZKFingerprint/database"
	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/ShafiqSadat/ZKFingerprint/models"
	"github.com/ShafiqSadat/ZKFingerprint/realtime"
)

// StartEnrollment captures SampleCount samples of one finger, merges them,
// and writes the result to the store and to device memory. The store write
// is authoritative: a device failure afterwards still counts as success,
// flagged pending-sync, and the next sync pass heals the device.
//
// The returned error is non-nil only when the workflow never started
// (another run active, or an empty name); a run that started always returns
// an Outcome mirroring its terminal event.
func (s *WorkflowService) StartEnrollment(ctx context.Context, personName string) (*Outcome, error) {
	personName = strings.TrimSpace(personName)
	if personName == "" {
		return nil, errors.New("person name is required")
	}
	runCtx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	id := newWorkflowID()
	log.Printf("enrollment %s started for %q", id, personName)

	if s.Device.Session() == nil {
		return s.fail(id, WorkflowEnrollment, StageCapturing, device.ErrDeviceUnavailable), nil
	}

	samples := make([][]byte, 0, s.SampleCount)
	var lastFrame device.Frame
	for i := 1; i <= s.SampleCount; i++ {
		s.progress(id, WorkflowEnrollment, StageCapturing, i)
		capture, err := s.captureOne(runCtx)
		if err != nil {
			return s.fail(id, WorkflowEnrollment, StageCapturing, err), nil
		}

		// a sample that already identifies someone means this finger is
		// enrolled; abort before anything is written
		if existing, score, err := s.Device.Match(capture.Template); err == nil {
			return s.fail(id, WorkflowEnrollment, StageCapturing,
				s.alreadyEnrolled(existing, score)), nil
		} else if !errors.Is(err, device.ErrNoMatch) {
			// the device could not decide; the duplicate check is advisory,
			// so the enrollment proceeds
			log.Printf("enrollment %s: duplicate check inconclusive on sample %d: %v", id, i, err)
		}

		samples = append(samples, capture.Template)
		lastFrame = capture.Frame
	}

	s.progress(id, WorkflowEnrollment, StageMerging, 0)
	merged, err := s.Device.Merge(samples)
	if err != nil {
		return s.fail(id, WorkflowEnrollment, StageMerging, err), nil
	}

	s.progress(id, WorkflowEnrollment, StagePersistingStore, 0)
	person := &models.Person{Name: personName}
	if err := s.People.Create(person); err != nil {
		return s.fail(id, WorkflowEnrollment, StagePersistingStore, err), nil
	}
	if _, err := s.Templates.Save(person.ID, merged); err != nil {
		// roll the person row back so a failed enrollment leaves no trace
		if delErr := s.People.Delete(person.ID); delErr != nil {
			log.Printf("enrollment %s: could not remove person %d after template save failure: %v", id, person.ID, delErr)
		}
		return s.fail(id, WorkflowEnrollment, StagePersistingStore, err), nil
	}

	personID := int64(person.ID)
	outcome := &Outcome{
		WorkflowID: id,
		Workflow:   WorkflowEnrollment,
		Succeeded:  true,
		PersonID:   &personID,
		PersonName: person.Name,
	}

	s.progress(id, WorkflowEnrollment, StagePersistingDevice, 0)
	if err := s.Device.Enroll(personID, merged); err != nil {
		log.Printf("enrollment %s: store write done but device enroll failed: %v", id, err)
		outcome.PendingSync = true
		outcome.Detail = "enrolled; device update pending next sync: " + failureDetail(err)
		if s.Sync != nil {
			s.Sync.RequestSync()
		}
	}

	s.archivePreview(id, personID, lastFrame)

	result := database.ScanResultEnrolled
	if outcome.PendingSync {
		result = database.ScanResultPartial
	}
	s.record(WorkflowEnrollment, &personID, result, nil, outcome.Detail)

	if s.Events != nil {
		s.Events.Broadcast(realtime.Event{
			Type:       realtime.TypeWorkflow,
			WorkflowID: id,
			Workflow:   WorkflowEnrollment,
			Kind:       realtime.KindSuccess,
			Stage:      StageDone,
			PersonID:   &personID,
			PersonName: person.Name,
			Detail:     outcome.Detail,
		})
	}
	log.Printf("enrollment %s done: person %d (%s)", id, personID, person.Name)
	return outcome, nil
}

// captureOne runs a single capture under its own timeout slice of the run.
func (s *WorkflowService) captureOne(ctx context.Context) (*device.Capture, error) {
	captureCtx, cancel := context.WithTimeout(ctx, s.CaptureTimeout)
	defer cancel()
	return s.Device.Capture(captureCtx)
}

// alreadyEnrolled names the person a duplicate sample matched.
func (s *WorkflowService) alreadyEnrolled(personID int64, score int) error {
	name := fmt.Sprintf("person %d", personID)
	if person, err := s.People.GetByID(uint(personID)); err == nil {
		name = fmt.Sprintf("%s (id %d)", person.Name, person.ID)
	}
	return fmt.Errorf("%w: matched %s with score %d", ErrAlreadyEnrolled, name, score)
}

// archivePreview saves the final capture frame. Best effort only; a preview
// failure never fails the enrollment.
func (s *WorkflowService) archivePreview(id string, personID int64, frame device.Frame) {
	if s.Previews == nil {
		return
	}
	path, err := s.Previews.SaveEnrollment(personID, frame)
	if err != nil {
		log.Printf("enrollment %s: preview not archived: %v", id, err)
		return
	}
	log.Printf("enrollment %s: preview archived at %s", id, path)
}
