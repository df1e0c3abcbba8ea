package services

import (
	"context"
	"errors"
	"log"

	"github.com/ShafiqSadat/ZKFingerprint/database"
	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/ShafiqSadat/ZKFingerprint/realtime"
)

// StartIdentification captures one template and asks the device who it
// belongs to. A definite on-device match returns immediately; when the
// device reports no match or cannot decide, the workflow falls back to
// scoring the captured template against every stored record. A finger
// nobody matches is a successful "unidentified" outcome, not a failure.
func (s *WorkflowService) StartIdentification(ctx context.Context) (*Outcome, error) {
	runCtx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	id := newWorkflowID()
	log.Printf("identification %s started", id)

	if s.Device.Session() == nil {
		return s.fail(id, WorkflowIdentification, StageCapturing, device.ErrDeviceUnavailable), nil
	}

	s.progress(id, WorkflowIdentification, StageCapturing, 0)
	capture, err := s.captureOne(runCtx)
	if err != nil {
		return s.fail(id, WorkflowIdentification, StageCapturing, err), nil
	}

	s.progress(id, WorkflowIdentification, StageDeviceMatching, 0)
	personID, score, err := s.Device.Match(capture.Template)
	if err == nil {
		// fast path: device memory answered, the store is not consulted
		return s.succeed(id, &personID, &score, ""), nil
	}
	if !errors.Is(err, device.ErrNoMatch) {
		log.Printf("identification %s: device could not decide, using local fallback: %v", id, err)
	}

	s.progress(id, WorkflowIdentification, StageLocalFallback, 0)
	best, bestScore, err := s.scanStore(id, capture.Template)
	if err != nil {
		return s.fail(id, WorkflowIdentification, StageLocalFallback, err), nil
	}
	if best == nil {
		return s.succeed(id, nil, nil, "no enrolled finger matched"), nil
	}
	return s.succeed(id, best, &bestScore, ""), nil
}

// scanStore scores the captured template against a fresh snapshot of every
// stored record and returns the best hit at or above the threshold. Records
// come back in insertion order and only a strictly better score displaces
// the current candidate, so the earliest record wins ties.
func (s *WorkflowService) scanStore(id string, captured []byte) (*int64, int, error) {
	snapshot, err := s.Templates.ListAll()
	if err != nil {
		return nil, 0, err
	}
	var best *int64
	bestScore := -1
	for _, record := range snapshot {
		score, err := s.Device.Score(captured, record.Template.Data)
		if err != nil {
			log.Printf("identification %s: could not score template %d: %v", id, record.Template.ID, err)
			continue
		}
		if score >= s.MatchThreshold && score > bestScore {
			personID := int64(record.Person.ID)
			best, bestScore = &personID, score
		}
	}
	return best, bestScore, nil
}

// succeed emits the terminal success event for an identification, looking up
// the display name when a person was found.
func (s *WorkflowService) succeed(id string, personID *int64, score *int, detail string) *Outcome {
	outcome := &Outcome{
		WorkflowID: id,
		Workflow:   WorkflowIdentification,
		Succeeded:  true,
		PersonID:   personID,
		Score:      score,
		Detail:     detail,
	}
	result := database.ScanResultUnidentified
	if personID != nil {
		result = database.ScanResultMatched
		if person, err := s.People.GetByID(uint(*personID)); err == nil {
			outcome.PersonName = person.Name
		}
	}
	s.record(WorkflowIdentification, personID, result, score, detail)
	if s.Events != nil {
		s.Events.Broadcast(realtime.Event{
			Type:       realtime.TypeWorkflow,
			WorkflowID: id,
			Workflow:   WorkflowIdentification,
			Kind:       realtime.KindSuccess,
			Stage:      StageDone,
			PersonID:   personID,
			PersonName: outcome.PersonName,
			Score:      score,
			Detail:     detail,
		})
	}
	if personID != nil {
		log.Printf("identification %s done: person %d", id, *personID)
	} else {
		log.Printf("identification %s done: unidentified", id)
	}
	return outcome
}
