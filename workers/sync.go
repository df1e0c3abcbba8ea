package workers

import (
	"log"
	"sync"
	"time"

	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/ShafiqSadat/ZKFingerprint/realtime"
	"github.com/ShafiqSadat/ZKFingerprint/repository"
)

// EventSink receives sync progress events. The realtime hub implements it.
type EventSink interface {
	Broadcast(event realtime.Event)
}

// SyncFailure is one record the device refused during a pass.
type SyncFailure struct {
	PersonID   int64  `json:"person_id"`
	TemplateID uint   `json:"template_id"`
	Reason     string `json:"reason"`
}

// SyncSummary reports a completed pass. Failed being non-empty is a partial
// success, not an error: the store remains authoritative and a later pass
// retries everything.
type SyncSummary struct {
	Total      int           `json:"total"`
	Loaded     int           `json:"loaded"`
	Failed     []SyncFailure `json:"failed,omitempty"`
	FinishedAt int64         `json:"finished_at"`
}

// DeviceSync pushes every stored template into device on-board memory so
// on-device matching has full coverage. A pass runs after each successful
// connect and on demand.
type DeviceSync struct {
	Device    device.Device
	Templates repository.TemplateRepositoryInterface
	Events    EventSink

	requests chan struct{}
	StopChan chan struct{}
	Wg       sync.WaitGroup

	mu   sync.Mutex
	last *SyncSummary
}

func NewDeviceSync(dev device.Device, templates repository.TemplateRepositoryInterface, events EventSink) *DeviceSync {
	ds := &DeviceSync{
		Device:    dev,
		Templates: templates,
		Events:    events,
		requests:  make(chan struct{}, 1),
		StopChan:  make(chan struct{}),
	}
	ds.Wg.Add(1)
	go ds.worker()
	log.Println("Started device sync worker")
	return ds
}

func (ds *DeviceSync) worker() {
	defer ds.Wg.Done()
	for {
		select {
		case <-ds.requests:
			ds.RunPass()
		case <-ds.StopChan:
			log.Println("Sync worker stopping: Stop signal received")
			return
		}
	}
}

// RequestSync queues a pass. A pass already queued absorbs the request.
func (ds *DeviceSync) RequestSync() {
	select {
	case ds.requests <- struct{}{}:
	default:
	}
}

// RunPass synchronously clears device memory and re-enrolls every stored
// template. Per-record failures are collected, never fatal; the pass always
// visits every record.
func (ds *DeviceSync) RunPass() SyncSummary {
	summary := SyncSummary{}

	if err := ds.Device.ClearMemory(); err != nil {
		log.Printf("Sync worker: could not clear device memory: %v", err)
		summary.Failed = append(summary.Failed, SyncFailure{Reason: "device memory not cleared: " + err.Error()})
		ds.finish(&summary)
		return summary
	}

	records, err := ds.Templates.ListAll()
	if err != nil {
		log.Printf("Sync worker: ERROR listing templates: %v", err)
		summary.Failed = append(summary.Failed, SyncFailure{Reason: "store snapshot failed: " + err.Error()})
		ds.finish(&summary)
		return summary
	}

	summary.Total = len(records)
	for _, record := range records {
		personID := int64(record.Person.ID)
		if err := ds.Device.Enroll(personID, record.Template.Data); err != nil {
			log.Printf("Sync worker: device rejected template %d for person %d: %v",
				record.Template.ID, personID, err)
			summary.Failed = append(summary.Failed, SyncFailure{
				PersonID:   personID,
				TemplateID: record.Template.ID,
				Reason:     err.Error(),
			})
			continue
		}
		summary.Loaded++
	}

	log.Printf("Sync worker: pass complete, %d/%d templates loaded (%d failed)",
		summary.Loaded, summary.Total, len(summary.Failed))
	ds.finish(&summary)
	return summary
}

func (ds *DeviceSync) finish(summary *SyncSummary) {
	summary.FinishedAt = time.Now().Unix()
	ds.mu.Lock()
	ds.last = summary
	ds.mu.Unlock()
	if ds.Events != nil {
		ds.Events.Broadcast(realtime.Event{
			Type:   realtime.TypeSync,
			Detail: "sync pass finished",
			Extra: map[string]any{
				"total":  summary.Total,
				"loaded": summary.Loaded,
				"failed": len(summary.Failed),
			},
		})
	}
}

// LastSummary returns the most recent pass result, or nil before any pass.
func (ds *DeviceSync) LastSummary() *SyncSummary {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.last
}

func (ds *DeviceSync) Stop() {
	close(ds.StopChan)
	ds.Wg.Wait()
	log.Println("Device sync worker stopped")
}
