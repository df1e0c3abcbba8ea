package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/ShafiqSadat/ZKFingerprint/realtime"
	"github.com/ShafiqSadat/ZKFingerprint/workers"
)

// DeviceHandler serves connect/disconnect/status and manual sync.
type DeviceHandler struct {
	Device device.Device
	Sync   *workers.DeviceSync
	Events *realtime.Hub
}

type deviceStatus struct {
	Connected     bool                 `json:"connected"`
	Session       *device.Session      `json:"session,omitempty"`
	CachedCount   int                  `json:"cached_count"`
	LastSyncBatch *workers.SyncSummary `json:"last_sync,omitempty"`
}

// Connect opens the device and queues the sync pass that repopulates its
// memory from the store. Connecting twice is a no-op returning the existing
// session.
func (dh *DeviceHandler) Connect(w http.ResponseWriter, r *http.Request) {
	session, err := dh.Device.Connect(r.Context())
	if err != nil {
		if errors.Is(err, device.ErrDeviceUnavailable) {
			WriteAPIError(w, http.StatusServiceUnavailable, "device_unavailable", "No fingerprint device available")
			return
		}
		log.Printf("Error connecting device: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "connect_failed", "Failed to connect device")
		return
	}
	if dh.Events != nil {
		dh.Events.Broadcast(realtime.Event{Type: realtime.TypeDevice, Detail: "connected"})
	}
	dh.Sync.RequestSync()
	writeJSON(w, http.StatusOK, session)
}

func (dh *DeviceHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := dh.Device.Disconnect(); err != nil {
		log.Printf("Error disconnecting device: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "disconnect_failed", "Failed to disconnect device")
		return
	}
	if dh.Events != nil {
		dh.Events.Broadcast(realtime.Event{Type: realtime.TypeDevice, Detail: "disconnected"})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (dh *DeviceHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := dh.Device.Session()
	status := deviceStatus{
		Connected:     session != nil,
		Session:       session,
		LastSyncBatch: dh.Sync.LastSummary(),
	}
	if session != nil {
		status.CachedCount = dh.Device.Count()
	}
	writeJSON(w, http.StatusOK, status)
}

// SyncNow runs a full sync pass inline and returns its summary.
func (dh *DeviceHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	if dh.Device.Session() == nil {
		WriteAPIError(w, http.StatusConflict, "not_connected", "Connect the device before syncing")
		return
	}
	summary := dh.Sync.RunPass()
	writeJSON(w, http.StatusOK, summary)
}
