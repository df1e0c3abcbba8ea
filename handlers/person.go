package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/ShafiqSadat/ZKFingerprint/repository"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// PersonHandler serves the enrolled-people surface of the API.
type PersonHandler struct {
	People    repository.PersonRepositoryInterface
	Templates repository.TemplateRepositoryInterface
	Device    device.Device
}

func (ph *PersonHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := ph.People.ListAll()
	if err != nil {
		log.Printf("Error listing people: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "Failed to retrieve people")
		return
	}
	writeJSON(w, http.StatusOK, people)
}

func (ph *PersonHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	personID, ok := parsePersonID(w, r)
	if !ok {
		return
	}
	person, err := ph.People.GetByID(personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Person not found")
			return
		}
		log.Printf("Error getting person %d: %v", personID, err)
		WriteAPIError(w, http.StatusInternalServerError, "get_failed", "Failed to retrieve person")
		return
	}
	writeJSON(w, http.StatusOK, person)
}

// ListPersonTemplates returns template metadata in insertion order. Blobs
// stay server-side; the JSON shape omits the raw data.
func (ph *PersonHandler) ListPersonTemplates(w http.ResponseWriter, r *http.Request) {
	personID, ok := parsePersonID(w, r)
	if !ok {
		return
	}
	if _, err := ph.People.GetByID(personID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Person not found")
			return
		}
		log.Printf("Error getting person %d: %v", personID, err)
		WriteAPIError(w, http.StatusInternalServerError, "get_failed", "Failed to retrieve person")
		return
	}
	templates, err := ph.Templates.FindByPerson(personID)
	if err != nil {
		log.Printf("Error listing templates for person %d: %v", personID, err)
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "Failed to retrieve templates")
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// DeletePerson removes the person and their templates from the store, then
// drops them from device memory. The store delete is what matters; a device
// miss just leaves a stale cache entry the next sync pass clears.
func (ph *PersonHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	personID, ok := parsePersonID(w, r)
	if !ok {
		return
	}
	if err := ph.People.Delete(personID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Person not found")
			return
		}
		log.Printf("Error deleting person %d: %v", personID, err)
		WriteAPIError(w, http.StatusInternalServerError, "delete_failed", "Failed to delete person")
		return
	}
	if ph.Device != nil && ph.Device.Session() != nil {
		if err := ph.Device.RemoveFromMemory(int64(personID)); err != nil {
			log.Printf("Could not remove person %d from device memory: %v", personID, err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func parsePersonID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	idStr := chi.URLParam(r, "person_id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid person ID format")
		return 0, false
	}
	return uint(id), true
}
