package repository

import (
	"github.com/ShafiqSadat/ZKFingerprint/models"
)

// StoredTemplate pairs a template with its owning person. Sync passes and
// the local identification fallback consume these snapshots.
type StoredTemplate struct {
	Person   models.Person
	Template models.Template
}

// PersonRepositoryInterface defines the methods for person data operations
type PersonRepositoryInterface interface {
	Create(person *models.Person) error
	GetByID(id uint) (*models.Person, error)
	ListAll() ([]models.Person, error)
	// Delete removes the person and cascades to every owned template in one
	// transaction.
	Delete(id uint) error
}

// TemplateRepositoryInterface defines the methods for template data operations
type TemplateRepositoryInterface interface {
	Save(personID uint, data []byte) (*models.Template, error)
	FindByPerson(personID uint) ([]models.Template, error)
	// ListAll returns a fresh snapshot of every template with its owner, in
	// template insertion order.
	ListAll() ([]StoredTemplate, error)
}
