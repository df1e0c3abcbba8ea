package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/ShafiqSadat/ZKFingerprint/models"
	"gorm.io/gorm"
)

// TemplateRepository handles database operations for fingerprint templates.
// Rows are insert-only; a template never changes after it is written.
type TemplateRepository struct {
	DB *gorm.DB
}

// NewTemplateRepository creates a new instance of TemplateRepository
func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{DB: db}
}

// Save inserts a new template record for the given person. The write is
// durable when Save returns; there is no write-behind.
func (r *TemplateRepository) Save(personID uint, data []byte) (*models.Template, error) {
	if len(data) == 0 {
		return nil, errors.New("refusing to save empty template data")
	}
	template := models.Template{
		PersonID:   personID,
		Data:       data,
		CapturedAt: time.Now().Unix(),
	}
	if err := r.DB.Create(&template).Error; err != nil {
		return nil, fmt.Errorf("failed to save template for person ID %d: %w", personID, err)
	}
	return &template, nil
}

// FindByPerson retrieves a person's templates in insertion order
func (r *TemplateRepository) FindByPerson(personID uint) ([]models.Template, error) {
	var templates []models.Template
	err := r.DB.Where("person_id = ?", personID).Order("id ASC").Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find templates for person ID %d: %w", personID, err)
	}
	return templates, nil
}

// ListAll returns every template paired with its owner, in template
// insertion order. Each call is a fresh query, so callers get a finite,
// restartable snapshot rather than a live cursor.
func (r *TemplateRepository) ListAll() ([]StoredTemplate, error) {
	var templates []models.Template
	err := r.DB.Preload("Person").Order("id ASC").Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	snapshot := make([]StoredTemplate, 0, len(templates))
	for _, t := range templates {
		if t.Person == nil {
			// FK enforcement makes this unreachable; guard anyway
			return nil, fmt.Errorf("template %d has no owning person", t.ID)
		}
		pair := StoredTemplate{Person: *t.Person, Template: t}
		pair.Template.Person = nil
		snapshot = append(snapshot, pair)
	}
	return snapshot, nil
}
