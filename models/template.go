package models

// Template represents a stored fingerprint template using GORM.
// It corresponds to the 'templates' table. Rows are immutable once written:
// the blob is produced by the device backend's merge operation and is opaque
// to everything in this service except that backend.
type Template struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonID   uint   `gorm:"not null;index" json:"person_id"`
	Data       []byte `gorm:"not null;type:blob" json:"-"`
	CapturedAt int64  `gorm:"not null" json:"captured_at"` // Stored as INTEGER in SQLite, Unix timestamp

	Person *Person `gorm:"foreignKey:PersonID" json:"person,omitempty"` // Belongs to Person
}

// TableName explicitly sets the table name for GORM.
func (Template) TableName() string {
	return "templates"
}
