package models

// Person represents an enrolled individual using GORM.
// It corresponds to the 'people' table. A row is created on a person's first
// successful enrollment and is removed only by explicit deletion.
type Person struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	CreatedAt int64  `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp

	// Relationships
	// omitempty will hide these if they are not preloaded or are empty
	Templates []Template `gorm:"foreignKey:PersonID;constraint:OnDelete:CASCADE" json:"templates,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Person) TableName() string {
	return "people"
}
