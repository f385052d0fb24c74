package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Memorial is the digital tribute page a QR plaque points at
type Memorial struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Slug      string         `gorm:"uniqueIndex;not null" json:"slug"` // generated once, never regenerated
	FirstName string         `gorm:"not null" json:"first_name"`
	LastName  string         `gorm:"not null" json:"last_name"`
	FullName  string         `gorm:"not null" json:"full_name"`
	BirthDate *time.Time     `json:"birth_date"`
	DeathDate *time.Time     `json:"death_date"`
	Biography string         `gorm:"type:text" json:"biography"`
	Location  string         `json:"location"`
	OwnerID   *string        `gorm:"index" json:"owner_id"` // nil until an account claims it
	QRCodeURL *string        `json:"qr_code_url"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Memorial model
func (Memorial) TableName() string {
	return "memorials"
}

// BeforeCreate assigns a random UUID when the caller did not supply one
func (m *Memorial) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// IsOwnedBy reports whether userID is the memorial's owner
func (m *Memorial) IsOwnedBy(userID string) bool {
	return m.OwnerID != nil && userID != "" && *m.OwnerID == userID
}
