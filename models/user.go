package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the local profile mirror of an identity provider account. Memorials and
// referrals reference it by Auth0ID.
type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Auth0ID       string         `gorm:"uniqueIndex;not null" json:"auth0_id"`
	Name          string         `gorm:"not null" json:"name"`
	Email         string         `gorm:"uniqueIndex;not null" json:"email"`
	EmailVerified bool           `gorm:"not null;default:false" json:"email_verified"`
	Picture       *string        `json:"picture,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
