package models

import (
	"time"

	"github.com/google/uuid"
)

// Photo is an image uploaded to a memorial
type Photo struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MemorialID uuid.UUID `gorm:"type:uuid;not null;index" json:"memorial_id"`
	URL        string    `gorm:"not null" json:"url"`
	Caption    string    `json:"caption"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for the Photo model
func (Photo) TableName() string {
	return "memorial_photos"
}

// Video is a video clip uploaded to a memorial
type Video struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MemorialID uuid.UUID `gorm:"type:uuid;not null;index" json:"memorial_id"`
	URL        string    `gorm:"not null" json:"url"`
	Title      string    `json:"title"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for the Video model
func (Video) TableName() string {
	return "memorial_videos"
}

// Music is an audio track attached to a memorial
type Music struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MemorialID uuid.UUID `gorm:"type:uuid;not null;index" json:"memorial_id"`
	URL        string    `gorm:"not null" json:"url"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for the Music model
func (Music) TableName() string {
	return "memorial_music"
}

// Story is a visitor-submitted story, hidden publicly until the owner approves it
type Story struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MemorialID uuid.UUID `gorm:"type:uuid;not null;index" json:"memorial_id"`
	Title      string    `json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	AuthorName string    `gorm:"not null" json:"author_name"`
	IsApproved bool      `gorm:"not null;default:false" json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for the Story model
func (Story) TableName() string {
	return "memorial_stories"
}

// Message is a short condolence left on a memorial
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MemorialID uuid.UUID `gorm:"type:uuid;not null;index" json:"memorial_id"`
	AuthorName string    `gorm:"not null" json:"author_name"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "memorial_messages"
}

// Milestone is a dated life event on the memorial timeline
type Milestone struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	MemorialID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"memorial_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Date        *time.Time `json:"date"`
	AuthorName  string     `json:"author_name"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName specifies the table name for the Milestone model
func (Milestone) TableName() string {
	return "memorial_milestones"
}

// FamilyMember lists a relative of the person being remembered
type FamilyMember struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	MemorialID   uuid.UUID `gorm:"type:uuid;not null;index" json:"memorial_id"`
	Name         string    `gorm:"not null" json:"name"`
	Relationship string    `gorm:"not null" json:"relationship"`
	AuthorName   string    `json:"author_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for the FamilyMember model
func (FamilyMember) TableName() string {
	return "memorial_family_members"
}

// MemorialContent is the set of child rows that belong to a single memorial
type MemorialContent interface {
	Photo | Video | Music | Story | Message | Milestone | FamilyMember
}
