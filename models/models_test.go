package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name  string
		table string
		want  string
	}{
		{"order", Order{}.TableName(), "orders"},
		{"memorial", Memorial{}.TableName(), "memorials"},
		{"photo", Photo{}.TableName(), "memorial_photos"},
		{"story", Story{}.TableName(), "memorial_stories"},
		{"subscription payment", SubscriptionPayment{}.TableName(), "subscription_payments"},
		{"webhook event", WebhookEvent{}.TableName(), "webhook_events"},
		{"referral", Referral{}.TableName(), "referrals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.table)
		})
	}
}

func TestAutoMigrateAndMemorialID(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	memorial := Memorial{Slug: "jane-doe-1", FirstName: "Jane", LastName: "Doe", FullName: "Jane Doe"}
	require.NoError(t, db.Create(&memorial).Error)
	assert.NotEqual(t, uuid.Nil, memorial.ID, "BeforeCreate should assign an id")

	var loaded Memorial
	require.NoError(t, db.First(&loaded, "id = ?", memorial.ID).Error)
	assert.Equal(t, memorial.ID, loaded.ID)
	assert.Nil(t, loaded.OwnerID)
	assert.Nil(t, loaded.QRCodeURL)
}

func TestStoryDefaultsToUnapproved(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	story := Story{MemorialID: uuid.New(), Content: "We met in 1962", AuthorName: "Sam"}
	require.NoError(t, db.Create(&story).Error)

	var loaded Story
	require.NoError(t, db.First(&loaded, story.ID).Error)
	assert.False(t, loaded.IsApproved)
}

func TestMemorialIsOwnedBy(t *testing.T) {
	owner := "auth0|owner"
	memorial := Memorial{OwnerID: &owner}

	assert.True(t, memorial.IsOwnedBy("auth0|owner"))
	assert.False(t, memorial.IsOwnedBy("auth0|other"))
	assert.False(t, memorial.IsOwnedBy(""))
	assert.False(t, (&Memorial{}).IsOwnedBy("auth0|owner"), "unclaimed memorials have no owner")
}
