package models

import (
	"fmt"

	"gorm.io/gorm"
)

// All returns every model managed by AutoMigrate
func All() []interface{} {
	return []interface{}{
		&User{},
		&Order{},
		&SubscriptionPayment{},
		&QRCode{},
		&WebhookEvent{},
		&Memorial{},
		&Photo{},
		&Video{},
		&Music{},
		&Story{},
		&Message{},
		&Milestone{},
		&FamilyMember{},
		&ReferralCode{},
		&Referral{},
		&ReferralReward{},
	}
}

// AutoMigrate creates or updates the schema for every model
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
