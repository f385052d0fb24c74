package models

import "time"

// ReferralCode is the single shareable code owned by a user
type ReferralCode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"uniqueIndex;not null" json:"user_id"`
	Code      string    `gorm:"uniqueIndex;size:8;not null" json:"code"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the ReferralCode model
func (ReferralCode) TableName() string {
	return "referral_codes"
}

// Referral links a referrer to the user they referred. A user can only be referred once.
type Referral struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ReferrerID     string    `gorm:"not null;index" json:"referrer_id"`
	ReferredUserID string    `gorm:"uniqueIndex;not null" json:"referred_user_id"`
	Code           string    `gorm:"not null" json:"code"`
	Status         string    `gorm:"not null;default:'completed'" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for the Referral model
func (Referral) TableName() string {
	return "referrals"
}

// Reward types
const (
	RewardTypeReferrerCredit   = "referrer_credit"
	RewardTypeReferredDiscount = "referred_discount"
)

// ReferralReward is granted to each side of a referral and expires independently
type ReferralReward struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      string     `gorm:"not null;index" json:"user_id"`
	ReferralID  uint       `gorm:"not null;index" json:"referral_id"`
	RewardType  string     `gorm:"not null" json:"reward_type"`
	AmountCents int64      `gorm:"not null;check:amount_cents >= 0" json:"amount_cents"`
	ExpiresAt   time.Time  `gorm:"not null" json:"expires_at"`
	RedeemedAt  *time.Time `json:"redeemed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName specifies the table name for the ReferralReward model
func (ReferralReward) TableName() string {
	return "referral_rewards"
}
