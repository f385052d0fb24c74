package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/memorialqr/memorial-qr-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Referral code format. The alphabet leaves out O, 0, I and 1 so codes read back unambiguously.
const (
	referralCodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeLength      = 8
	maxReferralCodeAttempts = 10
)

// Reward terms granted when a referral is applied
const (
	ReferrerCreditCents   = 1000
	ReferrerCreditDays    = 90
	ReferredDiscountCents = 500
	ReferredDiscountDays  = 30
)

// ApplyReferralResult is the referral and the two rewards it created
type ApplyReferralResult struct {
	Referral       models.Referral       `json:"referral"`
	ReferrerReward models.ReferralReward `json:"referrer_reward"`
	ReferredReward models.ReferralReward `json:"referred_reward"`
}

// ReferralService issues referral codes and applies them
type ReferralService struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
	newCode  func() (string, error)
}

// NewReferralService creates a referral service
func NewReferralService(db *gorm.DB, notifier Notifier) *ReferralService {
	return &ReferralService{
		db:       db,
		notifier: notifier,
		now:      time.Now,
		newCode: func() (string, error) {
			return randomCode(referralCodeAlphabet, referralCodeLength)
		},
	}
}

// GetOrCreateCode returns the user's referral code, generating one on first use
func (s *ReferralService) GetOrCreateCode(ctx context.Context, userID string) (*models.ReferralCode, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &ValidationError{Field: "user_id", Message: "is required"}
	}

	db := s.db.WithContext(ctx)
	existing, err := findReferralCodeByUser(db, userID)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	for attempt := 1; attempt <= maxReferralCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}

		referralCode := &models.ReferralCode{UserID: userID, Code: code, IsActive: true}
		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(referralCode)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to save referral code: %w", result.Error)
		}
		if result.RowsAffected == 1 {
			log.Printf("Issued referral code %s to user %s", code, userID)
			return referralCode, nil
		}

		// Either the code collided or a concurrent request already issued this user's code
		if existing, err := findReferralCodeByUser(db, userID); err == nil {
			return existing, nil
		}
	}

	return nil, ErrCodeGenerationFailed
}

func findReferralCodeByUser(db *gorm.DB, userID string) (*models.ReferralCode, error) {
	var code models.ReferralCode
	if err := db.Where("user_id = ?", userID).First(&code).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

// Apply redeems code for userID. The referral row and both rewards are written in one
// transaction; a user can be referred only once.
func (s *ReferralService) Apply(ctx context.Context, userID, code string) (*ApplyReferralResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if strings.TrimSpace(userID) == "" {
		return nil, &ValidationError{Field: "user_id", Message: "is required"}
	}
	if code == "" {
		return nil, &ValidationError{Field: "code", Message: "is required"}
	}

	now := s.now()
	var result ApplyReferralResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var referralCode models.ReferralCode
		if err := tx.Where("code = ? AND is_active = ?", code, true).First(&referralCode).Error; err != nil {
			if isNotFound(err) {
				return ErrInvalidReferralCode
			}
			return err
		}
		if referralCode.UserID == userID {
			return ErrSelfReferral
		}

		result.Referral = models.Referral{
			ReferrerID:     referralCode.UserID,
			ReferredUserID: userID,
			Code:           code,
			Status:         "completed",
		}
		if err := tx.Create(&result.Referral).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrReferralAlreadyUsed
			}
			return fmt.Errorf("failed to record referral: %w", err)
		}

		result.ReferrerReward = models.ReferralReward{
			UserID:      referralCode.UserID,
			ReferralID:  result.Referral.ID,
			RewardType:  models.RewardTypeReferrerCredit,
			AmountCents: ReferrerCreditCents,
			ExpiresAt:   now.AddDate(0, 0, ReferrerCreditDays),
		}
		result.ReferredReward = models.ReferralReward{
			UserID:      userID,
			ReferralID:  result.Referral.ID,
			RewardType:  models.RewardTypeReferredDiscount,
			AmountCents: ReferredDiscountCents,
			ExpiresAt:   now.AddDate(0, 0, ReferredDiscountDays),
		}
		if err := tx.Create(&result.ReferrerReward).Error; err != nil {
			return fmt.Errorf("failed to record referrer reward: %w", err)
		}
		if err := tx.Create(&result.ReferredReward).Error; err != nil {
			return fmt.Errorf("failed to record referred reward: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("User %s applied referral code %s from %s", userID, code, result.Referral.ReferrerID)
	s.notifyRewards(ctx, &result)
	return &result, nil
}

// notifyRewards emails both sides of a referral when their profiles are known
func (s *ReferralService) notifyRewards(ctx context.Context, result *ApplyReferralResult) {
	for _, reward := range []*models.ReferralReward{&result.ReferrerReward, &result.ReferredReward} {
		var user models.User
		if err := s.db.WithContext(ctx).Where("auth0_id = ?", reward.UserID).First(&user).Error; err != nil {
			if !isNotFound(err) {
				log.Printf("Failed to load user %s for referral email: %v", reward.UserID, err)
			}
			continue
		}
		s.notifier.Enqueue(ReferralRewardEmail(user.Email, reward))
	}
}

// ListRewards returns a user's rewards, newest first
func (s *ReferralService) ListRewards(ctx context.Context, userID string) ([]models.ReferralReward, error) {
	rewards := []models.ReferralReward{}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}
