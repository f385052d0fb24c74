package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrMemorialNotFound     = errors.New("memorial not found")
	ErrContentNotFound      = errors.New("content not found")
	ErrNotMemorialOwner     = errors.New("only the memorial owner can do this")
	ErrMemorialAlreadyOwned = errors.New("memorial already has an owner")
	ErrMemorialHasContent   = errors.New("memorial still has content; delete it first")
	ErrOrderAlreadyLinked   = errors.New("order is already linked to a memorial")
	ErrContentLimitReached  = errors.New("the memorial's package does not allow more of this content")

	ErrUnknownPackage        = errors.New("unknown package")
	ErrPaymentDeclined       = errors.New("payment was declined")
	ErrProviderNotConfigured = errors.New("payment provider is not configured")

	ErrWebhookSecretMissing = errors.New("webhook signing secret is not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrDuplicateEvent       = errors.New("webhook event already processed")

	ErrSubscriptionOrderPending = errors.New("no order is linked to the subscription yet")

	ErrInvalidReferralCode  = errors.New("referral code is invalid or inactive")
	ErrSelfReferral         = errors.New("you cannot use your own referral code")
	ErrReferralAlreadyUsed  = errors.New("this account has already used a referral code")
	ErrCodeGenerationFailed = errors.New("could not generate a unique referral code")

	ErrInvalidStatus = errors.New("invalid status")
)

// ValidationError reports a request field that failed validation before any external call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// isDuplicateKeyError detects unique constraint violations. TranslateError maps them to
// gorm.ErrDuplicatedKey; the message check covers drivers that do not translate.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate") ||
		strings.Contains(errMsg, "unique constraint") ||
		strings.Contains(errMsg, "unique")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
