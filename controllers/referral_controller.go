package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/services"
)

// ApplyReferralRequest represents the request body for redeeming a referral code
type ApplyReferralRequest struct {
	Code string `json:"code" binding:"required"`
}

// ReferralController serves the referral program endpoints
type ReferralController struct {
	referrals *services.ReferralService
}

// NewReferralController creates a referral controller
func NewReferralController(referrals *services.ReferralService) *ReferralController {
	return &ReferralController{referrals: referrals}
}

// GetMyCode handles GET /api/v1/referrals/code
func (rc *ReferralController) GetMyCode(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	code, err := rc.referrals.GetOrCreateCode(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "REFERRAL_ERROR", "Failed to get referral code")
		return
	}

	respondData(c, http.StatusOK, code)
}

// ApplyCode handles POST /api/v1/referrals/apply
func (rc *ReferralController) ApplyCode(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req ApplyReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := rc.referrals.Apply(c.Request.Context(), userID, req.Code)
	if err != nil {
		respondServiceError(c, err, "REFERRAL_ERROR", "Failed to apply referral code")
		return
	}

	respondData(c, http.StatusCreated, result)
}

// ListMyRewards handles GET /api/v1/referrals/rewards
func (rc *ReferralController) ListMyRewards(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	rewards, err := rc.referrals.ListRewards(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to fetch rewards")
		return
	}

	respondData(c, http.StatusOK, rewards)
}
