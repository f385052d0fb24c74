package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/middleware"
	"github.com/memorialqr/memorial-qr-api/services"
	"github.com/memorialqr/memorial-qr-api/utils"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// serviceErrors maps expected service failures to a status and error code
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{services.ErrMemorialNotFound, http.StatusNotFound, "MEMORIAL_NOT_FOUND"},
	{services.ErrContentNotFound, http.StatusNotFound, "CONTENT_NOT_FOUND"},
	{services.ErrNotMemorialOwner, http.StatusForbidden, "FORBIDDEN"},
	{services.ErrMemorialAlreadyOwned, http.StatusConflict, "MEMORIAL_ALREADY_OWNED"},
	{services.ErrMemorialHasContent, http.StatusConflict, "MEMORIAL_HAS_CONTENT"},
	{services.ErrOrderAlreadyLinked, http.StatusConflict, "ORDER_ALREADY_LINKED"},
	{services.ErrContentLimitReached, http.StatusConflict, "CONTENT_LIMIT_REACHED"},
	{services.ErrUnknownPackage, http.StatusBadRequest, "UNKNOWN_PACKAGE"},
	{services.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS"},
	{services.ErrPaymentDeclined, http.StatusPaymentRequired, "PAYMENT_DECLINED"},
	{services.ErrProviderNotConfigured, http.StatusServiceUnavailable, "PROVIDER_NOT_CONFIGURED"},
	{services.ErrInvalidReferralCode, http.StatusBadRequest, "INVALID_REFERRAL_CODE"},
	{services.ErrSelfReferral, http.StatusBadRequest, "SELF_REFERRAL"},
	{services.ErrReferralAlreadyUsed, http.StatusConflict, "REFERRAL_ALREADY_USED"},
	{services.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{services.ErrUserExists, http.StatusConflict, "USER_EXISTS"},
	{services.ErrEmailTaken, http.StatusConflict, "EMAIL_EXISTS"},
	{services.ErrProfileMissingEmail, http.StatusBadRequest, "MISSING_EMAIL"},
	{services.ErrProfileMissingName, http.StatusBadRequest, "MISSING_NAME"},
	{services.ErrUserInfoUnauthorized, http.StatusUnauthorized, "AUTH0_UNAUTHORIZED"},
	{services.ErrUserInfoUnavailable, http.StatusInternalServerError, "AUTH0_ERROR"},
}

// respondServiceError writes the envelope for err. Unexpected errors are logged and
// reported as a 500 with fallbackCode.
func respondServiceError(c *gin.Context, err error, fallbackCode, fallbackMessage string) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error())
		return
	}

	var uploadErr *utils.FileUploadError
	if errors.As(err, &uploadErr) {
		respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
		return
	}

	for _, mapping := range serviceErrors {
		if errors.Is(err, mapping.err) {
			respondError(c, mapping.status, mapping.code, mapping.err.Error())
			return
		}
	}

	log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	respondError(c, http.StatusInternalServerError, fallbackCode, fallbackMessage)
}

// requireUserID returns the authenticated caller or writes a 401
func requireUserID(c *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return "", false
	}
	return userID, true
}

// uintParam parses a numeric path parameter or writes a 400
func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
