package controllers

import (
	"net/http"
	"testing"

	"github.com/memorialqr/memorial-qr-api/models"
	"github.com/memorialqr/memorial-qr-api/services"
	"github.com/memorialqr/memorial-qr-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralFlow(t *testing.T) {
	router, svc := setupRouter(t)
	require.NoError(t, svc.DB.Create(&models.User{Auth0ID: ownerID, Name: "Owner", Email: "owner@example.com"}).Error)
	require.NoError(t, svc.DB.Create(&models.User{Auth0ID: visitorID, Name: "Visitor", Email: "visitor@example.com"}).Error)

	w := perform(router, testutil.JSONRequest(t, http.MethodGet, "/api/v1/referrals/code", nil, ownerID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	code := dataMap(t, testutil.DecodeResponse(t, w))["code"].(string)
	assert.Len(t, code, 8)

	w = perform(router, testutil.JSONRequest(t, http.MethodGet, "/api/v1/referrals/code", nil, ownerID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, code, dataMap(t, testutil.DecodeResponse(t, w))["code"], "the code is stable")

	apply := func(userID, code string) (int, map[string]interface{}) {
		w := perform(router, testutil.JSONRequest(t, http.MethodPost, "/api/v1/referrals/apply", map[string]interface{}{"code": code}, userID))
		return w.Code, testutil.DecodeResponse(t, w)
	}

	status, response := apply(ownerID, code)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "SELF_REFERRAL", testutil.ErrorCode(response))

	status, response = apply(visitorID, "NOPE1234")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REFERRAL_CODE", testutil.ErrorCode(response))

	status, response = apply(visitorID, code)
	require.Equal(t, http.StatusCreated, status, response)
	data := dataMap(t, response)
	referrer := data["referrer_reward"].(map[string]interface{})
	referred := data["referred_reward"].(map[string]interface{})
	assert.Equal(t, ownerID, referrer["user_id"])
	assert.Equal(t, float64(1000), referrer["amount_cents"])
	assert.Equal(t, visitorID, referred["user_id"])
	assert.Equal(t, float64(500), referred["amount_cents"])
	assert.Len(t, svc.Notifier.ByTag(services.TagReferralReward), 2)

	status, response = apply(visitorID, code)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "REFERRAL_ALREADY_USED", testutil.ErrorCode(response))

	w = perform(router, testutil.JSONRequest(t, http.MethodGet, "/api/v1/referrals/rewards", nil, ownerID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.DecodeResponse(t, w)["data"], 1)
}

func TestApplyReferralRequiresCode(t *testing.T) {
	router, _ := setupRouter(t)

	w := perform(router, testutil.JSONRequest(t, http.MethodPost, "/api/v1/referrals/apply", map[string]interface{}{}, visitorID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(testutil.DecodeResponse(t, w)))

	w = perform(router, testutil.JSONRequest(t, http.MethodGet, "/api/v1/referrals/rewards", nil, ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
