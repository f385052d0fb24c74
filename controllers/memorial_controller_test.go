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

func TestCreateMemorial(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		requestBody    map[string]interface{}
		expectedStatus int
		expectedError  string
	}{
		{
			name:   "Successfully create memorial",
			userID: ownerID,
			requestBody: map[string]interface{}{
				"first_name": "Mary",
				"last_name":  "Smith",
				"biography":  "Beloved grandmother",
				"birth_date": "1940-03-02T00:00:00Z",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Fail with missing last name",
			userID:         ownerID,
			requestBody:    map[string]interface{}{"first_name": "Mary"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Fail without token",
			requestBody:    map[string]interface{}{"first_name": "Mary", "last_name": "Smith"},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "INVALID_TOKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := setupRouter(t)

			w := perform(router, testutil.JSONRequest(t, http.MethodPost, "/api/v1/memorials", tt.requestBody, tt.userID))
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			response := testutil.DecodeResponse(t, w)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, testutil.ErrorCode(response))
				return
			}

			data := dataMap(t, response)
			assert.Equal(t, "Mary Smith", data["full_name"])
			assert.Equal(t, ownerID, data["owner_id"])
			assert.Regexp(t, `^mary-smith-[a-z0-9]+$`, data["slug"])
			assert.NotNil(t, data["qr_code_url"])
			assert.Len(t, svc.Blobs.Files(), 1, "qr code image is stored")
		})
	}
}

func TestListMyMemorials(t *testing.T) {
	router, svc := setupRouter(t)
	createOwnedMemorial(t, svc, ownerID)
	createOwnedMemorial(t, svc, ownerID)
	createOwnedMemorial(t, svc, visitorID)

	w := perform(router, testutil.JSONRequest(t, http.MethodGet, "/api/v1/memorials", nil, ownerID))
	require.Equal(t, http.StatusOK, w.Code)

	data := testutil.DecodeResponse(t, w)["data"].([]interface{})
	assert.Len(t, data, 2)
}

func TestGetMemorial(t *testing.T) {
	router, svc := setupRouter(t)
	memorial := createOwnedMemorial(t, svc, ownerID)

	for _, identifier := range []string{memorial.Slug, memorial.ID.String()} {
		w := perform(router, testutil.JSONRequest(t, http.MethodGet, "/api/v1/memorials/"+identifier, nil, ""))
		require.Equal(t, http.StatusOK, w.Code, identifier)

		data := dataMap(t, testutil.DecodeResponse(t, w))
		page := data["memorial"].(map[string]interface{})
		assert.Equal(t, memorial.ID.String(), page["id"])
		assert.Contains(t, data, "photos")
		assert.Contains(t, data, "counts")
	}

	w := perform(router, testutil.JSONRequest(t, http.MethodGet, "/api/v1/memorials/nobody-here", nil, ""))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "MEMORIAL_NOT_FOUND", testutil.ErrorCode(testutil.DecodeResponse(t, w)))
}

func TestDashboardShowsUnapprovedStories(t *testing.T) {
	router, svc := setupRouter(t)
	memorial := createOwnedMemorial(t, svc, ownerID)

	_, err := svc.Content.AddStory(t.Context(), memorial.Slug, services.StoryInput{
		Title:      "Summers at the lake",
		Content:    "She taught every grandchild to swim.",
		AuthorName: "Tom",
	})
	require.NoError(t, err)

	w := perform(router, testutil.JSONRequest(t, http.MethodGet, "/api/v1/memorials/"+memorial.Slug, nil, ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, dataMap(t, testutil.DecodeResponse(t, w))["stories"])

	w = perform(router, testutil.JSONRequest(t, http.MethodGet, "/api/v1/memorials/"+memorial.Slug+"/dashboard", nil, ownerID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataMap(t, testutil.DecodeResponse(t, w))["stories"], 1)

	w = perform(router, testutil.JSONRequest(t, http.MethodGet, "/api/v1/memorials/"+memorial.Slug+"/dashboard", nil, visitorID))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", testutil.ErrorCode(testutil.DecodeResponse(t, w)))
}

func TestUpdateMemorial(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		requestBody    map[string]interface{}
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Owner renames",
			userID:         ownerID,
			requestBody:    map[string]interface{}{"first_name": "Maria", "location": "Portland, OR"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Visitor cannot edit",
			userID:         visitorID,
			requestBody:    map[string]interface{}{"first_name": "Maria"},
			expectedStatus: http.StatusForbidden,
			expectedError:  "FORBIDDEN",
		},
		{
			name:           "Blank name rejected",
			userID:         ownerID,
			requestBody:    map[string]interface{}{"last_name": "  "},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := setupRouter(t)
			memorial := createOwnedMemorial(t, svc, ownerID)

			w := perform(router, testutil.JSONRequest(t, http.MethodPut, "/api/v1/memorials/"+memorial.Slug, tt.requestBody, tt.userID))
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			response := testutil.DecodeResponse(t, w)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, testutil.ErrorCode(response))
				return
			}

			data := dataMap(t, response)
			assert.Equal(t, "Maria Smith", data["full_name"])
			assert.Equal(t, "Portland, OR", data["location"])
			assert.Equal(t, memorial.Slug, data["slug"], "slug never changes")
		})
	}
}

func TestDeleteMemorial(t *testing.T) {
	router, svc := setupRouter(t)
	memorial := createOwnedMemorial(t, svc, ownerID)

	message, err := svc.Content.AddMessage(t.Context(), memorial.Slug, services.MessageInput{AuthorName: "Ann", Content: "Rest easy"})
	require.NoError(t, err)

	w := perform(router, testutil.JSONRequest(t, http.MethodDelete, "/api/v1/memorials/"+memorial.Slug, nil, visitorID))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(router, testutil.JSONRequest(t, http.MethodDelete, "/api/v1/memorials/"+memorial.Slug, nil, ownerID))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "MEMORIAL_HAS_CONTENT", testutil.ErrorCode(testutil.DecodeResponse(t, w)))

	require.NoError(t, svc.Content.Delete(t.Context(), memorial.Slug, services.ContentMessages, message.ID, ownerID))

	w = perform(router, testutil.JSONRequest(t, http.MethodDelete, "/api/v1/memorials/"+memorial.Slug, nil, ownerID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Memorial deleted", testutil.DecodeResponse(t, w)["message"])
	assert.Empty(t, svc.Blobs.Files(), "qr code image is removed with the memorial")

	_, err = svc.Memorials.Resolve(t.Context(), memorial.Slug)
	assert.ErrorIs(t, err, services.ErrMemorialNotFound)
}

func TestClaimMemorial(t *testing.T) {
	router, svc := setupRouter(t)

	unowned, err := svc.Memorials.CreateMemorial(t.Context(), services.CreateMemorialInput{FirstName: "Mary", LastName: "Smith"})
	require.NoError(t, err)
	require.Nil(t, unowned.OwnerID)

	claim := func(userID string) (int, map[string]interface{}) {
		w := perform(router, testutil.JSONRequest(t, http.MethodPost, "/api/v1/memorials/"+unowned.Slug+"/claim", nil, userID))
		return w.Code, testutil.DecodeResponse(t, w)
	}

	status, response := claim(ownerID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ownerID, dataMap(t, response)["owner_id"])

	status, _ = claim(ownerID)
	assert.Equal(t, http.StatusOK, status, "claiming again is idempotent for the owner")

	status, response = claim(visitorID)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "MEMORIAL_ALREADY_OWNED", testutil.ErrorCode(response))
}

func TestRegenerateQRCode(t *testing.T) {
	router, svc := setupRouter(t)
	memorial := createOwnedMemorial(t, svc, ownerID)

	w := perform(router, testutil.JSONRequest(t, http.MethodPost, "/api/v1/memorials/"+memorial.Slug+"/qrcode", nil, ownerID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, dataMap(t, testutil.DecodeResponse(t, w))["qr_code_url"])

	w = perform(router, testutil.JSONRequest(t, http.MethodPost, "/api/v1/memorials/"+memorial.Slug+"/qrcode", nil, visitorID))
	assert.Equal(t, http.StatusForbidden, w.Code)

	var stored models.Memorial
	require.NoError(t, svc.DB.First(&stored, "id = ?", memorial.ID).Error)
	assert.NotNil(t, stored.QRCodeURL)
}
