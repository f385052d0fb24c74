package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/middleware"
	"github.com/memorialqr/memorial-qr-api/services"
)

// UserController serves the local profile that mirrors the Auth0 account
type UserController struct {
	users *services.UserService
}

// NewUserController creates a user controller
func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

// CreateUser handles POST /api/v1/users - creates the caller's profile from Auth0 userinfo
func (uc *UserController) CreateUser(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}

	// /userinfo is called with the caller's own access token
	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found")
		return
	}

	user, err := uc.users.CreateFromToken(c.Request.Context(), auth0ID, accessToken)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to create user")
		return
	}

	respondData(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me
func (uc *UserController) GetMyProfile(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}

	user, err := uc.users.Get(c.Request.Context(), auth0ID)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to fetch user profile")
		return
	}

	respondData(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me
func (uc *UserController) UpdateMyProfile(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.UpdateProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := uc.users.Update(c.Request.Context(), auth0ID, req)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to update user profile")
		return
	}

	respondData(c, http.StatusOK, user)
}
