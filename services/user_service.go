package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/memorialqr/memorial-qr-api/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound        = errors.New("user profile not found; create a profile first")
	ErrUserExists          = errors.New("a user with this Auth0 ID or email already exists")
	ErrEmailTaken          = errors.New("a user with this email already exists")
	ErrProfileMissingEmail = errors.New("email not provided by Auth0")
	ErrProfileMissingName  = errors.New("name not provided by Auth0")
)

// UpdateProfileInput holds the editable profile fields. Empty fields are left unchanged.
type UpdateProfileInput struct {
	Name  string `json:"name" binding:"omitempty"`
	Email string `json:"email" binding:"omitempty,email"`
}

// UserService keeps the local profile that mirrors the identity provider account
type UserService struct {
	db       *gorm.DB
	userInfo UserInfoProvider
}

// NewUserService creates the profile service
func NewUserService(db *gorm.DB, userInfo UserInfoProvider) *UserService {
	return &UserService{db: db, userInfo: userInfo}
}

// CreateFromToken fetches the caller's profile with their access token and stores it
func (s *UserService) CreateFromToken(ctx context.Context, auth0ID, accessToken string) (*models.User, error) {
	info, err := s.userInfo.GetUserInfo(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserInfoUnavailable, err)
	}

	switch {
	case strings.TrimSpace(info.Email) == "":
		return nil, ErrProfileMissingEmail
	case strings.TrimSpace(info.Name) == "":
		return nil, ErrProfileMissingName
	}

	user := &models.User{
		Auth0ID:       auth0ID,
		Name:          strings.TrimSpace(info.Name),
		Email:         strings.TrimSpace(info.Email),
		EmailVerified: info.EmailVerified,
	}
	if info.Picture != "" {
		user.Picture = &info.Picture
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Get returns the profile for auth0ID
func (s *UserService) Get(ctx context.Context, auth0ID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("auth0_id = ?", auth0ID).First(&user).Error
	if isNotFound(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

// Update applies the non-empty fields of input. A changed email is no longer verified.
func (s *UserService) Update(ctx context.Context, auth0ID string, input UpdateProfileInput) (*models.User, error) {
	user, err := s.Get(ctx, auth0ID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name := strings.TrimSpace(input.Name); name != "" {
		updates["name"] = name
	}
	if email := strings.TrimSpace(input.Email); email != "" && email != user.Email {
		updates["email"] = email
		updates["email_verified"] = false
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.Get(ctx, auth0ID)
}
