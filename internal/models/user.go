package models

import "time"

// UserType is the account kind, used as the role in access checks.
type UserType string

const (
	UserTypeClient UserType = "client"
	UserTypeLawyer UserType = "lawyer"
	UserTypeAdmin  UserType = "admin"
)

// UserStatus gates login; lawyers stay pending until verified.
type UserStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// User represents a platform account.
type User struct {
	ID                 int64      `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	Password           string     `json:"-"`
	FullName           string     `json:"full_name"`
	UserType           UserType   `json:"user_type"`
	Status             UserStatus `json:"status"`
	LanguagePreference string     `json:"language_preference"`
	AverageRating      float64    `json:"average_rating"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID                 int64      `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	FullName           string     `json:"full_name"`
	UserType           UserType   `json:"user_type"`
	Status             UserStatus `json:"status"`
	LanguagePreference string     `json:"language_preference"`
	AverageRating      float64    `json:"average_rating,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`

	// Filled for lawyers in admin listings.
	Specialization     string `json:"specialization,omitempty"`
	VerificationStatus string `json:"verification_status,omitempty"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		FullName:           u.FullName,
		UserType:           u.UserType,
		Status:             u.Status,
		LanguagePreference: u.LanguagePreference,
		AverageRating:      u.AverageRating,
		CreatedAt:          u.CreatedAt,
	}
}
