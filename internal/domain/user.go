package domain

import "time"

const (
	RoleAdmin      = "admin"
	RoleUser       = "user"
	RoleStoreOwner = "store_owner"
)

// User is the durable identity record. A user is addressable by email and/or
// phone number; at least one must be present. PasswordHash may be empty — an
// account created through the OTP flow can exist without a password and have
// one attached later.
type User struct {
	UserID          string     `json:"id" dynamodbav:"user_id"`
	Name            string     `json:"name" dynamodbav:"name"`
	Email           *string    `json:"email" dynamodbav:"email"`
	Phone           *string    `json:"phone_number" dynamodbav:"phone"`
	PasswordHash    string     `json:"-" dynamodbav:"password_hash"`
	Role            string     `json:"role" dynamodbav:"role"`
	Verified        bool       `json:"verified" dynamodbav:"verified"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty" dynamodbav:"email_verified_at"`
	AvatarFileID    *string    `json:"avatar_file_id,omitempty" dynamodbav:"avatar_file_id"`
	Enable          bool       `json:"enable" dynamodbav:"enable"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt       time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// CanLogin reports whether the account has completed at least one
// verification channel. Unverified accounts are rejected at password login.
func (u *User) CanLogin() bool {
	return u.Verified || u.EmailVerifiedAt != nil
}

// HasPassword reports whether a password has been set on the account.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

type UpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone_number"`
}
