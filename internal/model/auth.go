package model

import (
	"errors"
)

// AuthRequest types
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=8"`
}

// OIDCLoginRequest starts a federated login. Role is a hint only.
type OIDCLoginRequest struct {
	Role       string `form:"role" binding:"omitempty,roletype"`
	HospitalID int64  `form:"hospital_id" binding:"omitempty,gt=0"`
}

// OIDCCallbackRequest is what the identity provider redirects back with.
type OIDCCallbackRequest struct {
	Code  string `form:"code" binding:"required"`
	State string `form:"state" binding:"required"`
}

// LoginResponse tells the client where the principal lands.
type LoginResponse struct {
	User     *User  `json:"user"`
	Redirect string `json:"redirect"`
}

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is inactive")
)
