package domain

import (
	"context"
	"errors"
	"time"
)

type RegisterRequest struct {
	Email       string `json:"email"`
	UserName    string `json:"username"`
	DisplayName string `json:"display_name"`
	AccountType string `json:"account_type"`
}

type Response struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	UserName    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	AccountType AccountType `json:"account_type"`
	CreatedAt   time.Time   `json:"created_at"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (Response, error)
	GetByID(ctx context.Context, id string) (Response, error)
	// EnsureCustomerRef returns the stored gateway customer id, creating
	// one through the gateway when missing. Safe to call repeatedly.
	EnsureCustomerRef(ctx context.Context, id string) (string, error)
}

var (
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidUserName    = errors.New("invalid_username")
	ErrInvalidAccountType = errors.New("invalid_account_type")
	ErrInvalidUser        = errors.New("invalid_user")
	ErrDuplicateAccount   = errors.New("duplicate_account")
	ErrUserNotFound       = errors.New("user_not_found")
)
