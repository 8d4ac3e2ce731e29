// Package domain contains persistence models for platform accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AccountType distinguishes creators from subscribers.
type AccountType string

const (
	AccountTypeCreator    AccountType = "creator"
	AccountTypeSubscriber AccountType = "subscriber"
)

// User is a registered platform account. Authentication is handled by
// the fronting identity layer; this row only carries profile and
// billing references.
type User struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	Email            string       `gorm:"type:text;not null;uniqueIndex"`
	UserName         string       `gorm:"type:text;not null;uniqueIndex"`
	DisplayName      string       `gorm:"type:text;not null"`
	AccountType      AccountType  `gorm:"type:text;not null"`
	StripeCustomerID *string      `gorm:"type:text;uniqueIndex"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
