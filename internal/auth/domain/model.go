// Package domain contains core types for the identity service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User represents a system user account. PasswordHash is nil for SSO-only
// accounts; MFASecret is set during enrollment and while MFA is enabled.
type User struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	ExternalID    string       `gorm:"column:external_id;type:text;not null;uniqueIndex"`
	Email         string       `gorm:"type:text;not null;uniqueIndex"`
	Name          string       `gorm:"type:text"`
	PasswordHash  *string      `gorm:"type:text"`
	EmailVerified bool         `gorm:"column:email_verified;not null;default:false"`
	MFAEnabled    bool         `gorm:"column:mfa_enabled;not null;default:false"`
	MFASecret     *string      `gorm:"column:mfa_secret;type:text"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session represents a persisted login session. The raw token is never
// stored, only its SHA-256 hash.
type Session struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index"`
	TokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }
