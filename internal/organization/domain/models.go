// Package domain contains persistence models for organizations, memberships
// and per-organization settings.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant. Organizations are only created by signup.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Member represents membership of a user in an organization.
type Member struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_org_user,priority:1" json:"org_id"`
	UserID       snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_org_user,priority:2" json:"user_id"`
	Role         string        `gorm:"type:text;not null" json:"role"`
	DepartmentID *snowflake.ID `gorm:"column:department_id" json:"department_id,omitempty"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "organization_members" }

// Settings stores join-policy defaults for an organization, one row per org.
// An empty AllowedDomains list means unrestricted; a nil SeatLimit means
// unlimited.
type Settings struct {
	OrgID          snowflake.ID               `gorm:"primaryKey" json:"org_id"`
	AllowedDomains datatypes.JSONSlice[string] `gorm:"column:allowed_domains" json:"allowed_domains"`
	SeatLimit      *int                       `gorm:"column:seat_limit" json:"seat_limit"`
	EnforceMFA     bool                       `gorm:"column:enforce_mfa;not null;default:false" json:"enforce_mfa"`
	CreatedAt      time.Time                  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time                  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Settings) TableName() string { return "organization_settings" }

// MembershipInfo is a read model joining a user's membership with its org.
type MembershipInfo struct {
	OrgID snowflake.ID `gorm:"column:org_id"`
	Name  string       `gorm:"column:name"`
	Slug  string       `gorm:"column:slug"`
	Role  string       `gorm:"column:role"`
}
