// Package domain contains the invitation model and its derived lifecycle.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Invitation tracks a pending invite into an organization. Lifecycle:
// pending -> accepted (AcceptedAt set, terminal), pending -> expired
// (derived from ExpiresAt, never written), pending -> revoked (row deleted).
// An invitation is never reused once accepted or revoked.
type Invitation struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"org_id"`
	Email      string       `gorm:"type:text;not null" json:"email"`
	Token      string       `gorm:"type:text;not null;uniqueIndex" json:"-"`
	Role       string       `gorm:"type:text;not null" json:"role"`
	InvitedBy  snowflake.ID `gorm:"column:invited_by;not null;index" json:"invited_by"`
	ExpiresAt  time.Time    `gorm:"column:expires_at;not null" json:"expires_at"`
	AcceptedAt *time.Time   `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "organization_invitations" }

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusExpired  Status = "EXPIRED"
)

// Status derives the lifecycle state at the given instant. Acceptance wins
// over expiry: an invitation accepted before its deadline stays accepted.
func (i *Invitation) Status(now time.Time) Status {
	if i.AcceptedAt != nil {
		return StatusAccepted
	}
	if now.After(i.ExpiresAt) {
		return StatusExpired
	}
	return StatusPending
}

// PendingInvitation is the listing read model; inviter identity is included
// for display only.
type PendingInvitation struct {
	Invitation
	InviterName  string `gorm:"column:inviter_name" json:"inviter_name"`
	InviterEmail string `gorm:"column:inviter_email" json:"inviter_email"`
}
