// Package domain contains the append-only audit log model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Entry is one immutable audit record. Rows are only ever inserted.
type Entry struct {
	ID        snowflake.ID      `gorm:"primaryKey"`
	OrgID     *snowflake.ID     `gorm:"column:org_id;index"`
	UserID    *snowflake.ID     `gorm:"column:user_id;index"`
	Action    string            `gorm:"type:text;not null"`
	Resource  string            `gorm:"type:text;not null"`
	Metadata  datatypes.JSONMap `gorm:"not null;default:'{}'"`
	RequestID *string           `gorm:"column:request_id;type:text"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "audit_logs" }
