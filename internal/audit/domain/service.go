package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Record describes one event to append.
type Record struct {
	OrgID    *snowflake.ID
	UserID   *snowflake.ID
	Action   string
	Resource string
	Metadata map[string]any
}

type Service interface {
	// Log appends an entry using the service's own connection.
	Log(ctx context.Context, rec Record) error
	// LogTx appends an entry inside the caller's transaction, so the audit
	// write commits or rolls back with the flow it describes.
	LogTx(ctx context.Context, tx *gorm.DB, rec Record) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
}

var ErrInvalidAction = errors.New("invalid audit action")
