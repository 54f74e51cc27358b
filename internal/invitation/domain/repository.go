package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invitation *Invitation) error
	FindByToken(ctx context.Context, token string) (*Invitation, error)
	FindByID(ctx context.Context, id, orgID snowflake.ID) (*Invitation, error)
	MarkAccepted(ctx context.Context, id snowflake.ID, at time.Time) error
	Delete(ctx context.Context, id snowflake.ID) error
	ListPending(ctx context.Context, orgID snowflake.ID, now time.Time) ([]PendingInvitation, error)
}

var ErrInvitationNotFound = errors.New("invitation not found")
