package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org *Organization) error
	FindOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	SlugExists(ctx context.Context, slug string) (bool, error)

	AddMember(ctx context.Context, member *Member) error
	GetMember(ctx context.Context, orgID, userID snowflake.ID) (*Member, error)
	UpdateMemberRole(ctx context.Context, orgID, userID snowflake.ID, role string) error
	CountMembers(ctx context.Context, orgID snowflake.ID) (int64, error)
	CountMembersByRole(ctx context.Context, orgID snowflake.ID, role string) (int64, error)
	ListMembershipsByUser(ctx context.Context, userID snowflake.ID) ([]MembershipInfo, error)

	CreateSettings(ctx context.Context, settings *Settings) error
	GetSettings(ctx context.Context, orgID snowflake.ID) (*Settings, error)
}

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrSettingsNotFound     = errors.New("organization settings not found")
)
