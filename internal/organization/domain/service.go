package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/rbac"
)

// Service exposes membership lookups and the join-policy checks consulted
// before an invitation is issued.
type Service interface {
	// GetUserRole returns nil for a non-member; absence is a valid outcome,
	// not an error.
	GetUserRole(ctx context.Context, userID, orgID snowflake.ID) (*rbac.Role, error)
	IsOrgAdmin(ctx context.Context, userID, orgID snowflake.ID) (bool, error)
	// CheckDomainRestriction reports whether email's domain is permitted to
	// join orgID. An empty allow-list permits every domain.
	CheckDomainRestriction(ctx context.Context, email string, orgID snowflake.ID) (bool, error)
	// CheckSeatLimit reports whether orgID has room for another membership.
	CheckSeatLimit(ctx context.Context, orgID snowflake.ID) (bool, error)
	// AdminCount reports how many ADMIN memberships orgID has.
	AdminCount(ctx context.Context, orgID snowflake.ID) (int64, error)
}
