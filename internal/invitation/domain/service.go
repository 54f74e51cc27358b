package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/identity/internal/auth/domain"
	orgdomain "github.com/smallbiznis/identity/internal/organization/domain"
)

type CreateRequest struct {
	Email string
	Role  string
}

type CreateResult struct {
	Invitation *Invitation
	Token      string
	InviteURL  string
}

// AcceptRequest carries the optional fields used when the invitee has no
// account yet; Password is required in that branch.
type AcceptRequest struct {
	Token    string
	Password string
	Name     string
}

type AcceptResult struct {
	User         *authdomain.User
	Organization *orgdomain.Organization
}

type Service interface {
	Create(ctx context.Context, orgID, invitedBy snowflake.ID, req CreateRequest) (*CreateResult, error)
	Accept(ctx context.Context, req AcceptRequest) (*AcceptResult, error)
	Revoke(ctx context.Context, invitationID, revokedBy, orgID snowflake.ID) error
	ListPending(ctx context.Context, orgID snowflake.ID) ([]PendingInvitation, error)
}
