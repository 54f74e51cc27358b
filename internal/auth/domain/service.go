package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/smallbiznis/identity/internal/organization/domain"
)

type SignupRequest struct {
	Email            string
	Password         string
	Name             string
	OrganizationName string
}

// SignupResult carries the created records. Session and Token are empty when
// session issuance failed after the signup transaction committed; the account
// exists and the caller should direct the user to log in.
type SignupResult struct {
	User         *User
	Organization *orgdomain.Organization
	Session      *Session
	Token        string
}

type LoginRequest struct {
	Email          string
	Password       string
	OrganizationID *snowflake.ID
}

// LoginResult is either a full session or, when MFARequired is set, a prompt
// for the second factor carrying only the user ID.
type LoginResult struct {
	MFARequired   bool
	UserID        snowflake.ID
	User          *User
	Session       *Session
	Token         string
	Organizations []orgdomain.MembershipInfo
}

type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*SignupResult, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	LoginWithMFA(ctx context.Context, userID snowflake.ID, code string, organizationID *snowflake.ID) (*LoginResult, error)
	VerifyEmail(ctx context.Context, userID snowflake.ID) (*User, error)
	ChangeUserRole(ctx context.Context, userID, orgID snowflake.ID, newRole string, performedBy snowflake.ID) error
}
