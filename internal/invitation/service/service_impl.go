package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/identity/internal/apperror"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	authdomain "github.com/smallbiznis/identity/internal/auth/domain"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/invitation/domain"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/password"
	"github.com/smallbiznis/identity/internal/rbac"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InviteTTL is how long an invitation stays redeemable.
const InviteTTL = 7 * 24 * time.Hour

const inviteTokenBytes = 32

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	Clock   clock.Clock
	GenID   *snowflake.Node
	Repo    domain.Repository
	Orgs    orgdomain.Repository
	OrgSvc  orgdomain.Service
	Users   authdomain.UserRepository
	Audit   auditdomain.Service
	Metrics *metrics.Metrics
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	baseURL string
	clock   clock.Clock
	genID   *snowflake.Node
	repo    domain.Repository
	orgs    orgdomain.Repository
	orgSvc  orgdomain.Service
	users   authdomain.UserRepository
	audit   auditdomain.Service
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("invitation.service"),
		baseURL: p.Cfg.BaseURL,
		clock:   p.Clock,
		genID:   p.GenID,
		repo:    p.Repo,
		orgs:    p.Orgs,
		orgSvc:  p.OrgSvc,
		users:   p.Users,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

// Create issues an invitation after the join-policy gate. Checks run in a
// fixed order and the first failure wins: inviter admin, allowed domains,
// seat limit, existing membership. The seat limit is checked again inside the
// transaction so concurrent invites cannot oversubscribe the organization.
func (s *service) Create(ctx context.Context, orgID, invitedBy snowflake.ID, req domain.CreateRequest) (*domain.CreateResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.NewValidation(apperror.CodeValidation, "a valid email is required")
	}
	role, ok := rbac.RoleFromString(req.Role)
	if !ok {
		return nil, apperror.NewValidation(apperror.CodeValidation, fmt.Sprintf("unknown role %q", req.Role))
	}

	inviterRole, err := s.orgSvc.GetUserRole(ctx, invitedBy, orgID)
	if err != nil {
		return nil, err
	}
	if inviterRole == nil || *inviterRole != rbac.RoleAdmin {
		return nil, apperror.NewPermission(invitedBy.String(), roleString(inviterRole), "invitations", "create")
	}

	allowed, err := s.orgSvc.CheckDomainRestriction(ctx, email, orgID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperror.NewValidation(apperror.CodeDomainNotAllowed, "email domain is not allowed for this organization")
	}

	hasRoom, err := s.orgSvc.CheckSeatLimit(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !hasRoom {
		return nil, apperror.NewValidation(apperror.CodeSeatLimitReached, "organization seat limit reached")
	}

	if user, err := s.users.FindByEmail(ctx, email); err == nil {
		if _, err := s.orgs.GetMember(ctx, orgID, user.ID); err == nil {
			return nil, apperror.NewValidation(apperror.CodeValidation, "user is already a member of this organization")
		} else if !errors.Is(err, orgdomain.ErrMemberNotFound) {
			return nil, err
		}
	} else if !errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, err
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	invitation := &domain.Invitation{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Email:     email,
		Token:     token,
		Role:      string(role),
		InvitedBy: invitedBy,
		ExpiresAt: now.Add(InviteTTL),
		CreatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hasRoom, err := s.seatAvailable(ctx, s.orgs.WithTx(tx), orgID)
		if err != nil {
			return err
		}
		if !hasRoom {
			return apperror.NewValidation(apperror.CodeSeatLimitReached, "organization seat limit reached")
		}

		if err := s.repo.WithTx(tx).Create(ctx, invitation); err != nil {
			return err
		}

		return s.audit.LogTx(ctx, tx, auditdomain.Record{
			OrgID:    &orgID,
			UserID:   &invitedBy,
			Action:   "invitation.created",
			Resource: "invitation",
			Metadata: map[string]any{
				"invitation_id": invitation.ID.String(),
				"email":         email,
				"role":          string(role),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvitationsCreated.Inc()
	s.log.Info("invitation created",
		zap.String("org_id", orgID.String()),
		zap.String("invitation_id", invitation.ID.String()))

	return &domain.CreateResult{
		Invitation: invitation,
		Token:      token,
		InviteURL:  fmt.Sprintf("%s/invitations/accept?token=%s", s.baseURL, token),
	}, nil
}

// Accept redeems an invitation. If the invitee has no account one is created,
// with the email considered verified by virtue of the invitation having been
// delivered to it. Membership, acceptance mark and audit entry commit in one
// transaction.
func (s *service) Accept(ctx context.Context, req domain.AcceptRequest) (*domain.AcceptResult, error) {
	invitation, err := s.repo.FindByToken(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		if errors.Is(err, domain.ErrInvitationNotFound) {
			return nil, apperror.New(apperror.CodeNotFound, "invitation not found")
		}
		return nil, err
	}

	now := s.clock.Now().UTC()
	switch invitation.Status(now) {
	case domain.StatusAccepted:
		return nil, apperror.NewValidation(apperror.CodeInvitationAccepted, "invitation has already been accepted")
	case domain.StatusExpired:
		return nil, apperror.NewValidation(apperror.CodeInvitationExpired, "invitation has expired")
	}

	org, err := s.orgs.FindOrganization(ctx, invitation.OrgID)
	if err != nil {
		return nil, err
	}

	var user *authdomain.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		orgs := s.orgs.WithTx(tx)

		existing, err := users.FindByEmail(ctx, invitation.Email)
		switch {
		case err == nil:
			user = existing
		case errors.Is(err, authdomain.ErrUserNotFound):
			if strings.TrimSpace(req.Password) == "" {
				return apperror.NewValidation(apperror.CodeValidation, "a password is required to create the account")
			}
			hash, err := password.Hash(req.Password)
			if err != nil {
				return err
			}
			user = &authdomain.User{
				ID:            s.genID.Generate(),
				ExternalID:    uuid.NewString(),
				Email:         invitation.Email,
				Name:          strings.TrimSpace(req.Name),
				PasswordHash:  &hash,
				EmailVerified: true,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := users.Create(ctx, user); err != nil {
				return err
			}
		default:
			return err
		}

		if _, err := orgs.GetMember(ctx, invitation.OrgID, user.ID); err == nil {
			return apperror.NewValidation(apperror.CodeValidation, "user is already a member of this organization")
		} else if !errors.Is(err, orgdomain.ErrMemberNotFound) {
			return err
		}

		if err := orgs.AddMember(ctx, &orgdomain.Member{
			ID:        s.genID.Generate(),
			OrgID:     invitation.OrgID,
			UserID:    user.ID,
			Role:      invitation.Role,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if err := s.repo.WithTx(tx).MarkAccepted(ctx, invitation.ID, now); err != nil {
			return err
		}

		return s.audit.LogTx(ctx, tx, auditdomain.Record{
			OrgID:    &invitation.OrgID,
			UserID:   &user.ID,
			Action:   "invitation.accepted",
			Resource: "invitation",
			Metadata: map[string]any{
				"invitation_id": invitation.ID.String(),
				"role":          invitation.Role,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvitationsAccepted.Inc()
	s.log.Info("invitation accepted",
		zap.String("org_id", invitation.OrgID.String()),
		zap.String("user_id", user.ID.String()))

	return &domain.AcceptResult{User: user, Organization: org}, nil
}

// Revoke deletes a pending invitation. Accepted invitations are part of the
// membership record and cannot be revoked.
func (s *service) Revoke(ctx context.Context, invitationID, revokedBy, orgID snowflake.ID) error {
	revokerRole, err := s.orgSvc.GetUserRole(ctx, revokedBy, orgID)
	if err != nil {
		return err
	}
	if revokerRole == nil || *revokerRole != rbac.RoleAdmin {
		return apperror.NewPermission(revokedBy.String(), roleString(revokerRole), "invitations", "delete")
	}

	invitation, err := s.repo.FindByID(ctx, invitationID, orgID)
	if err != nil {
		if errors.Is(err, domain.ErrInvitationNotFound) {
			return apperror.New(apperror.CodeNotFound, "invitation not found")
		}
		return err
	}
	if invitation.AcceptedAt != nil {
		return apperror.NewValidation(apperror.CodeInvitationAccepted, "invitation has already been accepted")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Delete(ctx, invitation.ID); err != nil {
			return err
		}
		return s.audit.LogTx(ctx, tx, auditdomain.Record{
			OrgID:    &orgID,
			UserID:   &revokedBy,
			Action:   "invitation.revoked",
			Resource: "invitation",
			Metadata: map[string]any{
				"invitation_id": invitation.ID.String(),
				"email":         invitation.Email,
			},
		})
	})
}

func (s *service) ListPending(ctx context.Context, orgID snowflake.ID) ([]domain.PendingInvitation, error) {
	return s.repo.ListPending(ctx, orgID, s.clock.Now().UTC())
}

// seatAvailable re-evaluates the seat limit against the given repository
// binding, which lets the create transaction see its own snapshot.
func (s *service) seatAvailable(ctx context.Context, orgs orgdomain.Repository, orgID snowflake.ID) (bool, error) {
	settings, err := orgs.GetSettings(ctx, orgID)
	if err != nil {
		if errors.Is(err, orgdomain.ErrSettingsNotFound) {
			return true, nil
		}
		return false, err
	}
	if settings.SeatLimit == nil {
		return true, nil
	}
	count, err := orgs.CountMembers(ctx, orgID)
	if err != nil {
		return false, err
	}
	return count < int64(*settings.SeatLimit), nil
}

func roleString(role *rbac.Role) string {
	if role == nil {
		return ""
	}
	return string(*role)
}

func newInviteToken() (string, error) {
	buf := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
