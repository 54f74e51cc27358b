package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/identity/internal/apperror"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	"github.com/smallbiznis/identity/internal/auth/domain"
	"github.com/smallbiznis/identity/internal/auth/session"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/mfa"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/password"
	"github.com/smallbiznis/identity/internal/rbac"
	pkgdb "github.com/smallbiznis/identity/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Users    domain.UserRepository
	Sessions *session.Manager
	Orgs     orgdomain.Repository
	OrgSvc   orgdomain.Service
	Audit    auditdomain.Service
	Metrics  *metrics.Metrics
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	users    domain.UserRepository
	sessions *session.Manager
	orgs     orgdomain.Repository
	orgSvc   orgdomain.Service
	audit    auditdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("auth.service"),
		clock:    p.Clock,
		genID:    p.GenID,
		users:    p.Users,
		sessions: p.Sessions,
		orgs:     p.Orgs,
		orgSvc:   p.OrgSvc,
		audit:    p.Audit,
		metrics:  p.Metrics,
	}
}

// Signup creates the user, their organization, the ADMIN membership and
// default settings in one transaction. The session is issued after commit; if
// issuance fails the account still exists and the result carries no session.
func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.SignupResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.NewValidation(apperror.CodeValidation, "a valid email is required")
	}
	if req.Password == "" {
		return nil, apperror.NewValidation(apperror.CodeValidation, "a password is required")
	}
	orgName := strings.TrimSpace(req.OrganizationName)
	if orgName == "" {
		return nil, apperror.NewValidation(apperror.CodeValidation, "an organization name is required")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperror.NewValidation(apperror.CodeEmailTaken, "email is already registered")
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	user := &domain.User{
		ID:           s.genID.Generate(),
		ExternalID:   uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	org := &orgdomain.Organization{
		ID:        s.genID.Generate(),
		Name:      orgName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgs := s.orgs.WithTx(tx)

		orgSlug, err := s.uniqueSlug(ctx, orgs, orgName)
		if err != nil {
			return err
		}
		org.Slug = orgSlug

		if err := orgs.CreateOrganization(ctx, org); err != nil {
			return err
		}
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return err
		}
		if err := orgs.AddMember(ctx, &orgdomain.Member{
			ID:        s.genID.Generate(),
			OrgID:     org.ID,
			UserID:    user.ID,
			Role:      string(rbac.RoleAdmin),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := orgs.CreateSettings(ctx, &orgdomain.Settings{
			OrgID:     org.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		return s.audit.LogTx(ctx, tx, auditdomain.Record{
			OrgID:    &org.ID,
			UserID:   &user.ID,
			Action:   "user.signup",
			Resource: "user",
			Metadata: map[string]any{
				"email":        email,
				"organization": orgName,
			},
		})
	})
	if err != nil {
		// The pre-check races with concurrent signups; the unique index on
		// email is the authority.
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, apperror.NewValidation(apperror.CodeEmailTaken, "email is already registered")
		}
		return nil, err
	}

	s.metrics.SignupsTotal.Inc()

	result := &domain.SignupResult{User: user, Organization: org}
	token, sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		// The account committed; surface it without a session rather than
		// failing the whole signup.
		s.log.Warn("signup session issuance failed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return result, nil
	}
	s.metrics.SessionsIssued.Inc()
	result.Session = sess
	result.Token = token
	return result, nil
}

// Login verifies credentials and either issues a session or, for MFA-enabled
// accounts, asks for the second factor. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.metrics.LoginsTotal.WithLabelValues(metrics.OutcomeInvalidCredentials).Inc()
			return nil, apperror.New(apperror.CodeInvalidCredentials, "invalid email or password")
		}
		return nil, err
	}
	if user.PasswordHash == nil || !password.Verify(req.Password, *user.PasswordHash) {
		s.metrics.LoginsTotal.WithLabelValues(metrics.OutcomeInvalidCredentials).Inc()
		return nil, apperror.New(apperror.CodeInvalidCredentials, "invalid email or password")
	}

	if err := s.checkMembership(ctx, user.ID, req.OrganizationID); err != nil {
		return nil, err
	}

	if !user.EmailVerified {
		s.metrics.LoginsTotal.WithLabelValues(metrics.OutcomeEmailNotVerified).Inc()
		return nil, apperror.New(apperror.CodeEmailNotVerified, "email is not verified")
	}

	if user.MFAEnabled {
		s.metrics.LoginsTotal.WithLabelValues(metrics.OutcomeMFARequired).Inc()
		return &domain.LoginResult{MFARequired: true, UserID: user.ID}, nil
	}

	return s.issueLogin(ctx, user, false)
}

// LoginWithMFA completes a login that Login answered with MFARequired.
func (s *service) LoginWithMFA(ctx context.Context, userID snowflake.ID, code string, organizationID *snowflake.ID) (*domain.LoginResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, apperror.New(apperror.CodeInvalidCredentials, "invalid email or password")
		}
		return nil, err
	}
	if !user.MFAEnabled || user.MFASecret == nil {
		return nil, apperror.NewValidation(apperror.CodeMFAState, "mfa is not enabled")
	}

	if err := s.checkMembership(ctx, user.ID, organizationID); err != nil {
		return nil, err
	}

	if !mfa.VerifyCode(*user.MFASecret, code, s.clock.Now()) {
		s.metrics.LoginsTotal.WithLabelValues(metrics.OutcomeMFAInvalid).Inc()
		return nil, apperror.New(apperror.CodeMFAInvalid, "invalid mfa code")
	}

	return s.issueLogin(ctx, user, true)
}

// VerifyEmail marks the account verified. Verifying twice is a no-op.
func (s *service) VerifyEmail(ctx context.Context, userID snowflake.ID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, apperror.New(apperror.CodeNotFound, "user not found")
		}
		return nil, err
	}
	if user.EmailVerified {
		return user, nil
	}

	if err := s.users.UpdateFields(ctx, userID, map[string]any{
		"email_verified": true,
	}); err != nil {
		return nil, err
	}
	user.EmailVerified = true

	_ = s.audit.Log(ctx, auditdomain.Record{
		UserID:   &userID,
		Action:   "user.email_verified",
		Resource: "user",
	})
	return user, nil
}

// ChangeUserRole updates a membership's role. Only organization admins may
// change roles, and the organization can never be left without an ADMIN; the
// admin count is checked inside the transaction so concurrent demotions
// cannot race past it.
func (s *service) ChangeUserRole(ctx context.Context, userID, orgID snowflake.ID, newRole string, performedBy snowflake.ID) error {
	role, ok := rbac.RoleFromString(newRole)
	if !ok {
		return apperror.NewValidation(apperror.CodeValidation, fmt.Sprintf("unknown role %q", newRole))
	}

	performerRole, err := s.orgSvc.GetUserRole(ctx, performedBy, orgID)
	if err != nil {
		return err
	}
	if performerRole == nil {
		return apperror.NewPermission(performedBy.String(), "", "members", "update")
	}
	if err := rbac.EnforcePermission(rbac.Context{
		UserID: performedBy,
		OrgID:  orgID,
		Role:   *performerRole,
	}, "members", "update", rbac.ScopeOrganization); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgs := s.orgs.WithTx(tx)

		member, err := orgs.GetMember(ctx, orgID, userID)
		if err != nil {
			if errors.Is(err, orgdomain.ErrMemberNotFound) {
				return apperror.New(apperror.CodeNotFound, "member not found")
			}
			return err
		}
		if member.Role == newRole {
			return nil
		}

		if member.Role == string(rbac.RoleAdmin) && role != rbac.RoleAdmin {
			admins, err := orgs.CountMembersByRole(ctx, orgID, string(rbac.RoleAdmin))
			if err != nil {
				return err
			}
			if admins <= 1 {
				return apperror.NewValidation(apperror.CodeLastAdmin, "organization must keep at least one admin")
			}
		}

		if err := orgs.UpdateMemberRole(ctx, orgID, userID, string(role)); err != nil {
			return err
		}

		return s.audit.LogTx(ctx, tx, auditdomain.Record{
			OrgID:    &orgID,
			UserID:   &performedBy,
			Action:   "member.role_changed",
			Resource: "member",
			Metadata: map[string]any{
				"target_user_id": userID.String(),
				"old_role":       member.Role,
				"new_role":       string(role),
			},
		})
	})
}

// checkMembership rejects a login aimed at an organization the user does not
// belong to. A nil organizationID skips the check.
func (s *service) checkMembership(ctx context.Context, userID snowflake.ID, organizationID *snowflake.ID) error {
	if organizationID == nil {
		return nil
	}
	role, err := s.orgSvc.GetUserRole(ctx, userID, *organizationID)
	if err != nil {
		return err
	}
	if role == nil {
		return apperror.New(apperror.CodePermissionDenied, "not a member of this organization")
	}
	return nil
}

func (s *service) issueLogin(ctx context.Context, user *domain.User, usedMFA bool) (*domain.LoginResult, error) {
	token, sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	memberships, err := s.orgs.ListMembershipsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.LoginsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.metrics.SessionsIssued.Inc()

	_ = s.audit.Log(ctx, auditdomain.Record{
		UserID:   &user.ID,
		Action:   "user.login",
		Resource: "user",
		Metadata: map[string]any{"mfa": usedMFA},
	})

	return &domain.LoginResult{
		UserID:        user.ID,
		User:          user,
		Session:       sess,
		Token:         token,
		Organizations: memberships,
	}, nil
}

// uniqueSlug derives a URL slug from the organization name, retrying with a
// random suffix on collision.
func (s *service) uniqueSlug(ctx context.Context, orgs orgdomain.Repository, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "org"
	}

	candidate := base
	for i := 0; i < 5; i++ {
		exists, err := orgs.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		suffix, err := randomHex(3)
		if err != nil {
			return "", err
		}
		candidate = base + "-" + suffix
	}
	return "", fmt.Errorf("could not find a unique slug for %q", name)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
