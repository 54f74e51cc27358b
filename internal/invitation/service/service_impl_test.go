package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/identity/internal/apperror"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	auditrepo "github.com/smallbiznis/identity/internal/audit/repository"
	auditservice "github.com/smallbiznis/identity/internal/audit/service"
	authdomain "github.com/smallbiznis/identity/internal/auth/domain"
	authrepo "github.com/smallbiznis/identity/internal/auth/repository"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/invitation/domain"
	invitationrepo "github.com/smallbiznis/identity/internal/invitation/repository"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/identity/internal/organization/domain"
	orgrepo "github.com/smallbiznis/identity/internal/organization/repository"
	orgservice "github.com/smallbiznis/identity/internal/organization/service"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	repo  domain.Repository
	users authdomain.UserRepository
	orgs  orgdomain.Repository
	conn  *gorm.DB
	clk   *clock.FakeClock
	node  *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&orgdomain.Organization{},
		&orgdomain.Member{},
		&orgdomain.Settings{},
		&domain.Invitation{},
		&auditdomain.Entry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	users := authrepo.NewUserRepository(conn)
	orgs := orgrepo.New(conn)
	orgSvc := orgservice.New(log, orgs)
	repo := invitationrepo.New(conn)
	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		Clock: clk,
		GenID: node,
		Repo:  auditrepo.New(),
	})

	svc := NewService(Params{
		DB:      conn,
		Log:     log,
		Cfg:     config.Config{BaseURL: "https://id.acme.test"},
		Clock:   clk,
		GenID:   node,
		Repo:    repo,
		Orgs:    orgs,
		OrgSvc:  orgSvc,
		Users:   users,
		Audit:   audit,
		Metrics: metrics.New(prometheus.NewRegistry()),
	})

	return &fixture{
		svc:   svc,
		repo:  repo,
		users: users,
		orgs:  orgs,
		conn:  conn,
		clk:   clk,
		node:  node,
	}
}

// seedOrg creates an organization with one admin and returns their IDs.
func (f *fixture) seedOrg(t *testing.T, name string) (orgID, adminID snowflake.ID) {
	t.Helper()
	ctx := context.Background()

	org := &orgdomain.Organization{ID: f.node.Generate(), Name: name, Slug: name}
	require.NoError(t, f.orgs.CreateOrganization(ctx, org))

	admin := &authdomain.User{
		ID:            f.node.Generate(),
		ExternalID:    org.ID.String() + "-admin",
		Email:         name + "-admin@acme.com",
		Name:          "Admin",
		EmailVerified: true,
	}
	require.NoError(t, f.users.Create(ctx, admin))
	require.NoError(t, f.orgs.AddMember(ctx, &orgdomain.Member{
		ID:     f.node.Generate(),
		OrgID:  org.ID,
		UserID: admin.ID,
		Role:   "ADMIN",
	}))
	require.NoError(t, f.orgs.CreateSettings(ctx, &orgdomain.Settings{OrgID: org.ID}))
	return org.ID, admin.ID
}

func (f *fixture) addMember(t *testing.T, orgID snowflake.ID, email, role string) snowflake.ID {
	t.Helper()
	ctx := context.Background()

	user := &authdomain.User{
		ID:            f.node.Generate(),
		ExternalID:    email,
		Email:         email,
		EmailVerified: true,
	}
	require.NoError(t, f.users.Create(ctx, user))
	require.NoError(t, f.orgs.AddMember(ctx, &orgdomain.Member{
		ID:     f.node.Generate(),
		OrgID:  orgID,
		UserID: user.ID,
		Role:   role,
	}))
	return user.ID
}

func (f *fixture) setSettings(t *testing.T, orgID snowflake.ID, domains []string, seatLimit *int) {
	t.Helper()
	require.NoError(t, f.conn.Model(&orgdomain.Settings{}).
		Where("org_id = ?", orgID).
		Updates(map[string]any{
			"allowed_domains": datatypes.NewJSONSlice(domains),
			"seat_limit":      seatLimit,
		}).Error)
}

func TestCreateRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, _ := f.seedOrg(t, "acme")
	memberID := f.addMember(t, orgID, "member@acme.com", "MEMBER")

	req := domain.CreateRequest{Email: "new@acme.com", Role: "MEMBER"}

	_, err := f.svc.Create(ctx, orgID, memberID, req)
	assert.Equal(t, apperror.CodePermissionDenied, apperror.CodeOf(err))

	_, err = f.svc.Create(ctx, orgID, f.node.Generate(), req)
	assert.Equal(t, apperror.CodePermissionDenied, apperror.CodeOf(err), "non-member cannot invite")
}

func TestCreatePolicyOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, adminID := f.seedOrg(t, "acme")

	// Domain restricted and the org already at its seat limit.
	limit := 1
	f.setSettings(t, orgID, []string{"acme.com"}, &limit)

	// The admin check outranks policy: a member hitting both policy failures
	// still sees permission denied.
	memberID := f.addMember(t, orgID, "member2@other.com", "MEMBER")
	_, err := f.svc.Create(ctx, orgID, memberID, domain.CreateRequest{Email: "x@other.com", Role: "MEMBER"})
	assert.Equal(t, apperror.CodePermissionDenied, apperror.CodeOf(err))

	// For an admin the domain check fires before the seat limit.
	_, err = f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "x@other.com", Role: "MEMBER"})
	assert.Equal(t, apperror.CodeDomainNotAllowed, apperror.CodeOf(err))

	_, err = f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "x@acme.com", Role: "MEMBER"})
	assert.Equal(t, apperror.CodeSeatLimitReached, apperror.CodeOf(err))
}

func TestCreateRejectsExistingMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, adminID := f.seedOrg(t, "acme")
	f.addMember(t, orgID, "member@acme.com", "MEMBER")

	_, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "Member@acme.com", Role: "MEMBER"})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, adminID := f.seedOrg(t, "acme")

	_, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "not-an-email", Role: "MEMBER"})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "x@acme.com", Role: "OWNER"})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestCreateSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, adminID := f.seedOrg(t, "acme")

	result, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "New@acme.com", Role: "MEMBER"})
	require.NoError(t, err)

	assert.Equal(t, "new@acme.com", result.Invitation.Email, "email is normalized")
	assert.Equal(t, f.clk.Now().Add(InviteTTL), result.Invitation.ExpiresAt)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, result.InviteURL, "https://id.acme.test/invitations/accept?token="+result.Token)
	assert.Equal(t, domain.StatusPending, result.Invitation.Status(f.clk.Now()))

	var audits int64
	require.NoError(t, f.conn.Model(&auditdomain.Entry{}).
		Where("action = ?", "invitation.created").Count(&audits).Error)
	assert.EqualValues(t, 1, audits)
}

func TestAcceptCreatesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, adminID := f.seedOrg(t, "acme")

	result, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "new@acme.com", Role: "DEPARTMENT_MANAGER"})
	require.NoError(t, err)

	accepted, err := f.svc.Accept(ctx, domain.AcceptRequest{
		Token:    result.Token,
		Password: "s3cret-enough",
		Name:     "New Person",
	})
	require.NoError(t, err)
	assert.Equal(t, orgID, accepted.Organization.ID)

	// The invitation vouches for the address, so the account starts verified.
	assert.True(t, accepted.User.EmailVerified)
	require.NotNil(t, accepted.User.PasswordHash)

	member, err := f.orgs.GetMember(ctx, orgID, accepted.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "DEPARTMENT_MANAGER", member.Role)

	stored, err := f.repo.FindByToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, stored.Status(f.clk.Now()))

	// A second redemption fails even long after expiry.
	f.clk.Advance(InviteTTL * 2)
	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Token: result.Token, Password: "x"})
	assert.Equal(t, apperror.CodeInvitationAccepted, apperror.CodeOf(err))
}

func TestAcceptExistingUserNeedsNoPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, adminID := f.seedOrg(t, "acme")
	otherOrgID, _ := f.seedOrg(t, "globex")
	userID := f.addMember(t, otherOrgID, "jo@acme.com", "MEMBER")

	result, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "jo@acme.com", Role: "MEMBER"})
	require.NoError(t, err)

	accepted, err := f.svc.Accept(ctx, domain.AcceptRequest{Token: result.Token})
	require.NoError(t, err)
	assert.Equal(t, userID, accepted.User.ID)

	_, err = f.orgs.GetMember(ctx, orgID, userID)
	require.NoError(t, err)
}

func TestAcceptRequiresPasswordForNewAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, adminID := f.seedOrg(t, "acme")

	result, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "new@acme.com", Role: "MEMBER"})
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Token: result.Token})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	// Nothing committed: no account, invitation still pending.
	_, err = f.users.FindByEmail(ctx, "new@acme.com")
	assert.ErrorIs(t, err, authdomain.ErrUserNotFound)

	stored, err := f.repo.FindByToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status(f.clk.Now()))
}

func TestAcceptExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, adminID := f.seedOrg(t, "acme")

	result, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "new@acme.com", Role: "MEMBER"})
	require.NoError(t, err)

	f.clk.Advance(InviteTTL + time.Minute)

	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Token: result.Token, Password: "x"})
	assert.Equal(t, apperror.CodeInvitationExpired, apperror.CodeOf(err))
}

func TestAcceptUnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Accept(context.Background(), domain.AcceptRequest{Token: "bogus"})
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, adminID := f.seedOrg(t, "acme")
	memberID := f.addMember(t, orgID, "member@acme.com", "MEMBER")

	result, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "new@acme.com", Role: "MEMBER"})
	require.NoError(t, err)
	invitationID := result.Invitation.ID

	err = f.svc.Revoke(ctx, invitationID, memberID, orgID)
	assert.Equal(t, apperror.CodePermissionDenied, apperror.CodeOf(err))

	err = f.svc.Revoke(ctx, f.node.Generate(), adminID, orgID)
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))

	require.NoError(t, f.svc.Revoke(ctx, invitationID, adminID, orgID))

	// The token is dead after revocation.
	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Token: result.Token, Password: "x"})
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}

func TestRevokeAcceptedInvitation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, adminID := f.seedOrg(t, "acme")

	result, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "new@acme.com", Role: "MEMBER"})
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Token: result.Token, Password: "s3cret-enough"})
	require.NoError(t, err)

	err = f.svc.Revoke(ctx, result.Invitation.ID, adminID, orgID)
	assert.Equal(t, apperror.CodeInvitationAccepted, apperror.CodeOf(err))
}

func TestListPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID, adminID := f.seedOrg(t, "acme")

	first, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "a@acme.com", Role: "MEMBER"})
	require.NoError(t, err)

	f.clk.Advance(time.Hour)
	second, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "b@acme.com", Role: "MEMBER"})
	require.NoError(t, err)

	f.clk.Advance(time.Hour)
	accepted, err := f.svc.Create(ctx, orgID, adminID, domain.CreateRequest{Email: "c@acme.com", Role: "MEMBER"})
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Token: accepted.Token, Password: "s3cret-enough"})
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, pending, 2, "accepted invitations are excluded")

	// Newest first, with the inviter's identity joined in.
	assert.Equal(t, second.Invitation.ID, pending[0].ID)
	assert.Equal(t, first.Invitation.ID, pending[1].ID)
	assert.Equal(t, "Admin", pending[0].InviterName)

	// Expired invitations fall out of the listing.
	f.clk.Advance(InviteTTL)
	pending, err = f.svc.ListPending(ctx, orgID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
