// Package mfa drives TOTP enrollment: disabled -> pending (secret stored,
// not yet confirmed) -> enabled -> disabled again via explicit disable.
package mfa

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/apperror"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	authdomain "github.com/smallbiznis/identity/internal/auth/domain"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	backupCodeCount  = 10
	backupCodeLength = 10
)

// Ambiguous characters (0/O, 1/I/L) are excluded so codes survive being read
// off a printout.
const backupCodeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

type SetupResult struct {
	Secret    string
	QRCodeURI string
}

type Service interface {
	Setup(ctx context.Context, userID snowflake.ID) (*SetupResult, error)
	Confirm(ctx context.Context, userID snowflake.ID, code string) error
	Disable(ctx context.Context, userID snowflake.ID, code string) error
	GenerateBackupCodes(ctx context.Context, userID snowflake.ID) ([]string, error)
}

type Params struct {
	fx.In

	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
	Users authdomain.UserRepository
	Audit auditdomain.Service
}

type service struct {
	log    *zap.Logger
	issuer string
	clock  clock.Clock
	users  authdomain.UserRepository
	audit  auditdomain.Service
}

func NewService(p Params) Service {
	return &service{
		log:    p.Log.Named("mfa.service"),
		issuer: p.Cfg.AppName,
		clock:  p.Clock,
		users:  p.Users,
		audit:  p.Audit,
	}
}

// Setup generates and stores a fresh pending secret. Calling it again before
// confirmation replaces the previous pending secret; only one pending secret
// exists at a time.
func (s *service) Setup(ctx context.Context, userID snowflake.ID) (*SetupResult, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, apperror.NewValidation(apperror.CodeMFAState, "mfa is already enabled")
	}

	secret, err := NewSecret()
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateFields(ctx, userID, map[string]any{
		"mfa_secret": secret,
	}); err != nil {
		return nil, err
	}

	return &SetupResult{
		Secret:    secret,
		QRCodeURI: ProvisionURI(s.issuer, user.Email, secret),
	}, nil
}

// Confirm verifies a live code against the pending secret and enables MFA.
// On a bad code the secret stays pending so the caller can retry.
func (s *service) Confirm(ctx context.Context, userID snowflake.ID, code string) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFAEnabled {
		return apperror.NewValidation(apperror.CodeMFAState, "mfa is already enabled")
	}
	if user.MFASecret == nil {
		return apperror.NewValidation(apperror.CodeMFAState, "no pending mfa enrollment")
	}

	if !VerifyCode(*user.MFASecret, code, s.clock.Now()) {
		return apperror.New(apperror.CodeMFAInvalid, "invalid mfa code")
	}

	if err := s.users.UpdateFields(ctx, userID, map[string]any{
		"mfa_enabled": true,
	}); err != nil {
		return err
	}

	_ = s.audit.Log(ctx, auditdomain.Record{
		UserID:   &userID,
		Action:   "mfa.enabled",
		Resource: "user",
	})
	return nil
}

// Disable requires a live TOTP code, then clears both the flag and the
// secret. Backup codes are not accepted here.
func (s *service) Disable(ctx context.Context, userID snowflake.ID, code string) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled || user.MFASecret == nil {
		return apperror.NewValidation(apperror.CodeMFAState, "mfa is not enabled")
	}

	if !VerifyCode(*user.MFASecret, code, s.clock.Now()) {
		return apperror.New(apperror.CodeMFAInvalid, "invalid mfa code")
	}

	if err := s.users.UpdateFields(ctx, userID, map[string]any{
		"mfa_enabled": false,
		"mfa_secret":  nil,
	}); err != nil {
		return err
	}

	_ = s.audit.Log(ctx, auditdomain.Record{
		UserID:   &userID,
		Action:   "mfa.disabled",
		Resource: "user",
	})
	return nil
}

// GenerateBackupCodes returns ten one-time codes for display. The codes are
// not persisted, so they cannot currently be redeemed during login; storage
// needs a product decision before this is wired into recovery.
func (s *service) GenerateBackupCodes(ctx context.Context, userID snowflake.ID) ([]string, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.MFAEnabled {
		return nil, apperror.NewValidation(apperror.CodeMFAState, "mfa is not enabled")
	}

	codes := make([]string, 0, backupCodeCount)
	for i := 0; i < backupCodeCount; i++ {
		code, err := randomBackupCode()
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}

	_ = s.audit.Log(ctx, auditdomain.Record{
		UserID:   &userID,
		Action:   "mfa.backup_codes_generated",
		Resource: "user",
	})
	return codes, nil
}

func (s *service) findUser(ctx context.Context, userID snowflake.ID) (*authdomain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if err == authdomain.ErrUserNotFound {
			return nil, apperror.New(apperror.CodeNotFound, "user not found")
		}
		return nil, err
	}
	return user, nil
}

func randomBackupCode() (string, error) {
	buf := make([]byte, backupCodeLength)
	max := big.NewInt(int64(len(backupCodeCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = backupCodeCharset[n.Int64()]
	}
	return string(buf), nil
}
