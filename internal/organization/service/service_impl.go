package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/rbac"
	"go.uber.org/zap"
)

type service struct {
	log  *zap.Logger
	repo domain.Repository
}

func New(log *zap.Logger, repo domain.Repository) domain.Service {
	return &service{
		log:  log.Named("organization.service"),
		repo: repo,
	}
}

func (s *service) GetUserRole(ctx context.Context, userID, orgID snowflake.ID) (*rbac.Role, error) {
	member, err := s.repo.GetMember(ctx, orgID, userID)
	if err != nil {
		if err == domain.ErrMemberNotFound {
			return nil, nil
		}
		return nil, err
	}

	role, ok := rbac.RoleFromString(member.Role)
	if !ok {
		s.log.Warn("membership carries unknown role",
			zap.String("org_id", orgID.String()),
			zap.String("user_id", userID.String()),
			zap.String("role", member.Role))
		return nil, nil
	}
	return &role, nil
}

func (s *service) IsOrgAdmin(ctx context.Context, userID, orgID snowflake.ID) (bool, error) {
	role, err := s.GetUserRole(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	return role != nil && *role == rbac.RoleAdmin, nil
}

func (s *service) CheckDomainRestriction(ctx context.Context, email string, orgID snowflake.ID) (bool, error) {
	settings, err := s.repo.GetSettings(ctx, orgID)
	if err != nil {
		if err == domain.ErrSettingsNotFound {
			// Orgs without a settings row are unrestricted.
			return true, nil
		}
		return false, err
	}
	if len(settings.AllowedDomains) == 0 {
		return true, nil
	}

	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false, nil
	}
	emailDomain := strings.ToLower(email[at+1:])

	for _, allowed := range settings.AllowedDomains {
		if strings.EqualFold(strings.TrimSpace(allowed), emailDomain) {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) CheckSeatLimit(ctx context.Context, orgID snowflake.ID) (bool, error) {
	settings, err := s.repo.GetSettings(ctx, orgID)
	if err != nil {
		if err == domain.ErrSettingsNotFound {
			return true, nil
		}
		return false, err
	}
	if settings.SeatLimit == nil {
		return true, nil
	}

	count, err := s.repo.CountMembers(ctx, orgID)
	if err != nil {
		return false, err
	}
	return count < int64(*settings.SeatLimit), nil
}

func (s *service) AdminCount(ctx context.Context, orgID snowflake.ID) (int64, error) {
	return s.repo.CountMembersByRole(ctx, orgID, string(rbac.RoleAdmin))
}
