package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/invitation/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invitation *domain.Invitation) error {
	return r.db.WithContext(ctx).Create(invitation).Error
}

func (r *repository) FindByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var invitation domain.Invitation
	if err := r.db.WithContext(ctx).First(&invitation, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) FindByID(ctx context.Context, id, orgID snowflake.ID) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).
		First(&invitation, "id = ? AND org_id = ?", id, orgID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) MarkAccepted(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("id = ?", id).
		Update("accepted_at", at).Error
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).
		Delete(&domain.Invitation{}, "id = ?", id).Error
}

func (r *repository) ListPending(ctx context.Context, orgID snowflake.ID, now time.Time) ([]domain.PendingInvitation, error) {
	var items []domain.PendingInvitation
	err := r.db.WithContext(ctx).Raw(
		`SELECT i.*, u.name AS inviter_name, u.email AS inviter_email
		 FROM organization_invitations i
		 JOIN users u ON u.id = i.invited_by
		 WHERE i.org_id = ? AND i.accepted_at IS NULL AND i.expires_at > ?
		 ORDER BY i.created_at DESC`,
		orgID,
		now,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
