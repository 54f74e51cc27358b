package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/requestid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Log(ctx context.Context, rec auditdomain.Record) error {
	return s.LogTx(ctx, s.db, rec)
}

func (s *Service) LogTx(ctx context.Context, tx *gorm.DB, rec auditdomain.Record) error {
	action := strings.TrimSpace(rec.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	resource := strings.TrimSpace(rec.Resource)
	if resource == "" {
		resource = "unknown"
	}

	payload := map[string]any{}
	for key, value := range rec.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	entry := auditdomain.Entry{
		ID:        s.genID.Generate(),
		OrgID:     rec.OrgID,
		UserID:    rec.UserID,
		Action:    action,
		Resource:  resource,
		Metadata:  datatypes.JSONMap(payload),
		CreatedAt: s.clock.Now().UTC(),
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		entry.RequestID = &reqID
	}

	if err := s.repo.Insert(ctx, tx, &entry); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.Error(err))
		return err
	}
	return nil
}
