// Package session issues and validates opaque session tokens with a
// sliding-window expiry.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/auth/domain"
	"github.com/smallbiznis/identity/internal/clock"
	"go.uber.org/zap"
)

const (
	tokenBytes = 32

	// TTL is the lifetime of a session from creation or refresh.
	TTL = 24 * time.Hour
	// RefreshThreshold is how close to expiry a validation must land before
	// the expiry is pushed forward by a full TTL.
	RefreshThreshold = 15 * time.Minute
)

type Manager struct {
	log   *zap.Logger
	repo  domain.SessionRepository
	clock clock.Clock
	genID *snowflake.Node
}

func NewManager(log *zap.Logger, repo domain.SessionRepository, clk clock.Clock, genID *snowflake.Node) *Manager {
	return &Manager{
		log:   log.Named("auth.session"),
		repo:  repo,
		clock: clk,
		genID: genID,
	}
}

// Create issues a new session for userID and returns the raw token alongside
// the stored record. The raw token is the only copy; the store keeps a hash.
func (m *Manager) Create(ctx context.Context, userID snowflake.ID) (string, *domain.Session, error) {
	rawToken, err := NewToken()
	if err != nil {
		return "", nil, err
	}

	now := m.clock.Now().UTC()
	session := &domain.Session{
		ID:        m.genID.Generate(),
		UserID:    userID,
		TokenHash: HashToken(rawToken),
		ExpiresAt: now.Add(TTL),
		CreatedAt: now,
	}
	if err := m.repo.Create(ctx, session); err != nil {
		return "", nil, err
	}
	return rawToken, session, nil
}

// Validate resolves a raw token to its session. A missing token resolves to
// (nil, nil); an expired session is deleted lazily and also resolves to
// (nil, nil). A session validated within RefreshThreshold of its expiry has
// its expiry extended to now+TTL before being returned.
func (m *Manager) Validate(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, nil
	}

	session, err := m.repo.FindByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	now := m.clock.Now().UTC()
	if now.After(session.ExpiresAt) {
		if err := m.repo.DeleteByID(ctx, session.ID); err != nil {
			m.log.Warn("failed to delete expired session",
				zap.String("session_id", session.ID.String()),
				zap.Error(err))
		}
		return nil, nil
	}

	if session.ExpiresAt.Sub(now) <= RefreshThreshold {
		refreshed := now.Add(TTL)
		if err := m.repo.UpdateExpiry(ctx, session.ID, refreshed); err != nil {
			return nil, err
		}
		session.ExpiresAt = refreshed
	}

	return session, nil
}

// Invalidate deletes the session for the token. Unknown tokens are not an
// error; invalidation is idempotent.
func (m *Manager) Invalidate(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil
	}
	return m.repo.DeleteByTokenHash(ctx, HashToken(token))
}

// InvalidateAll deletes every session belonging to userID.
func (m *Manager) InvalidateAll(ctx context.Context, userID snowflake.ID) error {
	return m.repo.DeleteByUserID(ctx, userID)
}

// NewToken generates an opaque URL-safe token with 32 bytes of entropy.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the hex SHA-256 digest stored in place of raw tokens.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
