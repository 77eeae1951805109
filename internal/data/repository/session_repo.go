package repository

import (
	"context"
	"errors"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SessionRepository reads bearer sessions issued by the auth service.
type SessionRepository interface {
	FindValidSession(ctx context.Context, token string) (*entity.Session, error)
}

type sessionRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSessionRepository(db database.PgxIface, log *zap.Logger) SessionRepository {
	return &sessionRepository{
		db:  db,
		log: log.With(zap.String("repository", "session")),
	}
}

// FindValidSession returns nil, nil when the token is malformed, unknown,
// revoked or expired.
func (r *sessionRepository) FindValidSession(ctx context.Context, token string) (*entity.Session, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return nil, nil
	}

	query := `
		SELECT id, user_id, token, expires_at, revoked_at, created_at
		FROM sessions
		WHERE token = $1
		  AND revoked_at IS NULL
		  AND expires_at > NOW()
	`

	var session entity.Session
	err = r.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find valid session", zap.Error(err))
		return nil, persistenceError("find session", err)
	}

	return &session, nil
}
