package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

func TestFindValidSessionComparesTokenAsUUID(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSessionRepository(mock, zaptest.NewLogger(t))
	token, user := uuid.New(), uuid.New()
	expires := time.Now().Add(time.Hour)

	mock.ExpectQuery(`WHERE token = \$1`).
		WithArgs(token).
		WillReturnRows(mock.NewRows([]string{"id", "user_id", "token", "expires_at", "revoked_at", "created_at"}).
			AddRow(uuid.New(), user, token, expires, nil, time.Now()))

	session, err := repo.FindValidSession(context.Background(), token.String())
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if session == nil || session.UserID != user || session.RevokedAt != nil {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestFindValidSessionUnknownOrMalformed(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSessionRepository(mock, zaptest.NewLogger(t))
	token := uuid.New()

	mock.ExpectQuery(`FROM sessions`).
		WithArgs(token).
		WillReturnRows(mock.NewRows([]string{"id", "user_id", "token", "expires_at", "revoked_at", "created_at"}))

	if session, err := repo.FindValidSession(context.Background(), token.String()); session != nil || err != nil {
		t.Fatalf("unknown token: expected nil, nil, got %v, %v", session, err)
	}

	// never reaches the database
	if session, err := repo.FindValidSession(context.Background(), "not-a-token"); session != nil || err != nil {
		t.Fatalf("malformed token: expected nil, nil, got %v, %v", session, err)
	}
}
