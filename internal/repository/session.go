package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gavelclass/interact-server-go/internal/database"
	"github.com/gavelclass/interact-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id int64) (*model.ClassSession, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.ClassSession, error)
	// SetStatus conditionally updates the session status, stamping ended_at
	// on the transition to ended. The WHERE guard on the terminal state makes
	// the update race-safe: it reports whether a row was actually changed.
	SetStatus(ctx context.Context, id int64, status model.SessionStatus) (bool, error)
	UpdateSettings(ctx context.Context, id int64, settings model.SessionSettings) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id int64) (*model.ClassSession, error) {
	var session model.ClassSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM class_sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.ClassSession, error) {
	var session model.ClassSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO class_sessions (title, status, created_by, settings)
		VALUES ($1, 'pending', $2, '{}')
		RETURNING *
	`, params.Title, params.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) SetStatus(ctx context.Context, id int64, status model.SessionStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE class_sessions SET
			status = $2,
			ended_at = CASE WHEN $2 = 'ended' THEN $3 ELSE ended_at END
		WHERE id = $1 AND status != 'ended'
	`, id, status, time.Now())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *sessionRepo) UpdateSettings(ctx context.Context, id int64, settings model.SessionSettings) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE class_sessions SET settings = $2 WHERE id = $1
	`, id, settings)
	return err
}
