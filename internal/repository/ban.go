package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/gavelclass/interact-server-go/internal/database"
	"github.com/gavelclass/interact-server-go/internal/model"
)

type BanRepository interface {
	IsBanned(ctx context.Context, sessionID, userID int64) (bool, error)
	// Create inserts a ban record. A duplicate ban is a no-op, not an error.
	Create(ctx context.Context, params model.CreateBanParams) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) BanRepository
}

type banRepo struct {
	db database.DBTX
}

func NewBanRepository(db *sqlx.DB) BanRepository {
	return &banRepo{db: db}
}

func (r *banRepo) WithTx(tx *sqlx.Tx) BanRepository {
	return &banRepo{db: tx}
}

func (r *banRepo) IsBanned(ctx context.Context, sessionID, userID int64) (bool, error) {
	var banned bool
	err := r.db.GetContext(ctx, &banned, `
		SELECT EXISTS (
			SELECT 1 FROM session_bans
			WHERE class_session_id = $1 AND user_id = $2
		)
	`, sessionID, userID)
	if err != nil {
		return false, err
	}
	return banned, nil
}

func (r *banRepo) Create(ctx context.Context, params model.CreateBanParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_bans (class_session_id, user_id, reason, banned_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (class_session_id, user_id) DO NOTHING
	`, params.ClassSessionID, params.UserID, params.Reason, params.BannedBy)
	return err
}
