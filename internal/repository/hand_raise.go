package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gavelclass/interact-server-go/internal/database"
	"github.com/gavelclass/interact-server-go/internal/model"
)

type HandRaiseRepository interface {
	// ListQueue returns the visible queue: rows in {queued, speaking},
	// FIFO by raise time with insertion id as the tiebreaker.
	ListQueue(ctx context.Context, sessionID int64) ([]model.QueueEntry, error)
	FindActiveByUser(ctx context.Context, sessionID, userID int64) (*model.HandRaise, error)
	Create(ctx context.Context, sessionID, userID int64) (*model.HandRaise, error)
	// CancelActive marks all of the user's queued/speaking rows cancelled.
	CancelActive(ctx context.Context, sessionID, userID int64) error
	// MarkDoneSpeakingExcept closes every speaking row other than the given
	// user's, used when a new speaker supersedes the floor.
	MarkDoneSpeakingExcept(ctx context.Context, sessionID, exceptUserID int64) error
	MarkDoneSpeaking(ctx context.Context, sessionID, userID int64) error
	// PromoteQueued moves the user's queued row to speaking.
	PromoteQueued(ctx context.Context, sessionID, userID int64) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) HandRaiseRepository
}

type handRaiseRepo struct {
	db database.DBTX
}

func NewHandRaiseRepository(db *sqlx.DB) HandRaiseRepository {
	return &handRaiseRepo{db: db}
}

func (r *handRaiseRepo) WithTx(tx *sqlx.Tx) HandRaiseRepository {
	return &handRaiseRepo{db: tx}
}

func (r *handRaiseRepo) ListQueue(ctx context.Context, sessionID int64) ([]model.QueueEntry, error) {
	queue := []model.QueueEntry{}
	err := r.db.SelectContext(ctx, &queue, `
		SELECT h.id,
		       h.user_id,
		       COALESCE(NULLIF(u.nickname, ''), u.username) AS nickname,
		       h.status,
		       h.raised_at
		FROM hand_raises h
		JOIN users u ON u.id = h.user_id
		WHERE h.class_session_id = $1
		  AND h.status IN ('queued', 'speaking')
		ORDER BY h.raised_at ASC, h.id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return queue, nil
}

func (r *handRaiseRepo) FindActiveByUser(ctx context.Context, sessionID, userID int64) (*model.HandRaise, error) {
	var hand model.HandRaise
	err := r.db.GetContext(ctx, &hand, `
		SELECT * FROM hand_raises
		WHERE class_session_id = $1
		  AND user_id = $2
		  AND status IN ('queued', 'speaking')
		ORDER BY id DESC
		LIMIT 1
	`, sessionID, userID)
	return HandleNotFound(&hand, err)
}

func (r *handRaiseRepo) Create(ctx context.Context, sessionID, userID int64) (*model.HandRaise, error) {
	var hand model.HandRaise
	err := r.db.GetContext(ctx, &hand, `
		INSERT INTO hand_raises (class_session_id, user_id, status, raised_at)
		VALUES ($1, $2, 'queued', $3)
		RETURNING *
	`, sessionID, userID, time.Now())
	if err != nil {
		return nil, err
	}
	return &hand, nil
}

func (r *handRaiseRepo) CancelActive(ctx context.Context, sessionID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE hand_raises
		SET status = 'cancelled', ended_at = $3
		WHERE class_session_id = $1
		  AND user_id = $2
		  AND status IN ('queued', 'speaking')
	`, sessionID, userID, time.Now())
	return err
}

func (r *handRaiseRepo) MarkDoneSpeakingExcept(ctx context.Context, sessionID, exceptUserID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE hand_raises
		SET status = 'done', ended_at = $3
		WHERE class_session_id = $1
		  AND status = 'speaking'
		  AND user_id != $2
	`, sessionID, exceptUserID, time.Now())
	return err
}

func (r *handRaiseRepo) MarkDoneSpeaking(ctx context.Context, sessionID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE hand_raises
		SET status = 'done', ended_at = $3
		WHERE class_session_id = $1
		  AND user_id = $2
		  AND status = 'speaking'
	`, sessionID, userID, time.Now())
	return err
}

func (r *handRaiseRepo) PromoteQueued(ctx context.Context, sessionID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE hand_raises
		SET status = 'speaking', speaking_at = $3
		WHERE class_session_id = $1
		  AND user_id = $2
		  AND status = 'queued'
	`, sessionID, userID, time.Now())
	return err
}
