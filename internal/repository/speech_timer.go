package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gavelclass/interact-server-go/internal/database"
	"github.com/gavelclass/interact-server-go/internal/model"
)

type SpeechTimerRepository interface {
	// FindActive returns the most recent timer row with ended_at unset.
	FindActive(ctx context.Context, sessionID int64) (*model.SpeechTimer, error)
	// FindActiveView is FindActive enriched with the speaker's display name,
	// used by the snapshot assembler.
	FindActiveView(ctx context.Context, sessionID int64) (*model.ActiveTimer, error)
	Create(ctx context.Context, params model.CreateTimerParams) (*model.SpeechTimer, error)
	// CloseActive stamps ended_at on every open timer of the session.
	CloseActive(ctx context.Context, sessionID int64) error
	CloseByID(ctx context.Context, id int64) error
	CloseActiveByUser(ctx context.Context, sessionID, userID int64) error
	// ListOverdue returns open timers whose duration elapsed more than
	// grace ago, so an abandoned floor can be swept.
	ListOverdue(ctx context.Context, grace time.Duration) ([]model.SpeechTimer, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SpeechTimerRepository
}

type speechTimerRepo struct {
	db database.DBTX
}

func NewSpeechTimerRepository(db *sqlx.DB) SpeechTimerRepository {
	return &speechTimerRepo{db: db}
}

func (r *speechTimerRepo) WithTx(tx *sqlx.Tx) SpeechTimerRepository {
	return &speechTimerRepo{db: tx}
}

func (r *speechTimerRepo) FindActive(ctx context.Context, sessionID int64) (*model.SpeechTimer, error) {
	var timer model.SpeechTimer
	err := r.db.GetContext(ctx, &timer, `
		SELECT * FROM speech_timers
		WHERE class_session_id = $1 AND ended_at IS NULL
		ORDER BY id DESC
		LIMIT 1
	`, sessionID)
	return HandleNotFound(&timer, err)
}

func (r *speechTimerRepo) FindActiveView(ctx context.Context, sessionID int64) (*model.ActiveTimer, error) {
	var timer model.ActiveTimer
	err := r.db.GetContext(ctx, &timer, `
		SELECT t.user_id,
		       COALESCE(NULLIF(u.nickname, ''), u.username) AS nickname,
		       t.duration_sec,
		       t.started_at
		FROM speech_timers t
		JOIN users u ON u.id = t.user_id
		WHERE t.class_session_id = $1 AND t.ended_at IS NULL
		ORDER BY t.id DESC
		LIMIT 1
	`, sessionID)
	return HandleNotFound(&timer, err)
}

func (r *speechTimerRepo) Create(ctx context.Context, params model.CreateTimerParams) (*model.SpeechTimer, error) {
	var timer model.SpeechTimer
	err := r.db.GetContext(ctx, &timer, `
		INSERT INTO speech_timers (class_session_id, user_id, duration_sec, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.ClassSessionID, params.UserID, params.DurationSec, time.Now())
	if err != nil {
		return nil, err
	}
	return &timer, nil
}

func (r *speechTimerRepo) CloseActive(ctx context.Context, sessionID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE speech_timers SET ended_at = $2
		WHERE class_session_id = $1 AND ended_at IS NULL
	`, sessionID, time.Now())
	return err
}

func (r *speechTimerRepo) CloseByID(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE speech_timers SET ended_at = $2
		WHERE id = $1 AND ended_at IS NULL
	`, id, time.Now())
	return err
}

func (r *speechTimerRepo) CloseActiveByUser(ctx context.Context, sessionID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE speech_timers SET ended_at = $3
		WHERE class_session_id = $1 AND user_id = $2 AND ended_at IS NULL
	`, sessionID, userID, time.Now())
	return err
}

func (r *speechTimerRepo) ListOverdue(ctx context.Context, grace time.Duration) ([]model.SpeechTimer, error) {
	timers := []model.SpeechTimer{}
	err := r.db.SelectContext(ctx, &timers, `
		SELECT * FROM speech_timers
		WHERE ended_at IS NULL
		  AND started_at + (duration_sec || ' seconds')::interval < $1
	`, time.Now().Add(-grace))
	if err != nil {
		return nil, err
	}
	return timers, nil
}
