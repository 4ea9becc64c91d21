package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/gavelclass/interact-server-go/internal/database"
	"github.com/gavelclass/interact-server-go/internal/model"
)

type PollRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Poll, error)
	// FindBySession scopes the lookup to the session so a poll id from a
	// different classroom reads as absent.
	FindBySession(ctx context.Context, id, sessionID int64) (*model.Poll, error)
	FindLatestOpen(ctx context.Context, sessionID int64) (*model.Poll, error)
	Create(ctx context.Context, params model.CreatePollParams) (*model.Poll, error)
	CreateOption(ctx context.Context, pollID int64, label string, ord int) (*model.PollOption, error)
	ListOptions(ctx context.Context, pollID int64) ([]model.PollOption, error)
	// Close conditionally closes an open poll and reports whether this call
	// was the one that closed it.
	Close(ctx context.Context, id, sessionID int64) (bool, error)
	OptionCounts(ctx context.Context, pollID int64) ([]model.OptionCount, error)
	CountDistinctVoters(ctx context.Context, pollID int64) (int, error)
	DeleteVotes(ctx context.Context, pollID, userID int64) error
	CreateVote(ctx context.Context, pollID, optionID, userID int64) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PollRepository
}

type pollRepo struct {
	db database.DBTX
}

func NewPollRepository(db *sqlx.DB) PollRepository {
	return &pollRepo{db: db}
}

func (r *pollRepo) WithTx(tx *sqlx.Tx) PollRepository {
	return &pollRepo{db: tx}
}

func (r *pollRepo) FindByID(ctx context.Context, id int64) (*model.Poll, error) {
	var poll model.Poll
	err := r.db.GetContext(ctx, &poll, `
		SELECT * FROM polls WHERE id = $1
	`, id)
	return HandleNotFound(&poll, err)
}

func (r *pollRepo) FindBySession(ctx context.Context, id, sessionID int64) (*model.Poll, error) {
	var poll model.Poll
	err := r.db.GetContext(ctx, &poll, `
		SELECT * FROM polls WHERE id = $1 AND class_session_id = $2
	`, id, sessionID)
	return HandleNotFound(&poll, err)
}

func (r *pollRepo) FindLatestOpen(ctx context.Context, sessionID int64) (*model.Poll, error) {
	var poll model.Poll
	err := r.db.GetContext(ctx, &poll, `
		SELECT * FROM polls
		WHERE class_session_id = $1 AND status = 'open'
		ORDER BY id DESC
		LIMIT 1
	`, sessionID)
	return HandleNotFound(&poll, err)
}

func (r *pollRepo) Create(ctx context.Context, params model.CreatePollParams) (*model.Poll, error) {
	var poll model.Poll
	err := r.db.GetContext(ctx, &poll, `
		INSERT INTO polls (class_session_id, question, type, anonymous, status, created_by)
		VALUES ($1, $2, $3, $4, 'open', $5)
		RETURNING *
	`, params.ClassSessionID, params.Question, params.Type, params.Anonymous, params.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

func (r *pollRepo) CreateOption(ctx context.Context, pollID int64, label string, ord int) (*model.PollOption, error) {
	var option model.PollOption
	err := r.db.GetContext(ctx, &option, `
		INSERT INTO poll_options (poll_id, label, ord)
		VALUES ($1, $2, $3)
		RETURNING *
	`, pollID, label, ord)
	if err != nil {
		return nil, err
	}
	return &option, nil
}

func (r *pollRepo) ListOptions(ctx context.Context, pollID int64) ([]model.PollOption, error) {
	options := []model.PollOption{}
	err := r.db.SelectContext(ctx, &options, `
		SELECT * FROM poll_options WHERE poll_id = $1 ORDER BY ord ASC
	`, pollID)
	if err != nil {
		return nil, err
	}
	return options, nil
}

func (r *pollRepo) Close(ctx context.Context, id, sessionID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE polls SET status = 'closed'
		WHERE id = $1 AND class_session_id = $2 AND status = 'open'
	`, id, sessionID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *pollRepo) OptionCounts(ctx context.Context, pollID int64) ([]model.OptionCount, error) {
	counts := []model.OptionCount{}
	err := r.db.SelectContext(ctx, &counts, `
		SELECT o.id,
		       o.label,
		       COUNT(v.id) AS count
		FROM poll_options o
		LEFT JOIN poll_votes v ON o.id = v.option_id
		WHERE o.poll_id = $1
		GROUP BY o.id, o.label, o.ord
		ORDER BY o.ord ASC
	`, pollID)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *pollRepo) CountDistinctVoters(ctx context.Context, pollID int64) (int, error) {
	var voters int
	err := r.db.GetContext(ctx, &voters, `
		SELECT COUNT(DISTINCT user_id) FROM poll_votes WHERE poll_id = $1
	`, pollID)
	if err != nil {
		return 0, err
	}
	return voters, nil
}

func (r *pollRepo) DeleteVotes(ctx context.Context, pollID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM poll_votes WHERE poll_id = $1 AND user_id = $2
	`, pollID, userID)
	return err
}

func (r *pollRepo) CreateVote(ctx context.Context, pollID, optionID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO poll_votes (poll_id, option_id, user_id)
		VALUES ($1, $2, $3)
	`, pollID, optionID, userID)
	return err
}
