package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/gavelclass/interact-server-go/internal/database"
	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/model"
	"github.com/gavelclass/interact-server-go/internal/repository"
)

type CreatePollParams struct {
	SessionID     int64
	RequesterID   int64
	RequesterRole model.UserRole
	Question      string
	Options       []string
	Multiple      bool
	Anonymous     bool
}

// Choice identifies a poll option either by id or, when OptionID is zero,
// by its label.
type Choice struct {
	OptionID int64
	Label    string
}

type CastVoteParams struct {
	SessionID int64
	PollID    int64
	UserID    int64
	Selected  []Choice
}

type ClosePollParams struct {
	SessionID     int64
	PollID        int64
	RequesterID   int64
	RequesterRole model.UserRole
}

// PollService creates, collects, and closes polls. A ballot is always the
// user's latest full selection: recasting replaces, never merges.
type PollService struct {
	db          database.TxRunner
	sessionRepo repository.SessionRepository
	pollRepo    repository.PollRepository
	snapshots   SnapshotPublisher
}

func NewPollService(
	db database.TxRunner,
	sessionRepo repository.SessionRepository,
	pollRepo repository.PollRepository,
	snapshots SnapshotPublisher,
) *PollService {
	return &PollService{
		db:          db,
		sessionRepo: sessionRepo,
		pollRepo:    pollRepo,
		snapshots:   snapshots,
	}
}

func (s *PollService) Create(ctx context.Context, params CreatePollParams) (*Tally, error) {
	if err := s.requireActiveSession(ctx, params.SessionID); err != nil {
		return nil, err
	}

	if !params.RequesterRole.IsTeacherRole() {
		return nil, apperrors.Forbidden("only teachers or admins may open a poll")
	}

	question := strings.TrimSpace(params.Question)
	options := make([]string, 0, len(params.Options))
	for _, opt := range params.Options {
		if trimmed := strings.TrimSpace(opt); trimmed != "" {
			options = append(options, trimmed)
		}
	}

	if question == "" || len(options) < 2 {
		return nil, apperrors.InvalidInput("poll", "a question and at least two options are required")
	}

	pollType := model.PollTypeSingle
	if params.Multiple {
		pollType = model.PollTypeMultiple
	}

	var pollID int64
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		polls := s.pollRepo.WithTx(tx)

		poll, err := polls.Create(ctx, model.CreatePollParams{
			ClassSessionID: params.SessionID,
			Question:       question,
			Type:           pollType,
			Anonymous:      params.Anonymous,
			CreatedBy:      params.RequesterID,
		})
		if err != nil {
			return fmt.Errorf("create poll: %w", err)
		}

		for i, label := range options {
			if _, err := polls.CreateOption(ctx, poll.ID, label, i+1); err != nil {
				return fmt.Errorf("create option: %w", err)
			}
		}

		pollID = poll.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("sessionId", params.SessionID).
		Int64("pollId", pollID).
		Str("type", string(pollType)).
		Msg("poll created")

	if s.snapshots != nil {
		s.snapshots.PublishSnapshot(ctx, params.SessionID)
	}

	return resolveTally(ctx, s.pollRepo, pollID)
}

// Cast records the user's ballot. The prior ballot for this poll is deleted
// and the new set inserted in one transaction, so a recast can never leave
// a partial union behind.
func (s *PollService) Cast(ctx context.Context, params CastVoteParams) (*Tally, error) {
	if err := s.requireActiveSession(ctx, params.SessionID); err != nil {
		return nil, err
	}

	poll, err := s.pollRepo.FindBySession(ctx, params.PollID, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("find poll: %w", err)
	}
	if poll == nil {
		return nil, apperrors.NotFound("Poll")
	}
	if poll.Status != model.PollStatusOpen {
		return nil, apperrors.StateInvalid("poll already closed")
	}

	options, err := s.pollRepo.ListOptions(ctx, params.PollID)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}

	selected, err := resolveChoices(params.Selected, options)
	if err != nil {
		return nil, err
	}

	if poll.Type == model.PollTypeSingle && len(selected) != 1 {
		return nil, apperrors.InvalidInput("selected", "a single-choice poll takes exactly one option")
	}
	if poll.Type == model.PollTypeMultiple && len(selected) < 1 {
		return nil, apperrors.InvalidInput("selected", "a multiple-choice poll takes at least one option")
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		polls := s.pollRepo.WithTx(tx)

		if err := polls.DeleteVotes(ctx, params.PollID, params.UserID); err != nil {
			return fmt.Errorf("delete prior votes: %w", err)
		}
		for _, optionID := range selected {
			if err := polls.CreateVote(ctx, params.PollID, optionID, params.UserID); err != nil {
				return fmt.Errorf("create vote: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("sessionId", params.SessionID).
		Int64("pollId", params.PollID).
		Int64("userId", params.UserID).
		Int("choices", len(selected)).
		Msg("ballot cast")

	if s.snapshots != nil {
		s.snapshots.PublishSnapshot(ctx, params.SessionID)
	}

	return resolveTally(ctx, s.pollRepo, params.PollID)
}

// Close is one-way and race-safe: of two concurrent closers, exactly one
// wins; the other sees STATE_INVALID.
func (s *PollService) Close(ctx context.Context, params ClosePollParams) (*Tally, error) {
	if err := s.requireActiveSession(ctx, params.SessionID); err != nil {
		return nil, err
	}

	if !params.RequesterRole.IsTeacherRole() {
		return nil, apperrors.Forbidden("only teachers or admins may close a poll")
	}

	closed, err := s.pollRepo.Close(ctx, params.PollID, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("close poll: %w", err)
	}
	if !closed {
		return nil, apperrors.StateInvalid("poll already closed or missing")
	}

	log.Info().
		Int64("sessionId", params.SessionID).
		Int64("pollId", params.PollID).
		Msg("poll closed")

	if s.snapshots != nil {
		s.snapshots.PublishSnapshot(ctx, params.SessionID)
	}

	return resolveTally(ctx, s.pollRepo, params.PollID)
}

func (s *PollService) Tally(ctx context.Context, pollID int64) (*Tally, error) {
	return resolveTally(ctx, s.pollRepo, pollID)
}

func (s *PollService) requireActiveSession(ctx context.Context, sessionID int64) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}
	if session.Status != model.SessionStatusActive {
		return apperrors.StateInvalid("session is not active")
	}
	return nil
}

// resolveChoices maps id-or-label choices onto option ids, dropping
// duplicates while preserving first-seen order. A label that matches no
// option contributes nothing (and the cardinality checks catch an empty
// ballot); a numeric id that is not one of this poll's options is rejected.
func resolveChoices(choices []Choice, options []model.PollOption) ([]int64, error) {
	byLabel := make(map[string]int64, len(options))
	valid := make(map[int64]bool, len(options))
	for _, opt := range options {
		byLabel[opt.Label] = opt.ID
		valid[opt.ID] = true
	}

	seen := make(map[int64]bool, len(choices))
	resolved := make([]int64, 0, len(choices))
	for _, choice := range choices {
		id := choice.OptionID
		if id == 0 {
			var ok bool
			id, ok = byLabel[choice.Label]
			if !ok {
				continue
			}
		}
		if !valid[id] {
			return nil, apperrors.InvalidInput("selected", "unknown option")
		}
		if !seen[id] {
			seen[id] = true
			resolved = append(resolved, id)
		}
	}

	return resolved, nil
}
