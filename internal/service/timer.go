package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/gavelclass/interact-server-go/internal/database"
	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/model"
	"github.com/gavelclass/interact-server-go/internal/repository"
)

type StartTimerParams struct {
	SessionID     int64
	RequesterID   int64
	RequesterRole model.UserRole
	SpeakerID     int64
	DurationSec   int
}

type StopTimerParams struct {
	SessionID     int64
	RequesterID   int64
	RequesterRole model.UserRole
}

// TimerService enforces the single-active-timer invariant: at most one
// speech timer per session has ended_at unset, and its holder is the one
// speaking hand-raise row.
type TimerService struct {
	db          database.TxRunner
	sessionRepo repository.SessionRepository
	handRepo    repository.HandRaiseRepository
	timerRepo   repository.SpeechTimerRepository
	snapshots   SnapshotPublisher
}

func NewTimerService(
	db database.TxRunner,
	sessionRepo repository.SessionRepository,
	handRepo repository.HandRaiseRepository,
	timerRepo repository.SpeechTimerRepository,
	snapshots SnapshotPublisher,
) *TimerService {
	return &TimerService{
		db:          db,
		sessionRepo: sessionRepo,
		handRepo:    handRepo,
		timerRepo:   timerRepo,
		snapshots:   snapshots,
	}
}

// Start gives the floor to the speaker. In one transaction it closes any
// open timer, marks other speaking rows done, promotes the speaker's queued
// row, and inserts the new timer. Starting always supersedes, even when the
// previous timer was never stopped.
func (s *TimerService) Start(ctx context.Context, params StartTimerParams) (*model.SpeechTimer, error) {
	if err := s.authorize(ctx, params.SessionID, params.RequesterID, params.RequesterRole); err != nil {
		return nil, err
	}

	if params.SpeakerID <= 0 || params.DurationSec <= 0 {
		return nil, apperrors.InvalidInput("timer", "speakerId and a positive durationSec are required")
	}

	var timer *model.SpeechTimer
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		timers := s.timerRepo.WithTx(tx)
		hands := s.handRepo.WithTx(tx)

		if err := timers.CloseActive(ctx, params.SessionID); err != nil {
			return fmt.Errorf("close active timer: %w", err)
		}
		if err := hands.MarkDoneSpeakingExcept(ctx, params.SessionID, params.SpeakerID); err != nil {
			return fmt.Errorf("mark speakers done: %w", err)
		}
		if err := hands.PromoteQueued(ctx, params.SessionID, params.SpeakerID); err != nil {
			return fmt.Errorf("promote queued hand: %w", err)
		}

		created, err := timers.Create(ctx, model.CreateTimerParams{
			ClassSessionID: params.SessionID,
			UserID:         params.SpeakerID,
			DurationSec:    params.DurationSec,
		})
		if err != nil {
			return fmt.Errorf("create timer: %w", err)
		}
		timer = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("sessionId", params.SessionID).
		Int64("speakerId", params.SpeakerID).
		Int("durationSec", params.DurationSec).
		Msg("speech timer started")

	if s.snapshots != nil {
		s.snapshots.PublishSnapshot(ctx, params.SessionID)
	}

	return timer, nil
}

// Stop closes the open timer and marks the speaker's row done. Stopping
// when no timer is open returns (nil, nil) rather than an error, so
// repeated stops are harmless.
func (s *TimerService) Stop(ctx context.Context, params StopTimerParams) (*model.SpeechTimer, error) {
	if err := s.authorize(ctx, params.SessionID, params.RequesterID, params.RequesterRole); err != nil {
		return nil, err
	}

	var stopped *model.SpeechTimer
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		timers := s.timerRepo.WithTx(tx)
		hands := s.handRepo.WithTx(tx)

		active, err := timers.FindActive(ctx, params.SessionID)
		if err != nil {
			return fmt.Errorf("find active timer: %w", err)
		}
		if active == nil {
			return nil
		}

		if err := timers.CloseByID(ctx, active.ID); err != nil {
			return fmt.Errorf("close timer: %w", err)
		}
		if err := hands.MarkDoneSpeaking(ctx, params.SessionID, active.UserID); err != nil {
			return fmt.Errorf("mark speaker done: %w", err)
		}

		now := time.Now()
		active.EndedAt = &now
		stopped = active
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stopped != nil {
		log.Info().
			Int64("sessionId", params.SessionID).
			Int64("speakerId", stopped.UserID).
			Msg("speech timer stopped")
	}

	if s.snapshots != nil {
		s.snapshots.PublishSnapshot(ctx, params.SessionID)
	}

	return stopped, nil
}

func (s *TimerService) authorize(ctx context.Context, sessionID, requesterID int64, role model.UserRole) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}
	if !canManageSession(session, requesterID, role) {
		return apperrors.Forbidden("not allowed to manage this classroom")
	}
	if session.Status != model.SessionStatusActive {
		return apperrors.StateInvalid("session is not active")
	}
	return nil
}
