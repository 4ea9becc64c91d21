package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/gavelclass/interact-server-go/internal/audit"
	"github.com/gavelclass/interact-server-go/internal/database"
	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/model"
	"github.com/gavelclass/interact-server-go/internal/repository"
	"github.com/gavelclass/interact-server-go/internal/sse"
)

type KickParams struct {
	SessionID     int64
	RequesterID   int64
	RequesterRole model.UserRole
	TargetUserID  int64
	Reason        string
}

// ModerationService removes users from a classroom. Unlike a voluntary
// cancel, a kick also releases the floor: the target's queued/speaking rows
// are cancelled and their open timer closed, all in one transaction.
type ModerationService struct {
	db          database.TxRunner
	sessionRepo repository.SessionRepository
	banRepo     repository.BanRepository
	handRepo    repository.HandRaiseRepository
	timerRepo   repository.SpeechTimerRepository
	broker      EventPublisher
	snapshots   SnapshotPublisher
}

func NewModerationService(
	db database.TxRunner,
	sessionRepo repository.SessionRepository,
	banRepo repository.BanRepository,
	handRepo repository.HandRaiseRepository,
	timerRepo repository.SpeechTimerRepository,
	broker EventPublisher,
	snapshots SnapshotPublisher,
) *ModerationService {
	return &ModerationService{
		db:          db,
		sessionRepo: sessionRepo,
		banRepo:     banRepo,
		handRepo:    handRepo,
		timerRepo:   timerRepo,
		broker:      broker,
		snapshots:   snapshots,
	}
}

func (s *ModerationService) Kick(ctx context.Context, params KickParams) error {
	session, err := s.sessionRepo.FindByID(ctx, params.SessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}

	if !params.RequesterRole.IsTeacherRole() {
		return apperrors.Forbidden("only teachers or admins may remove a user")
	}

	if params.TargetUserID <= 0 {
		return apperrors.InvalidInput("userId", "must be a positive id")
	}

	reason := params.Reason
	if reason == "" {
		reason = "Kicked by teacher"
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		bans := s.banRepo.WithTx(tx)
		hands := s.handRepo.WithTx(tx)
		timers := s.timerRepo.WithTx(tx)

		if err := bans.Create(ctx, model.CreateBanParams{
			ClassSessionID: params.SessionID,
			UserID:         params.TargetUserID,
			Reason:         reason,
			BannedBy:       params.RequesterID,
		}); err != nil {
			return fmt.Errorf("create ban: %w", err)
		}
		if err := hands.CancelActive(ctx, params.SessionID, params.TargetUserID); err != nil {
			return fmt.Errorf("cancel hand raises: %w", err)
		}
		if err := timers.CloseActiveByUser(ctx, params.SessionID, params.TargetUserID); err != nil {
			return fmt.Errorf("close timers: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("sessionId", params.SessionID).
		Int64("targetUserId", params.TargetUserID).
		Int64("kickedBy", params.RequesterID).
		Msg("user kicked from session")

	audit.Log(ctx, audit.Event{
		Type:      audit.EventUserKicked,
		SessionID: params.SessionID,
		ActorID:   params.RequesterID,
		TargetID:  params.TargetUserID,
		Details:   map[string]interface{}{"reason": reason},
	})

	publishEvent(ctx, s.broker, params.SessionID, sse.MarshalEvent(sse.EventUserKicked, map[string]any{
		"userId": params.TargetUserID,
		"reason": reason,
	}))
	if s.snapshots != nil {
		s.snapshots.PublishSnapshot(ctx, params.SessionID)
	}

	return nil
}

// IsBanned exposes the ban check for the stream pre-flight.
func (s *ModerationService) IsBanned(ctx context.Context, sessionID, userID int64) (bool, error) {
	return s.banRepo.IsBanned(ctx, sessionID, userID)
}
