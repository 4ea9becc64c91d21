package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/model"
	"github.com/gavelclass/interact-server-go/internal/repository"
)

// QueueResult is returned by both hand actions: the refreshed visible queue
// and the caller's 1-based position in it (nil when absent).
type QueueResult struct {
	Queue    []model.QueueEntry `json:"queue"`
	Position *int               `json:"position"`
}

// HandService manages the FIFO queue of raised hands.
type HandService struct {
	sessionRepo repository.SessionRepository
	handRepo    repository.HandRaiseRepository
	banRepo     repository.BanRepository
	snapshots   SnapshotPublisher
}

func NewHandService(
	sessionRepo repository.SessionRepository,
	handRepo repository.HandRaiseRepository,
	banRepo repository.BanRepository,
	snapshots SnapshotPublisher,
) *HandService {
	return &HandService{
		sessionRepo: sessionRepo,
		handRepo:    handRepo,
		banRepo:     banRepo,
		snapshots:   snapshots,
	}
}

// Raise queues the user to speak. Raising an already-queued or speaking
// hand is a no-op, so clients may retry blindly.
func (s *HandService) Raise(ctx context.Context, sessionID, userID int64) (*QueueResult, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	banned, err := s.banRepo.IsBanned(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("check ban: %w", err)
	}
	if banned {
		return nil, apperrors.Forbidden("you have been removed from this classroom")
	}

	if session.Status != model.SessionStatusActive {
		return nil, apperrors.StateInvalid("session is not active")
	}

	if session.Settings.GlobalMute() {
		return nil, apperrors.StateInvalid("classroom is globally muted")
	}

	existing, err := s.handRepo.FindActiveByUser(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("find hand raise: %w", err)
	}
	if existing == nil {
		if _, err := s.handRepo.Create(ctx, sessionID, userID); err != nil {
			return nil, fmt.Errorf("create hand raise: %w", err)
		}
		log.Info().
			Int64("sessionId", sessionID).
			Int64("userId", userID).
			Msg("hand raised")
	}

	result, err := s.queueResult(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if s.snapshots != nil {
		s.snapshots.PublishSnapshot(ctx, sessionID)
	}

	return result, nil
}

// Cancel withdraws the user's hand. It is allowed in any session state so a
// student can always leave the queue. Cancelling a speaking row does NOT
// stop the speech timer: silencing the floor is a teacher action on the
// timer, and the timer sweep reclaims anything left behind.
func (s *HandService) Cancel(ctx context.Context, sessionID, userID int64) (*QueueResult, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	if err := s.handRepo.CancelActive(ctx, sessionID, userID); err != nil {
		return nil, fmt.Errorf("cancel hand raise: %w", err)
	}

	log.Info().
		Int64("sessionId", sessionID).
		Int64("userId", userID).
		Msg("hand cancelled")

	queue, err := s.handRepo.ListQueue(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}

	if s.snapshots != nil {
		s.snapshots.PublishSnapshot(ctx, sessionID)
	}

	return &QueueResult{Queue: queue, Position: nil}, nil
}

func (s *HandService) queueResult(ctx context.Context, sessionID, userID int64) (*QueueResult, error) {
	queue, err := s.handRepo.ListQueue(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}

	var position *int
	for i, entry := range queue {
		if entry.UserID == userID {
			pos := i + 1
			position = &pos
			break
		}
	}

	return &QueueResult{Queue: queue, Position: position}, nil
}
