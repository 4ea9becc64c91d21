package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/model"
	"github.com/gavelclass/interact-server-go/internal/repository"
	"github.com/gavelclass/interact-server-go/internal/sse"
)

// Snapshot is the full read-model a cold-joining observer starts from:
// session, visible queue, open timer, and the latest open poll's tally.
// Closed polls are omitted; history is a separate concern.
type Snapshot struct {
	Session     *model.ClassSession `json:"session"`
	Queue       []model.QueueEntry  `json:"queue"`
	ActiveTimer *model.ActiveTimer  `json:"activeTimer"`
	OpenPoll    *Tally              `json:"openPoll"`
}

// SnapshotService assembles read-models and re-pushes them after queue,
// timer, and poll mutations. The four sub-reads are plain reads; a snapshot
// only needs to be eventually consistent with the latest delivered event.
type SnapshotService struct {
	sessionRepo repository.SessionRepository
	handRepo    repository.HandRaiseRepository
	timerRepo   repository.SpeechTimerRepository
	pollRepo    repository.PollRepository
	broker      EventPublisher
}

func NewSnapshotService(
	sessionRepo repository.SessionRepository,
	handRepo repository.HandRaiseRepository,
	timerRepo repository.SpeechTimerRepository,
	pollRepo repository.PollRepository,
	broker EventPublisher,
) *SnapshotService {
	return &SnapshotService{
		sessionRepo: sessionRepo,
		handRepo:    handRepo,
		timerRepo:   timerRepo,
		pollRepo:    pollRepo,
		broker:      broker,
	}
}

func (s *SnapshotService) Get(ctx context.Context, sessionID int64) (*Snapshot, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	queue, err := s.handRepo.ListQueue(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}

	timer, err := s.timerRepo.FindActiveView(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find active timer: %w", err)
	}

	var openPoll *Tally
	poll, err := s.pollRepo.FindLatestOpen(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find open poll: %w", err)
	}
	if poll != nil {
		openPoll, err = resolveTally(ctx, s.pollRepo, poll.ID)
		if err != nil {
			return nil, err
		}
	}

	return &Snapshot{
		Session:     session,
		Queue:       queue,
		ActiveTimer: timer,
		OpenPoll:    openPoll,
	}, nil
}

// PublishSnapshot pushes a fresh snapshot to the session's observers.
// Fire-and-forget: assembly or delivery failures are logged, never
// propagated into the mutation that triggered the push.
func (s *SnapshotService) PublishSnapshot(ctx context.Context, sessionID int64) {
	snapshot, err := s.Get(ctx, sessionID)
	if err != nil {
		log.Warn().
			Err(err).
			Int64("sessionId", sessionID).
			Msg("failed to assemble snapshot for broadcast")
		return
	}

	publishEvent(ctx, s.broker, sessionID, sse.MarshalEvent(sse.EventSnapshot, snapshot))
}

var _ SnapshotPublisher = (*SnapshotService)(nil)
