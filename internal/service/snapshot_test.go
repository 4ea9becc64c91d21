package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/model"
	"github.com/gavelclass/interact-server-go/internal/sse"
)

func newSnapshotService(
	sessionRepo *mockSessionRepo,
	handRepo *mockHandRaiseRepo,
	timerRepo *mockSpeechTimerRepo,
	pollRepo *mockPollRepo,
	publisher *fakePublisher,
) *SnapshotService {
	return NewSnapshotService(sessionRepo, handRepo, timerRepo, pollRepo, publisher)
}

func TestSnapshotService_Get(t *testing.T) {
	t.Run("assembles session, queue, timer, and open poll", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		handRepo := new(mockHandRaiseRepo)
		timerRepo := new(mockSpeechTimerRepo)
		pollRepo := new(mockPollRepo)
		svc := newSnapshotService(sessionRepo, handRepo, timerRepo, pollRepo, &fakePublisher{})

		ctx := context.Background()
		poll := openPoll(model.PollTypeSingle)

		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		handRepo.On("ListQueue", ctx, int64(1)).Return([]model.QueueEntry{
			{ID: 4, UserID: 20, Nickname: "mina", Status: model.HandRaiseStatusSpeaking},
			{ID: 5, UserID: 30, Nickname: "jun", Status: model.HandRaiseStatusQueued},
		}, nil)
		timerRepo.On("FindActiveView", ctx, int64(1)).Return(&model.ActiveTimer{
			UserID:      20,
			Nickname:    "mina",
			DurationSec: 120,
			StartedAt:   time.Now(),
		}, nil)
		pollRepo.On("FindLatestOpen", ctx, int64(1)).Return(poll, nil)
		expectTally(pollRepo, ctx, poll)

		snapshot, err := svc.Get(ctx, 1)

		assert.NoError(t, err)
		assert.Equal(t, int64(1), snapshot.Session.ID)
		assert.Len(t, snapshot.Queue, 2)
		assert.Equal(t, int64(20), snapshot.ActiveTimer.UserID)
		if assert.NotNil(t, snapshot.OpenPoll) {
			assert.Equal(t, poll.ID, snapshot.OpenPoll.PollID)
		}
	})

	t.Run("omits timer and poll when absent", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		handRepo := new(mockHandRaiseRepo)
		timerRepo := new(mockSpeechTimerRepo)
		pollRepo := new(mockPollRepo)
		svc := newSnapshotService(sessionRepo, handRepo, timerRepo, pollRepo, &fakePublisher{})

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		handRepo.On("ListQueue", ctx, int64(1)).Return([]model.QueueEntry{}, nil)
		timerRepo.On("FindActiveView", ctx, int64(1)).Return(nil, nil)
		pollRepo.On("FindLatestOpen", ctx, int64(1)).Return(nil, nil)

		snapshot, err := svc.Get(ctx, 1)

		assert.NoError(t, err)
		assert.Empty(t, snapshot.Queue)
		assert.Nil(t, snapshot.ActiveTimer)
		assert.Nil(t, snapshot.OpenPoll)
	})

	t.Run("returns not found for missing session", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		handRepo := new(mockHandRaiseRepo)
		timerRepo := new(mockSpeechTimerRepo)
		pollRepo := new(mockPollRepo)
		svc := newSnapshotService(sessionRepo, handRepo, timerRepo, pollRepo, &fakePublisher{})

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(9)).Return(nil, nil)

		_, err := svc.Get(ctx, 9)

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestSnapshotService_PublishSnapshot(t *testing.T) {
	t.Run("publishes a snapshot event", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		handRepo := new(mockHandRaiseRepo)
		timerRepo := new(mockSpeechTimerRepo)
		pollRepo := new(mockPollRepo)
		publisher := &fakePublisher{}
		svc := newSnapshotService(sessionRepo, handRepo, timerRepo, pollRepo, publisher)

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		handRepo.On("ListQueue", ctx, int64(1)).Return([]model.QueueEntry{}, nil)
		timerRepo.On("FindActiveView", ctx, int64(1)).Return(nil, nil)
		pollRepo.On("FindLatestOpen", ctx, int64(1)).Return(nil, nil)

		svc.PublishSnapshot(ctx, 1)

		if assert.Len(t, publisher.events, 1) {
			assert.Equal(t, sse.EventSnapshot, publisher.events[0].Type)

			var payload Snapshot
			assert.NoError(t, json.Unmarshal(publisher.events[0].Data, &payload))
			assert.Equal(t, int64(1), payload.Session.ID)
		}
	})

	t.Run("assembly failure is swallowed", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		handRepo := new(mockHandRaiseRepo)
		timerRepo := new(mockSpeechTimerRepo)
		pollRepo := new(mockPollRepo)
		publisher := &fakePublisher{}
		svc := newSnapshotService(sessionRepo, handRepo, timerRepo, pollRepo, publisher)

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(9)).Return(nil, nil)

		svc.PublishSnapshot(ctx, 9)

		assert.Empty(t, publisher.events)
	})
}
