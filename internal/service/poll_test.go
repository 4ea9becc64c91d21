package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/model"
)

func openPoll(pollType model.PollType) *model.Poll {
	return &model.Poll{
		ID:             3,
		ClassSessionID: 1,
		Question:       "Favourite sorting algorithm?",
		Type:           pollType,
		Status:         model.PollStatusOpen,
		CreatedBy:      10,
	}
}

func pollOptions() []model.PollOption {
	return []model.PollOption{
		{ID: 101, PollID: 3, Label: "Quicksort", Ord: 1},
		{ID: 102, PollID: 3, Label: "Mergesort", Ord: 2},
		{ID: 103, PollID: 3, Label: "Heapsort", Ord: 3},
	}
}

func expectTally(pollRepo *mockPollRepo, ctx context.Context, poll *model.Poll) {
	pollRepo.On("FindByID", ctx, poll.ID).Return(poll, nil)
	pollRepo.On("OptionCounts", ctx, poll.ID).Return([]model.OptionCount{
		{ID: 101, Label: "Quicksort", Count: 1},
		{ID: 102, Label: "Mergesort", Count: 0},
		{ID: 103, Label: "Heapsort", Count: 0},
	}, nil)
	pollRepo.On("CountDistinctVoters", ctx, poll.ID).Return(1, nil)
}

func TestPollService_Create(t *testing.T) {
	t.Run("creates poll with ordered options and returns the tally", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		snapshots := &fakeSnapshots{}
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, snapshots)

		ctx := context.Background()
		poll := openPoll(model.PollTypeSingle)

		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		pollRepo.On("Create", ctx, model.CreatePollParams{
			ClassSessionID: 1,
			Question:       "Favourite sorting algorithm?",
			Type:           model.PollTypeSingle,
			Anonymous:      true,
			CreatedBy:      10,
		}).Return(poll, nil)
		pollRepo.On("CreateOption", ctx, int64(3), "Quicksort", 1).Return(&model.PollOption{ID: 101}, nil)
		pollRepo.On("CreateOption", ctx, int64(3), "Mergesort", 2).Return(&model.PollOption{ID: 102}, nil)
		expectTally(pollRepo, ctx, poll)

		tally, err := svc.Create(ctx, CreatePollParams{
			SessionID:     1,
			RequesterID:   10,
			RequesterRole: model.UserRoleTeacher,
			Question:      " Favourite sorting algorithm? ",
			Options:       []string{"Quicksort", " Mergesort ", "  "},
			Anonymous:     true,
		})

		assert.NoError(t, err)
		assert.Equal(t, int64(3), tally.PollID)
		assert.True(t, tally.Anonymous)
		pollRepo.AssertExpectations(t)
	})

	t.Run("rejects fewer than two options", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, &fakeSnapshots{})

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)

		_, err := svc.Create(ctx, CreatePollParams{
			SessionID:     1,
			RequesterID:   10,
			RequesterRole: model.UserRoleTeacher,
			Question:      "Only one?",
			Options:       []string{"Yes", "   "},
		})

		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
		pollRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects students", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, &fakeSnapshots{})

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)

		_, err := svc.Create(ctx, CreatePollParams{
			SessionID:     1,
			RequesterID:   30,
			RequesterRole: model.UserRoleStudent,
			Question:      "Q?",
			Options:       []string{"A", "B"},
		})

		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
	})

	t.Run("multiple flag sets the poll type", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, &fakeSnapshots{})

		ctx := context.Background()
		poll := openPoll(model.PollTypeMultiple)

		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		pollRepo.On("Create", ctx, mock.MatchedBy(func(p model.CreatePollParams) bool {
			return p.Type == model.PollTypeMultiple
		})).Return(poll, nil)
		pollRepo.On("CreateOption", ctx, int64(3), mock.Anything, mock.Anything).Return(&model.PollOption{}, nil)
		expectTally(pollRepo, ctx, poll)

		tally, err := svc.Create(ctx, CreatePollParams{
			SessionID:     1,
			RequesterID:   10,
			RequesterRole: model.UserRoleTeacher,
			Question:      "Pick any",
			Options:       []string{"A", "B"},
			Multiple:      true,
		})

		assert.NoError(t, err)
		assert.Equal(t, model.PollTypeMultiple, tally.Type)
	})
}

func TestPollService_Cast(t *testing.T) {
	t.Run("replaces the prior ballot", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		snapshots := &fakeSnapshots{}
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, snapshots)

		ctx := context.Background()
		poll := openPoll(model.PollTypeSingle)

		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		pollRepo.On("FindBySession", ctx, int64(3), int64(1)).Return(poll, nil)
		pollRepo.On("ListOptions", ctx, int64(3)).Return(pollOptions(), nil)
		pollRepo.On("DeleteVotes", ctx, int64(3), int64(30)).Return(nil)
		pollRepo.On("CreateVote", ctx, int64(3), int64(101), int64(30)).Return(nil)
		expectTally(pollRepo, ctx, poll)

		tally, err := svc.Cast(ctx, CastVoteParams{
			SessionID: 1,
			PollID:    3,
			UserID:    30,
			Selected:  []Choice{{OptionID: 101}},
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, tally.TotalVoters)
		assert.Equal(t, []int64{1}, snapshots.published)
		pollRepo.AssertExpectations(t)
	})

	t.Run("resolves labels and drops duplicates", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, &fakeSnapshots{})

		ctx := context.Background()
		poll := openPoll(model.PollTypeMultiple)

		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		pollRepo.On("FindBySession", ctx, int64(3), int64(1)).Return(poll, nil)
		pollRepo.On("ListOptions", ctx, int64(3)).Return(pollOptions(), nil)
		pollRepo.On("DeleteVotes", ctx, int64(3), int64(30)).Return(nil)
		pollRepo.On("CreateVote", ctx, int64(3), int64(101), int64(30)).Return(nil).Once()
		pollRepo.On("CreateVote", ctx, int64(3), int64(102), int64(30)).Return(nil).Once()
		expectTally(pollRepo, ctx, poll)

		_, err := svc.Cast(ctx, CastVoteParams{
			SessionID: 1,
			PollID:    3,
			UserID:    30,
			Selected: []Choice{
				{Label: "Quicksort"},
				{OptionID: 102},
				{OptionID: 101},
				{Label: "Quicksort"},
			},
		})

		assert.NoError(t, err)
		pollRepo.AssertExpectations(t)
	})

	t.Run("unknown labels are dropped, an empty ballot fails cardinality", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, &fakeSnapshots{})

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		pollRepo.On("FindBySession", ctx, int64(3), int64(1)).Return(openPoll(model.PollTypeMultiple), nil)
		pollRepo.On("ListOptions", ctx, int64(3)).Return(pollOptions(), nil)

		_, err := svc.Cast(ctx, CastVoteParams{
			SessionID: 1,
			PollID:    3,
			UserID:    30,
			Selected:  []Choice{{Label: "Bogosort"}},
		})

		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
		pollRepo.AssertNotCalled(t, "DeleteVotes", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects an option id from another poll", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, &fakeSnapshots{})

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		pollRepo.On("FindBySession", ctx, int64(3), int64(1)).Return(openPoll(model.PollTypeSingle), nil)
		pollRepo.On("ListOptions", ctx, int64(3)).Return(pollOptions(), nil)

		_, err := svc.Cast(ctx, CastVoteParams{
			SessionID: 1,
			PollID:    3,
			UserID:    30,
			Selected:  []Choice{{OptionID: 999}},
		})

		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("single-choice poll takes exactly one option", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, &fakeSnapshots{})

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		pollRepo.On("FindBySession", ctx, int64(3), int64(1)).Return(openPoll(model.PollTypeSingle), nil)
		pollRepo.On("ListOptions", ctx, int64(3)).Return(pollOptions(), nil)

		_, err := svc.Cast(ctx, CastVoteParams{
			SessionID: 1,
			PollID:    3,
			UserID:    30,
			Selected:  []Choice{{OptionID: 101}, {OptionID: 102}},
		})

		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects casting on a closed poll", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, &fakeSnapshots{})

		ctx := context.Background()
		closed := openPoll(model.PollTypeSingle)
		closed.Status = model.PollStatusClosed

		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		pollRepo.On("FindBySession", ctx, int64(3), int64(1)).Return(closed, nil)

		_, err := svc.Cast(ctx, CastVoteParams{
			SessionID: 1,
			PollID:    3,
			UserID:    30,
			Selected:  []Choice{{OptionID: 101}},
		})

		assert.Equal(t, apperrors.ErrCodeStateInvalid, apperrors.GetCode(err))
	})

	t.Run("a poll from another session reads as absent", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, &fakeSnapshots{})

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		pollRepo.On("FindBySession", ctx, int64(3), int64(1)).Return(nil, nil)

		_, err := svc.Cast(ctx, CastVoteParams{
			SessionID: 1,
			PollID:    3,
			UserID:    30,
			Selected:  []Choice{{OptionID: 101}},
		})

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestPollService_Close(t *testing.T) {
	t.Run("closes the poll and returns the final tally", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		snapshots := &fakeSnapshots{}
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, snapshots)

		ctx := context.Background()
		closed := openPoll(model.PollTypeSingle)
		closed.Status = model.PollStatusClosed

		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		pollRepo.On("Close", ctx, int64(3), int64(1)).Return(true, nil)
		expectTally(pollRepo, ctx, closed)

		tally, err := svc.Close(ctx, ClosePollParams{
			SessionID:     1,
			PollID:        3,
			RequesterID:   10,
			RequesterRole: model.UserRoleTeacher,
		})

		assert.NoError(t, err)
		assert.Equal(t, model.PollStatusClosed, tally.Status)
		assert.Equal(t, []int64{1}, snapshots.published)
	})

	t.Run("loser of a concurrent close sees state invalid", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, &fakeSnapshots{})

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)
		pollRepo.On("Close", ctx, int64(3), int64(1)).Return(false, nil)

		_, err := svc.Close(ctx, ClosePollParams{
			SessionID:     1,
			PollID:        3,
			RequesterID:   10,
			RequesterRole: model.UserRoleTeacher,
		})

		assert.Equal(t, apperrors.ErrCodeStateInvalid, apperrors.GetCode(err))
	})

	t.Run("rejects students", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		pollRepo := new(mockPollRepo)
		svc := NewPollService(fakeTxRunner{}, sessionRepo, pollRepo, &fakeSnapshots{})

		ctx := context.Background()
		sessionRepo.On("FindByID", ctx, int64(1)).Return(activeSession(), nil)

		_, err := svc.Close(ctx, ClosePollParams{
			SessionID:     1,
			PollID:        3,
			RequesterID:   30,
			RequesterRole: model.UserRoleStudent,
		})

		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
		pollRepo.AssertNotCalled(t, "Close", mock.Anything, mock.Anything, mock.Anything)
	})
}
