package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/gavelclass/interact-server-go/internal/database"
	"github.com/gavelclass/interact-server-go/internal/model"
	"github.com/gavelclass/interact-server-go/internal/repository"
	"github.com/gavelclass/interact-server-go/internal/sse"
)

// fakeTxRunner runs the callback directly; repository mocks return
// themselves from WithTx so the tx handle is never touched.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

var _ database.TxRunner = fakeTxRunner{}

// fakePublisher records published events.
type fakePublisher struct {
	events []sse.Event
}

func (p *fakePublisher) Publish(ctx context.Context, sessionID int64, event sse.Event) error {
	p.events = append(p.events, event)
	return nil
}

// fakeSnapshots records which sessions got a snapshot push.
type fakeSnapshots struct {
	published []int64
}

func (s *fakeSnapshots) PublishSnapshot(ctx context.Context, sessionID int64) {
	s.published = append(s.published, sessionID)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id int64) (*model.ClassSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ClassSession), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.ClassSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ClassSession), args.Error(1)
}

func (m *mockSessionRepo) SetStatus(ctx context.Context, id int64, status model.SessionStatus) (bool, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) UpdateSettings(ctx context.Context, id int64, settings model.SessionSettings) error {
	args := m.Called(ctx, id, settings)
	return args.Error(0)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockHandRaiseRepo struct {
	mock.Mock
}

func (m *mockHandRaiseRepo) ListQueue(ctx context.Context, sessionID int64) ([]model.QueueEntry, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.QueueEntry), args.Error(1)
}

func (m *mockHandRaiseRepo) FindActiveByUser(ctx context.Context, sessionID, userID int64) (*model.HandRaise, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HandRaise), args.Error(1)
}

func (m *mockHandRaiseRepo) Create(ctx context.Context, sessionID, userID int64) (*model.HandRaise, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HandRaise), args.Error(1)
}

func (m *mockHandRaiseRepo) CancelActive(ctx context.Context, sessionID, userID int64) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func (m *mockHandRaiseRepo) MarkDoneSpeakingExcept(ctx context.Context, sessionID, exceptUserID int64) error {
	args := m.Called(ctx, sessionID, exceptUserID)
	return args.Error(0)
}

func (m *mockHandRaiseRepo) MarkDoneSpeaking(ctx context.Context, sessionID, userID int64) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func (m *mockHandRaiseRepo) PromoteQueued(ctx context.Context, sessionID, userID int64) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func (m *mockHandRaiseRepo) WithTx(tx *sqlx.Tx) repository.HandRaiseRepository {
	return m
}

type mockSpeechTimerRepo struct {
	mock.Mock
}

func (m *mockSpeechTimerRepo) FindActive(ctx context.Context, sessionID int64) (*model.SpeechTimer, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SpeechTimer), args.Error(1)
}

func (m *mockSpeechTimerRepo) FindActiveView(ctx context.Context, sessionID int64) (*model.ActiveTimer, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ActiveTimer), args.Error(1)
}

func (m *mockSpeechTimerRepo) Create(ctx context.Context, params model.CreateTimerParams) (*model.SpeechTimer, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SpeechTimer), args.Error(1)
}

func (m *mockSpeechTimerRepo) CloseActive(ctx context.Context, sessionID int64) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *mockSpeechTimerRepo) CloseByID(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSpeechTimerRepo) CloseActiveByUser(ctx context.Context, sessionID, userID int64) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func (m *mockSpeechTimerRepo) ListOverdue(ctx context.Context, grace time.Duration) ([]model.SpeechTimer, error) {
	args := m.Called(ctx, grace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SpeechTimer), args.Error(1)
}

func (m *mockSpeechTimerRepo) WithTx(tx *sqlx.Tx) repository.SpeechTimerRepository {
	return m
}

type mockPollRepo struct {
	mock.Mock
}

func (m *mockPollRepo) FindByID(ctx context.Context, id int64) (*model.Poll, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Poll), args.Error(1)
}

func (m *mockPollRepo) FindBySession(ctx context.Context, id, sessionID int64) (*model.Poll, error) {
	args := m.Called(ctx, id, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Poll), args.Error(1)
}

func (m *mockPollRepo) FindLatestOpen(ctx context.Context, sessionID int64) (*model.Poll, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Poll), args.Error(1)
}

func (m *mockPollRepo) Create(ctx context.Context, params model.CreatePollParams) (*model.Poll, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Poll), args.Error(1)
}

func (m *mockPollRepo) CreateOption(ctx context.Context, pollID int64, label string, ord int) (*model.PollOption, error) {
	args := m.Called(ctx, pollID, label, ord)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PollOption), args.Error(1)
}

func (m *mockPollRepo) ListOptions(ctx context.Context, pollID int64) ([]model.PollOption, error) {
	args := m.Called(ctx, pollID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PollOption), args.Error(1)
}

func (m *mockPollRepo) Close(ctx context.Context, id, sessionID int64) (bool, error) {
	args := m.Called(ctx, id, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *mockPollRepo) OptionCounts(ctx context.Context, pollID int64) ([]model.OptionCount, error) {
	args := m.Called(ctx, pollID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OptionCount), args.Error(1)
}

func (m *mockPollRepo) CountDistinctVoters(ctx context.Context, pollID int64) (int, error) {
	args := m.Called(ctx, pollID)
	return args.Int(0), args.Error(1)
}

func (m *mockPollRepo) DeleteVotes(ctx context.Context, pollID, userID int64) error {
	args := m.Called(ctx, pollID, userID)
	return args.Error(0)
}

func (m *mockPollRepo) CreateVote(ctx context.Context, pollID, optionID, userID int64) error {
	args := m.Called(ctx, pollID, optionID, userID)
	return args.Error(0)
}

func (m *mockPollRepo) WithTx(tx *sqlx.Tx) repository.PollRepository {
	return m
}

type mockBanRepo struct {
	mock.Mock
}

func (m *mockBanRepo) IsBanned(ctx context.Context, sessionID, userID int64) (bool, error) {
	args := m.Called(ctx, sessionID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBanRepo) Create(ctx context.Context, params model.CreateBanParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *mockBanRepo) WithTx(tx *sqlx.Tx) repository.BanRepository {
	return m
}
