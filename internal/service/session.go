package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gavelclass/interact-server-go/internal/audit"
	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/model"
	"github.com/gavelclass/interact-server-go/internal/repository"
	"github.com/gavelclass/interact-server-go/internal/sse"
)

type CreateSessionParams struct {
	Title         string
	RequesterID   int64
	RequesterRole model.UserRole
}

type UpdateStatusParams struct {
	SessionID     int64
	Status        model.SessionStatus
	RequesterID   int64
	RequesterRole model.UserRole
}

type SetGlobalMuteParams struct {
	SessionID     int64
	RequesterID   int64
	RequesterRole model.UserRole
	GlobalMute    bool
}

// SessionService owns the classroom lifecycle: pending on creation,
// activated once, ended once. Ended is terminal.
type SessionService struct {
	sessionRepo repository.SessionRepository
	broker      EventPublisher
	snapshots   SnapshotPublisher
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	broker EventPublisher,
	snapshots SnapshotPublisher,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		broker:      broker,
		snapshots:   snapshots,
	}
}

func (s *SessionService) Create(ctx context.Context, params CreateSessionParams) (*model.ClassSession, error) {
	if !params.RequesterRole.IsTeacherRole() {
		return nil, apperrors.Forbidden("only teachers or admins may create a classroom")
	}

	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, apperrors.InvalidInput("title", "must not be empty")
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		Title:     title,
		CreatedBy: params.RequesterID,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	log.Info().
		Int64("sessionId", session.ID).
		Int64("createdBy", session.CreatedBy).
		Msg("class session created")

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionCreated,
		SessionID: session.ID,
		ActorID:   params.RequesterID,
	})

	return session, nil
}

func (s *SessionService) FindByID(ctx context.Context, id int64) (*model.ClassSession, error) {
	return s.sessionRepo.FindByID(ctx, id)
}

// UpdateStatus moves the session forward in its state machine. The only
// transitions accepted from callers are pending|active -> active|ended;
// ended never transitions again.
func (s *SessionService) UpdateStatus(ctx context.Context, params UpdateStatusParams) (*model.ClassSession, error) {
	if params.Status != model.SessionStatusActive && params.Status != model.SessionStatusEnded {
		return nil, apperrors.InvalidInput("status", "must be active or ended")
	}

	session, err := s.sessionRepo.FindByID(ctx, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	if !canManageSession(session, params.RequesterID, params.RequesterRole) {
		return nil, apperrors.Forbidden("not allowed to manage this classroom")
	}

	if session.Status == model.SessionStatusEnded {
		return nil, apperrors.StateInvalid("session already ended")
	}

	// The conditional update keeps two concurrent enders honest: the loser's
	// update matches no row and surfaces as STATE_INVALID.
	updated, err := s.sessionRepo.SetStatus(ctx, params.SessionID, params.Status)
	if err != nil {
		return nil, fmt.Errorf("set session status: %w", err)
	}
	if !updated {
		return nil, apperrors.StateInvalid("session already ended")
	}

	session, err = s.sessionRepo.FindByID(ctx, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	log.Info().
		Int64("sessionId", session.ID).
		Str("status", string(session.Status)).
		Msg("class session status updated")

	if session.Status == model.SessionStatusEnded {
		audit.Log(ctx, audit.Event{
			Type:      audit.EventSessionEnded,
			SessionID: session.ID,
			ActorID:   params.RequesterID,
		})
	}

	publishEvent(ctx, s.broker, session.ID, sse.MarshalEvent(sse.EventSessionUpdated, map[string]any{
		"id":      session.ID,
		"status":  session.Status,
		"endedAt": session.EndedAt,
	}))

	return session, nil
}

// SetGlobalMute toggles the session-wide mute flag in the settings bag.
// Other settings keys are preserved.
func (s *SessionService) SetGlobalMute(ctx context.Context, params SetGlobalMuteParams) (*model.ClassSession, error) {
	session, err := s.sessionRepo.FindByID(ctx, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	if !params.RequesterRole.IsTeacherRole() {
		return nil, apperrors.Forbidden("only teachers or admins may change classroom settings")
	}

	settings := session.Settings.SetGlobalMute(params.GlobalMute)
	if err := s.sessionRepo.UpdateSettings(ctx, session.ID, settings); err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	session.Settings = settings

	log.Info().
		Int64("sessionId", session.ID).
		Bool("globalMute", params.GlobalMute).
		Msg("session settings updated")

	audit.Log(ctx, audit.Event{
		Type:      audit.EventGlobalMuteSet,
		SessionID: session.ID,
		ActorID:   params.RequesterID,
		Details:   map[string]interface{}{"globalMute": params.GlobalMute},
	})

	publishEvent(ctx, s.broker, session.ID, sse.MarshalEvent(sse.EventSettingsUpdated, map[string]any{
		"settings": settings,
	}))
	if s.snapshots != nil {
		s.snapshots.PublishSnapshot(ctx, session.ID)
	}

	return session, nil
}
