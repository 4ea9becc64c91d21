package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/gavelclass/interact-server-go/internal/model"
	"github.com/gavelclass/interact-server-go/internal/sse"
)

// EventPublisher is the broadcaster surface services need: fire-and-forget
// delivery of one typed event to a session's channel. *sse.Broker satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, sessionID int64, event sse.Event) error
}

// SnapshotPublisher re-pushes a fresh snapshot to a session's observers.
// Queue, timer, and poll mutations go through this after they commit.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, sessionID int64)
}

// canManageSession mirrors the authorization rule for teacher-side actions:
// admins, the session owner, and anyone holding a teacher role.
func canManageSession(session *model.ClassSession, userID int64, role model.UserRole) bool {
	return role == model.UserRoleAdmin || session.CreatedBy == userID || role.IsTeacherRole()
}

// publishEvent delivers an event without letting broadcaster failures leak
// into the mutation result. Observers converge via their next snapshot fetch.
func publishEvent(ctx context.Context, publisher EventPublisher, sessionID int64, event sse.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, sessionID, event); err != nil {
		log.Warn().
			Err(err).
			Int64("sessionId", sessionID).
			Str("event", event.Type).
			Msg("failed to publish event")
	}
}
