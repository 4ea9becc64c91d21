package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Moderation log sink. Write-only and fire-and-forget: a failed or dropped
// audit line never fails the mutation that produced it.

type EventType string

const (
	EventUserKicked     EventType = "user_kicked"
	EventUserBanned     EventType = "user_banned"
	EventGlobalMuteSet  EventType = "global_mute_set"
	EventSessionEnded   EventType = "session_ended"
	EventSessionCreated EventType = "session_created"
)

type Event struct {
	Type      EventType
	SessionID int64
	ActorID   int64
	TargetID  int64
	Details   map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "moderation").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.SessionID != 0 {
		logger = logger.With().Int64("session_id", event.SessionID).Logger()
	}
	if event.ActorID != 0 {
		logger = logger.With().Int64("actor_id", event.ActorID).Logger()
	}
	if event.TargetID != 0 {
		logger = logger.With().Int64("target_id", event.TargetID).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("moderation audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
