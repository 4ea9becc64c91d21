package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/middleware"
	"github.com/gavelclass/interact-server-go/internal/service"
	"github.com/gavelclass/interact-server-go/internal/sse"
)

type EventsHandler struct {
	broker            *sse.Broker
	snapshotService   *service.SnapshotService
	moderationService *service.ModerationService
}

func NewEventsHandler(
	broker *sse.Broker,
	snapshotService *service.SnapshotService,
	moderationService *service.ModerationService,
) *EventsHandler {
	return &EventsHandler{
		broker:            broker,
		snapshotService:   snapshotService,
		moderationService: moderationService,
	}
}

// GET /v1/sessions/{id}/stream
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()

	// Snapshot assembly doubles as the existence check.
	snapshot, err := h.snapshotService.Get(ctx, sessionID)
	if err != nil {
		writeServiceError(w, err, "stream preflight")
		return
	}

	banned, err := h.moderationService.IsBanned(ctx, sessionID, user.ID)
	if err != nil {
		writeServiceError(w, err, "stream preflight")
		return
	}
	if banned {
		writeError(w, apperrors.Forbidden("you have been removed from this session"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(sessionID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Int64("sessionId", sessionID).
		Int64("userId", user.ID).
		Int("clientCount", h.broker.ClientCount(sessionID)).
		Msg("sse connection established")

	// Observers start from a full snapshot, then apply deltas.
	if err := h.sendRawEvent(w, flusher, sse.MarshalEvent(sse.EventSnapshot, snapshot)); err != nil {
		log.Error().Err(err).Msg("failed to send initial snapshot")
		return
	}

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Int64("sessionId", sessionID).
				Int64("userId", user.ID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Int64("sessionId", sessionID).
				Int64("userId", user.ID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Int64("sessionId", sessionID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
