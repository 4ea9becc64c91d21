package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/middleware"
	"github.com/gavelclass/interact-server-go/internal/model"
	"github.com/gavelclass/interact-server-go/internal/service"
)

type SessionHandler struct {
	sessionService  *service.SessionService
	snapshotService *service.SnapshotService
}

func NewSessionHandler(
	sessionService *service.SessionService,
	snapshotService *service.SnapshotService,
) *SessionHandler {
	return &SessionHandler{
		sessionService:  sessionService,
		snapshotService: snapshotService,
	}
}

func (h *SessionHandler) Register(r chi.Router) {
	r.Post("/", h.CreateSession)
	r.Post("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/mute", h.SetGlobalMute)
	r.Get("/{id}/snapshot", h.GetSnapshot)
}

// POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	session, err := h.sessionService.Create(r.Context(), service.CreateSessionParams{
		Title:         body.Title,
		RequesterID:   user.ID,
		RequesterRole: user.Role,
	})
	if err != nil {
		writeServiceError(w, err, "create session")
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// POST /v1/sessions/{id}/status
func (h *SessionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Status model.SessionStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	session, err := h.sessionService.UpdateStatus(r.Context(), service.UpdateStatusParams{
		SessionID:     sessionID,
		Status:        body.Status,
		RequesterID:   user.ID,
		RequesterRole: user.Role,
	})
	if err != nil {
		writeServiceError(w, err, "update session status")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// POST /v1/sessions/{id}/mute
func (h *SessionHandler) SetGlobalMute(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		GlobalMute *bool `json:"globalMute"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.GlobalMute == nil {
		writeError(w, apperrors.InvalidInput("globalMute", "must be a boolean"))
		return
	}

	session, err := h.sessionService.SetGlobalMute(r.Context(), service.SetGlobalMuteParams{
		SessionID:     sessionID,
		RequesterID:   user.ID,
		RequesterRole: user.Role,
		GlobalMute:    *body.GlobalMute,
	})
	if err != nil {
		writeServiceError(w, err, "set global mute")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// GET /v1/sessions/{id}/snapshot
func (h *SessionHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := h.snapshotService.Get(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err, "get snapshot")
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// writeServiceError maps business results to their status codes and hides
// everything else behind a 500.
func writeServiceError(w http.ResponseWriter, err error, op string) {
	if !apperrors.IsAppError(err) {
		log.Error().Err(err).Str("op", op).Msg("unexpected service error")
	}
	writeError(w, err)
}
