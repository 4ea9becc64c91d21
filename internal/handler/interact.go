package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/middleware"
	"github.com/gavelclass/interact-server-go/internal/service"
)

// InteractHandler carries the in-session actions: hand raises, the speech
// timer, polls, and moderation.
type InteractHandler struct {
	handService       *service.HandService
	timerService      *service.TimerService
	pollService       *service.PollService
	moderationService *service.ModerationService
}

func NewInteractHandler(
	handService *service.HandService,
	timerService *service.TimerService,
	pollService *service.PollService,
	moderationService *service.ModerationService,
) *InteractHandler {
	return &InteractHandler{
		handService:       handService,
		timerService:      timerService,
		pollService:       pollService,
		moderationService: moderationService,
	}
}

func (h *InteractHandler) Register(r chi.Router) {
	r.Post("/{id}/hand", h.HandAction)
	r.Post("/{id}/timer", h.TimerAction)
	r.Post("/{id}/vote", h.VoteAction)
	r.Post("/{id}/kick", h.Kick)
}

// POST /v1/sessions/{id}/hand
func (h *InteractHandler) HandAction(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	var result *service.QueueResult
	switch body.Action {
	case "raise":
		result, err = h.handService.Raise(r.Context(), sessionID, user.ID)
	case "cancel":
		result, err = h.handService.Cancel(r.Context(), sessionID, user.ID)
	default:
		writeError(w, apperrors.InvalidInput("action", "must be raise or cancel"))
		return
	}
	if err != nil {
		writeServiceError(w, err, "hand action")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"action":   body.Action,
		"queue":    result.Queue,
		"position": result.Position,
	})
}

// POST /v1/sessions/{id}/timer
func (h *InteractHandler) TimerAction(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Action      string `json:"action"`
		SpeakerID   int64  `json:"speakerId"`
		DurationSec int    `json:"durationSec"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	switch body.Action {
	case "start":
		timer, err := h.timerService.Start(r.Context(), service.StartTimerParams{
			SessionID:     sessionID,
			RequesterID:   user.ID,
			RequesterRole: user.Role,
			SpeakerID:     body.SpeakerID,
			DurationSec:   body.DurationSec,
		})
		if err != nil {
			writeServiceError(w, err, "start timer")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"action": "start", "timer": timer})

	case "stop":
		timer, err := h.timerService.Stop(r.Context(), service.StopTimerParams{
			SessionID:     sessionID,
			RequesterID:   user.ID,
			RequesterRole: user.Role,
		})
		if err != nil {
			writeServiceError(w, err, "stop timer")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"action": "stop", "timer": timer})

	default:
		writeError(w, apperrors.InvalidInput("action", "must be start or stop"))
	}
}

// POST /v1/sessions/{id}/vote
func (h *InteractHandler) VoteAction(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Action    string            `json:"action"`
		Question  string            `json:"question"`
		Options   []string          `json:"options"`
		Multiple  bool              `json:"multiple"`
		Anonymous bool              `json:"anonymous"`
		PollID    int64             `json:"pollId"`
		Selected  []json.RawMessage `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	var tally *service.Tally
	switch body.Action {
	case "create":
		tally, err = h.pollService.Create(r.Context(), service.CreatePollParams{
			SessionID:     sessionID,
			RequesterID:   user.ID,
			RequesterRole: user.Role,
			Question:      body.Question,
			Options:       body.Options,
			Multiple:      body.Multiple,
			Anonymous:     body.Anonymous,
		})

	case "cast":
		if body.PollID <= 0 {
			writeError(w, apperrors.InvalidInput("pollId", "is required"))
			return
		}
		selected, choiceErr := parseChoices(body.Selected)
		if choiceErr != nil {
			writeError(w, choiceErr)
			return
		}
		tally, err = h.pollService.Cast(r.Context(), service.CastVoteParams{
			SessionID: sessionID,
			PollID:    body.PollID,
			UserID:    user.ID,
			Selected:  selected,
		})

	case "close":
		if body.PollID <= 0 {
			writeError(w, apperrors.InvalidInput("pollId", "is required"))
			return
		}
		tally, err = h.pollService.Close(r.Context(), service.ClosePollParams{
			SessionID:     sessionID,
			PollID:        body.PollID,
			RequesterID:   user.ID,
			RequesterRole: user.Role,
		})

	default:
		writeError(w, apperrors.InvalidInput("action", "must be create, cast, or close"))
		return
	}
	if err != nil {
		writeServiceError(w, err, "vote action")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"action": body.Action, "summary": tally})
}

// POST /v1/sessions/{id}/kick
func (h *InteractHandler) Kick(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		UserID int64  `json:"userId"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	err = h.moderationService.Kick(r.Context(), service.KickParams{
		SessionID:     sessionID,
		RequesterID:   user.ID,
		RequesterRole: user.Role,
		TargetUserID:  body.UserID,
		Reason:        body.Reason,
	})
	if err != nil {
		writeServiceError(w, err, "kick user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// parseChoices accepts the wire form of a ballot: a JSON array whose
// elements are option ids (numbers) or option labels (strings).
func parseChoices(raw []json.RawMessage) ([]service.Choice, error) {
	choices := make([]service.Choice, 0, len(raw))
	for _, item := range raw {
		var id int64
		if err := json.Unmarshal(item, &id); err == nil {
			choices = append(choices, service.Choice{OptionID: id})
			continue
		}

		var label string
		if err := json.Unmarshal(item, &label); err == nil {
			choices = append(choices, service.Choice{Label: label})
			continue
		}

		return nil, apperrors.InvalidInput("selected", "entries must be option ids or labels")
	}
	return choices, nil
}
