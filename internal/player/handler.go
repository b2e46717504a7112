package player

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"player-orchestrator/internal/platform/metrics"
)

// Handler exposes player orchestration endpoints using go-chi.
type Handler struct {
	ctrl    *Controller
	doc     *HostDocument
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Controller, HostDocument,
// Logger, and optional Metrics. Metrics may be nil to disable metric
// recording (e.g. in tests).
func NewHandler(ctrl *Controller, doc *HostDocument, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{ctrl: ctrl, doc: doc, log: log, metrics: m}
}

// registerElementRequest is the body of POST /elements.
type registerElementRequest struct {
	ID         ElementID         `json:"id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// RegisterElement handles POST /elements: the host page announces a video
// element that takeover bindings may adopt.
func (h *Handler) RegisterElement(w http.ResponseWriter, r *http.Request) {
	var req registerElementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		h.log.Debug("invalid element body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.doc.Register(NewElement(req.ID, req.Attributes))
	h.log.Debug("element registered", slog.String("element_id", string(req.ID)))
	w.WriteHeader(http.StatusCreated)
}

// BindPlayer handles POST /players.
// Body: { "mode": "stream_link", "reference": "my_playlist.m3u8", ... }.
func (h *Handler) BindPlayer(w http.ResponseWriter, r *http.Request) {
	var req BindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid bind body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	req.ClientIP = clientIP(r)

	b, err := h.ctrl.Bind(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrAdoptionAbandoned):
			h.log.Info("bind rejected, takeover target missing",
				slog.String("element_id", string(req.ElementID)))
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, ErrUnsupportedEngine):
			writeError(w, http.StatusUnprocessableEntity, err)
		default:
			h.log.Error("bind failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	snap, err := h.ctrl.Snapshot(b.ID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// GetPlayer handles GET /players/{player_id}.
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id := PlayerID(chi.URLParam(r, "player_id"))

	snap, err := h.ctrl.Snapshot(id)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// updateSourceRequest is the body of PUT /players/{player_id}/source.
type updateSourceRequest struct {
	Reference string            `json:"reference"`
	Fields    map[string]string `json:"fields,omitempty"`
	Config    *SecureURLConfig  `json:"config,omitempty"`
}

// UpdateSource handles PUT /players/{player_id}/source: the bound value or
// configuration changed and the player must re-evaluate.
func (h *Handler) UpdateSource(w http.ResponseWriter, r *http.Request) {
	id := PlayerID(chi.URLParam(r, "player_id"))

	var req updateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.ctrl.UpdateSource(r.Context(), id, req.Reference, req.Fields, req.Config); err != nil {
		h.playerError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Play handles POST /players/{player_id}/play. Segment loading starts here,
// not at bind time.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	id := PlayerID(chi.URLParam(r, "player_id"))
	if err := h.ctrl.Play(id); err != nil {
		h.playerError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Pause handles POST /players/{player_id}/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	id := PlayerID(chi.URLParam(r, "player_id"))
	if err := h.ctrl.Pause(id); err != nil {
		h.playerError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ToggleFormat handles POST /players/{player_id}/toggle-format.
func (h *Handler) ToggleFormat(w http.ResponseWriter, r *http.Request) {
	id := PlayerID(chi.URLParam(r, "player_id"))
	if err := h.ctrl.ToggleFormat(r.Context(), id); err != nil {
		h.playerError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// playerEventRequest is the body of POST /players/{player_id}/events.
type playerEventRequest struct {
	Type       string             `json:"type"`
	MediaError *MediaError        `json:"media_error,omitempty"`
	Violation  *SecurityViolation `json:"violation,omitempty"`
}

// PostEvent handles POST /players/{player_id}/events: browser-side signals
// (element errors, security-policy violations, resizes) delivered by the host.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	id := PlayerID(chi.URLParam(r, "player_id"))

	var req playerEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch req.Type {
	case "element_error":
		if req.MediaError == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := h.ctrl.HandleMediaError(id, *req.MediaError); err != nil {
			h.playerError(w, id, err)
			return
		}
	case "security_violation":
		if req.Violation == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// Browser violation events carry no session identity; every active
		// session sees the signal.
		h.ctrl.HandleSecurityViolation(*req.Violation)
	case "resize":
		if err := h.ctrl.HandleResize(id); err != nil {
			h.playerError(w, id, err)
			return
		}
	default:
		h.log.Debug("unknown event type", slog.String("type", req.Type))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// UnbindPlayer handles DELETE /players/{player_id}.
func (h *Handler) UnbindPlayer(w http.ResponseWriter, r *http.Request) {
	id := PlayerID(chi.URLParam(r, "player_id"))
	if err := h.ctrl.Unbind(id); err != nil {
		h.playerError(w, id, err)
		return
	}
	h.log.Info("player unbound", slog.String("player_id", string(id)))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) playerError(w http.ResponseWriter, id PlayerID, err error) {
	switch {
	case errors.Is(err, ErrPlayerNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrNotAttached), errors.Is(err, ErrSessionDisposed):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, ErrAdoptionAbandoned):
		writeError(w, http.StatusConflict, err)
	default:
		h.log.Error("player operation failed",
			slog.String("player_id", string(id)),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// clientIP extracts the caller's address for token signing.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
