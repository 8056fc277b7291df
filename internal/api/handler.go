package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"traffic-telemetry/internal/broadcast"
	"traffic-telemetry/internal/platform/metrics"
	"traffic-telemetry/internal/traffic"
)

// Live is the live subscription side of the broadcast loop.
type Live interface {
	Connect(ctx context.Context, sub broadcast.Subscriber) error
	Disconnect(id string) bool
	Subscribers() int
}

// Handler exposes the query and live subscription endpoints using go-chi.
type Handler struct {
	svc      *Service
	live     Live
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewHandler returns a Handler. limiter bounds WebSocket connection attempts
// and may be nil for no limit. Metrics may be nil to disable metric recording.
func NewHandler(svc *Service, live Live, limiter *rate.Limiter, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		svc:     svc,
		live:    live,
		limiter: limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log,
		metrics: m,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorBody{Error: msg})
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Info())
}

// GetDetections handles GET /api/detections.
func (h *Handler) GetDetections(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Detections()
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetSignals handles GET /api/signals.
func (h *Handler) GetSignals(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Signals()
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetJunctions handles GET /api/junctions.
func (h *Handler) GetJunctions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Junctions())
}

// GetJunction handles GET /api/junctions/{junction_id}.
func (h *Handler) GetJunction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "junction_id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing junction id")
		return
	}

	detail, err := h.svc.Junction(id)
	if err != nil {
		if errors.Is(err, traffic.ErrUnknownJunction) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error("junction lookup failed", slog.String("junction_id", id), slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// GetAnalytics handles GET /api/analytics?hours=N.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	hours := DefaultAnalyticsHours
	if s := r.URL.Query().Get("hours"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "hours must be an integer")
			return
		}
		hours = n
	}

	resp, err := h.svc.Analytics(hours)
	if err != nil {
		if errors.Is(err, ErrInvalidHours) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("analytics failed", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Subscribe handles GET /ws. The connection is greeted with the ready
// message, then receives one update per tick until either side closes it.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		if h.metrics != nil {
			h.metrics.IncConnectionsRejected()
		}
		h.writeError(w, http.StatusTooManyRequests, "too many connection attempts")
		return
	}

	enc, err := broadcast.ParseEncoding(r.URL.Query().Get("encoding"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sub := broadcast.NewWSSubscriber(conn, enc)
	if err := h.live.Connect(r.Context(), sub); err != nil {
		h.log.Warn("subscriber rejected",
			slog.String("subscriber_id", sub.ID()),
			slog.String("error", err.Error()))
		_ = sub.Close()
		return
	}

	if err := sub.ReadPump(r.Context()); err != nil {
		h.log.Debug("websocket read ended", slog.String("subscriber_id", sub.ID()), slog.String("error", err.Error()))
	}
	h.live.Disconnect(sub.ID())
}
