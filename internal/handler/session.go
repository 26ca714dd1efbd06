package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/booking"
	"github.com/iliyamo/event-seat-reservation/internal/notifier"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
)

// streamHeartbeat is how often the seat stream emits a comment line to
// keep idle connections from being reaped by proxies.
const streamHeartbeat = 25 * time.Second

// SessionHandler serves the public session views: session details,
// the projected seat map and the live seat-update stream.  None of
// these endpoints require authentication; guests browse seats before
// deciding to register.
type SessionHandler struct {
	Sessions *repository.SessionRepo
	Svc      *booking.Service
	Notifier *notifier.Registry
}

// NewSessionHandler constructs a SessionHandler.  The notifier may be
// nil, in which case the stream endpoint reports 503.
func NewSessionHandler(sessions *repository.SessionRepo, svc *booking.Service, n *notifier.Registry) *SessionHandler {
	if sessions == nil || svc == nil {
		panic("nil dependency passed to NewSessionHandler")
	}
	return &SessionHandler{Sessions: sessions, Svc: svc, Notifier: n}
}

type sessionResp struct {
	ID       uint64    `json:"id"`
	EventID  uint64    `json:"event_id"`
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// GetSession handles GET /v1/sessions/:id.
func (h *SessionHandler) GetSession(c echo.Context) error {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	s, err := h.Sessions.GetByID(c.Request().Context(), sessionID)
	if err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, sessionResp{
		ID: s.ID, EventID: s.EventID, Title: s.Title, StartsAt: s.StartsAt, EndsAt: s.EndsAt,
	})
}

// ListSeats handles GET /v1/sessions/:id/seats.  Seat status is
// derived at read time; a seat whose hold has lapsed shows as
// AVAILABLE even though its PENDING row still exists.
func (h *SessionHandler) ListSeats(c echo.Context) error {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Sessions.GetByID(ctx, sessionID); err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	seats, err := h.Svc.ListSeatStatus(ctx, sessionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seats"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session_id": sessionID,
		"seats":      seats,
	})
}

// StreamSeats handles GET /v1/sessions/:id/stream.  It serves seat
// deltas as server-sent events.  Delivery is best-effort and
// at-most-once: a client that reconnects must refetch
// /v1/sessions/:id/seats to resynchronize before trusting the stream.
func (h *SessionHandler) StreamSeats(c echo.Context) error {
	if h.Notifier == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "streaming disabled"})
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Sessions.GetByID(ctx, sessionID); err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	sub := h.Notifier.Subscribe(sessionID)
	defer h.Notifier.Unsubscribe(sub)

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case d := <-sub.C:
			payload, err := json.Marshal(d)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: seat_update\ndata: %s\n\n", payload); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
