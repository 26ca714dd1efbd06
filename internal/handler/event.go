package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
)

// EventHandler serves the public event catalog.
type EventHandler struct {
	Events   *repository.EventRepo
	Sessions *repository.SessionRepo
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *repository.EventRepo, sessions *repository.SessionRepo) *EventHandler {
	if events == nil || sessions == nil {
		panic("nil repository passed to NewEventHandler")
	}
	return &EventHandler{Events: events, Sessions: sessions}
}

type eventResp struct {
	ID          uint64  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	ImageURL    *string `json:"image_url,omitempty"`
	StartsAt    string  `json:"starts_at"`
	EndsAt      *string `json:"ends_at,omitempty"`
}

func toEventResp(e model.Event) eventResp {
	resp := eventResp{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		ImageURL:    e.ImageURL,
		StartsAt:    e.StartsAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if e.EndsAt != nil {
		s := e.EndsAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.EndsAt = &s
	}
	return resp
}

// ListEvents handles GET /v1/events.  Returns all events ordered by
// start time.
func (h *EventHandler) ListEvents(c echo.Context) error {
	events, err := h.Events.ListAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load events"})
	}
	items := make([]eventResp, 0, len(events))
	for _, e := range events {
		items = append(items, toEventResp(e))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": items,
	})
}

// GetEvent handles GET /v1/events/:id.  Returns the event along with
// its sessions so clients can render the schedule in one request.
func (h *EventHandler) GetEvent(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	e, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	sessions, err := h.Sessions.ListByEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load sessions"})
	}
	items := make([]sessionResp, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionResp{
			ID: s.ID, EventID: s.EventID, Title: s.Title, StartsAt: s.StartsAt, EndsAt: s.EndsAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"event":    toEventResp(e),
		"sessions": items,
	})
}
