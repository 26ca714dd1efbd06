package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
)

// Seating chart limits.  Generation is bounded so one bad request
// cannot insert an unbounded number of seat rows.
const (
	maxChartRows        = 100
	maxChartSeatsPerRow = 200
)

// AdminHandler groups the management endpoints: event catalog CRUD,
// session creation with seating-chart generation, the full reservation
// report and the analytics counters.  All routes require the ADMIN
// role, enforced by middleware.
type AdminHandler struct {
	Events   *repository.EventRepo
	Sessions *repository.SessionRepo
	Ledger   *repository.LedgerRepo
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(events *repository.EventRepo, sessions *repository.SessionRepo, ledger *repository.LedgerRepo) *AdminHandler {
	if events == nil || sessions == nil || ledger == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Events: events, Sessions: sessions, Ledger: ledger}
}

type eventReq struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	ImageURL    *string `json:"image_url"`
	StartsAt    string  `json:"starts_at"` // RFC3339
	EndsAt      *string `json:"ends_at"`   // RFC3339, optional
}

// decodeEvent validates an eventReq and builds the model value.
func decodeEvent(req eventReq) (model.Event, string) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return model.Event{}, "title is required"
	}
	starts, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return model.Event{}, "starts_at must be RFC3339"
	}
	e := model.Event{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		ImageURL:    req.ImageURL,
		StartsAt:    starts,
	}
	if req.EndsAt != nil && *req.EndsAt != "" {
		ends, err := time.Parse(time.RFC3339, *req.EndsAt)
		if err != nil {
			return model.Event{}, "ends_at must be RFC3339"
		}
		if !ends.After(starts) {
			return model.Event{}, "ends_at must be after starts_at"
		}
		e.EndsAt = &ends
	}
	return e, ""
}

// CreateEvent handles POST /v1/admin/events.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	e, msg := decodeEvent(req)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if err := h.Events.Create(c.Request().Context(), &e); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create event failed"})
	}
	return c.JSON(http.StatusCreated, toEventResp(e))
}

// UpdateEvent handles PUT /v1/admin/events/:id.
func (h *AdminHandler) UpdateEvent(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	e, msg := decodeEvent(req)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	e.ID = eventID
	if err := h.Events.Update(c.Request().Context(), &e); err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update event failed"})
	}
	return c.JSON(http.StatusOK, toEventResp(e))
}

// DeleteEvent handles DELETE /v1/admin/events/:id.  Sessions, seats
// and reservations of the event are removed by cascade.
func (h *AdminHandler) DeleteEvent(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Events.Delete(c.Request().Context(), eventID); err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete event failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type createSessionReq struct {
	EventID           uint64   `json:"event_id"`
	Title             string   `json:"title"`
	StartsAt          string   `json:"starts_at"` // RFC3339
	EndsAt            string   `json:"ends_at"`   // RFC3339
	Rows              int      `json:"rows"`
	SeatsPerRow       int      `json:"seats_per_row"`
	VIPRows           []string `json:"vip_rows"`
	GeneralPriceCents uint32   `json:"general_price_cents"`
	VIPPriceCents     uint32   `json:"vip_price_cents"`
}

// CreateSession handles POST /v1/admin/sessions.  It creates the
// session and generates its full seating chart in one transaction:
// rows are labelled A, B, C, ... and each row gets seats_per_row
// numbered seats.  Rows listed in vip_rows become VIP seats priced at
// vip_price_cents; all others are GENERAL.
func (h *AdminHandler) CreateSession(c echo.Context) error {
	var req createSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.EventID == 0 || req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and title are required"})
	}
	if req.Rows < 1 || req.Rows > maxChartRows {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rows out of range"})
	}
	if req.SeatsPerRow < 1 || req.SeatsPerRow > maxChartSeatsPerRow {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats_per_row out of range"})
	}
	starts, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}
	ends, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be RFC3339"})
	}
	if !ends.After(starts) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}

	ctx := c.Request().Context()
	if _, err := h.Events.GetByID(ctx, req.EventID); err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	vip := make(map[string]struct{}, len(req.VIPRows))
	for _, label := range req.VIPRows {
		vip[strings.ToUpper(strings.TrimSpace(label))] = struct{}{}
	}

	seats := make([]model.Seat, 0, req.Rows*req.SeatsPerRow)
	for r := 0; r < req.Rows; r++ {
		label := indexToRowLabel(r)
		seatType := model.SeatGeneral
		price := req.GeneralPriceCents
		if _, ok := vip[label]; ok {
			seatType = model.SeatVIP
			price = req.VIPPriceCents
		}
		for n := 1; n <= req.SeatsPerRow; n++ {
			seats = append(seats, model.Seat{
				RowLabel:   label,
				SeatNumber: uint32(n),
				SeatType:   seatType,
				PriceCents: price,
			})
		}
	}

	s := model.Session{EventID: req.EventID, Title: req.Title, StartsAt: starts, EndsAt: ends}
	if err := h.Sessions.CreateWithSeats(ctx, &s, seats); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create session failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"session_id": s.ID,
		"seats":      len(seats),
	})
}

// ListAllReservations handles GET /v1/admin/reservations.
func (h *AdminHandler) ListAllReservations(c echo.Context) error {
	details, err := h.Ledger.ListAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": details,
	})
}

// Analytics handles GET /v1/admin/analytics.  Returns the global and
// per-event reservation counters.
func (h *AdminHandler) Analytics(c echo.Context) error {
	total, confirmed, events, err := h.Ledger.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load analytics"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total_reservations":     total,
		"confirmed_reservations": confirmed,
		"events":                 events,
	})
}
