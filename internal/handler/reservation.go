package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/booking"
	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/queue"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	queue_publisher "github.com/iliyamo/event-seat-reservation/internal/service"
)

// ReservationHandler exposes the hold / confirm / cancel flow and the
// reservation listings for authenticated users.  All concurrency
// decisions are made by the booking service; the handler only
// translates its sentinel errors into HTTP responses.
type ReservationHandler struct {
	Svc      *booking.Service
	Ledger   *repository.LedgerRepo
	Sessions *repository.SessionRepo
}

// NewReservationHandler constructs a ReservationHandler.  All
// dependencies must be non-nil.
func NewReservationHandler(svc *booking.Service, ledger *repository.LedgerRepo, sessions *repository.SessionRepo) *ReservationHandler {
	if svc == nil || ledger == nil || sessions == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc, Ledger: ledger, Sessions: sessions}
}

// HoldSeats handles POST /v1/sessions/:id/hold.  The body must carry a
// "seat_ids" array.  The hold is all-or-nothing: if any requested seat
// is taken the whole request fails with 409 and no holds are created.
func (h *ReservationHandler) HoldSeats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx := c.Request().Context()
	// ensure session exists so a bad ID reads as 404, not an empty hold
	if _, err := h.Sessions.GetByID(ctx, sessionID); err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	var body struct {
		SeatIDs []uint64 `json:"seat_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.SeatIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}

	result, err := h.Svc.Hold(ctx, sessionID, userID, body.SeatIDs)
	if err != nil {
		return h.bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// Confirm handles POST /v1/reservations/:id/confirm.  On success the
// confirmation is also published to the message broker for downstream
// consumers; broker failures never affect the response.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	res, err := h.Svc.Confirm(c.Request().Context(), resID, userID)
	if err != nil {
		return h.bookingError(c, err)
	}

	go h.publishConfirmed(res)

	return c.JSON(http.StatusOK, echo.Map{
		"reservation_id": res.ID,
		"seat_id":        res.SeatID,
		"session_id":     res.SessionID,
		"status":         res.Status,
	})
}

// Cancel handles POST /v1/reservations/:id/cancel.  Cancelling is
// idempotent: repeating the call on an already-cancelled reservation
// succeeds again with 204.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	if err := h.Svc.Cancel(c.Request().Context(), resID, userID); err != nil {
		return h.bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListReservations handles GET /v1/my-reservations.  Returns all
// reservations of the current user, newest first.
func (h *ReservationHandler) ListReservations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Ledger.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": details,
	})
}

// bookingError maps the booking sentinel errors onto HTTP responses.
func (h *ReservationHandler) bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation or seat not found"})
	case errors.Is(err, booking.ErrSeatUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat unavailable"})
	case errors.Is(err, booking.ErrHoldExpired):
		return c.JSON(http.StatusConflict, echo.Map{"error": "hold expired"})
	case errors.Is(err, booking.ErrTransientStore):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporary conflict, retry"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

// publishConfirmed loads the joined reservation view and pushes a
// confirmation event to the broker.  Runs out of band; errors are
// logged and dropped.
func (h *ReservationHandler) publishConfirmed(res model.Reservation) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	detail, err := h.Ledger.GetDetail(ctx, res.ID)
	if err != nil {
		log.Printf("reservation: load detail for event publish failed: %v", err)
		return
	}
	seat := model.Seat{RowLabel: detail.RowLabel, SeatNumber: detail.SeatNumber}
	ev := queue.ReservationConfirmedEvent{
		ReservationID: detail.ID,
		UserID:        detail.UserID,
		SessionID:     detail.SessionID,
		SessionTitle:  detail.SessionTitle,
		EventID:       detail.EventID,
		EventTitle:    detail.EventTitle,
		SeatLabel:     seat.Label(),
		PriceCents:    detail.PriceCents,
		ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	_ = queue_publisher.PublishReservationConfirmed(ctx, ev)
}
