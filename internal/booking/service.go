package booking

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/clock"
	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// Ledger is the persistence collaborator for reservation rows.  All
// mutation goes through WithTx; the implementation must provide at
// least serializable-equivalent isolation for the check-then-write
// methods, e.g. by locking the seat rows of the session inside the
// transaction.  Methods documented as tx-only must not be called
// outside a WithTx closure.
type Ledger interface {
	// WithTx runs fn inside one atomic transaction.  Nested calls
	// join the surrounding transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// LockSeats loads the given seats of a session and locks their
	// rows for the remainder of the transaction, serializing
	// concurrent holds on overlapping seat sets.  Tx-only.  Seats are
	// returned in ascending ID order; unknown IDs are simply absent.
	LockSeats(ctx context.Context, sessionID uint64, seatIDs []uint64) ([]model.Seat, error)

	// ActiveOnSeats returns every reservation touching the given
	// seats that is active at the supplied instant.
	ActiveOnSeats(ctx context.Context, sessionID uint64, seatIDs []uint64, now time.Time) ([]model.Reservation, error)

	// CreatePending inserts the given PENDING rows and populates
	// their IDs.  Tx-only.
	CreatePending(ctx context.Context, res []*model.Reservation) error

	// GetForUpdate loads one reservation and locks its row.  Returns
	// sql.ErrNoRows via the caller's errors.Is check when absent.
	// Tx-only.
	GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error)

	// OtherConfirmedOnSeat reports whether a different reservation on
	// the same seat is already CONFIRMED.
	OtherConfirmedOnSeat(ctx context.Context, seatID, excludeID uint64) (bool, error)

	// MarkConfirmed sets the row CONFIRMED and clears the hold window.
	// Tx-only.
	MarkConfirmed(ctx context.Context, id uint64) error

	// MarkCancelled sets the row CANCELLED.  Tx-only.
	MarkCancelled(ctx context.Context, id uint64) error

	// SessionSnapshot loads every seat of the session together with
	// its non-cancelled reservation rows, in row/seat order.  Reads a
	// consistent snapshot; takes no locks.
	SessionSnapshot(ctx context.Context, sessionID uint64) ([]SeatReservations, error)

	// IsNotFound reports whether err means "no such row" in this
	// store.
	IsNotFound(err error) bool
}

// Notifier receives seat-status deltas after a ledger transaction has
// durably committed.  Delivery is fire-and-forget; implementations
// must never block the caller for long or surface errors.
type Notifier interface {
	Publish(sessionID, seatID uint64, status SeatStatus)
}

// DefaultHoldTTL is the hold window applied when no override is
// configured.  It must be identical across all instances sharing a
// ledger.
const DefaultHoldTTL = 5 * time.Minute

// Service orchestrates the conflict arbiter and the notifier behind
// the hold, confirm and cancel operations exposed to the request
// layer.
type Service struct {
	ledger   Ledger
	notifier Notifier
	clock    clock.Clock
	holdTTL  time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithHoldTTL overrides the default hold window for new holds.
func WithHoldTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// NewService constructs the reservation service.  The notifier may be
// nil, in which case state changes are committed without fanout.
func NewService(ledger Ledger, notifier Notifier, clk clock.Clock, opts ...Option) *Service {
	svc := &Service{
		ledger:   ledger,
		notifier: notifier,
		clock:    clk,
		holdTTL:  DefaultHoldTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// HoldResult is returned by a successful Hold: one reservation per
// requested seat, all sharing the same expiry.
type HoldResult struct {
	ReservationIDs []uint64  `json:"reservation_ids"`
	SeatIDs        []uint64  `json:"seat_ids"`
	HoldExpiresAt  time.Time `json:"hold_expires_at"`
}

// Hold places a time-boxed claim on every requested seat of a session,
// all-or-nothing.  If any seat carries an active reservation the whole
// batch fails with ErrSeatUnavailable and no rows are created.
func (s *Service) Hold(ctx context.Context, sessionID, userID uint64, seatIDs []uint64) (HoldResult, error) {
	unique := dedupe(seatIDs)
	if len(unique) == 0 {
		return HoldResult{}, ErrNotFound
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.holdTTL)
	var created []*model.Reservation

	err := s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		// Locking the seat rows first serializes concurrent holds on
		// overlapping seat sets: the loser blocks here and then sees
		// the winner's PENDING rows in the conflict check.
		seats, err := s.ledger.LockSeats(txCtx, sessionID, unique)
		if err != nil {
			return err
		}
		if len(seats) != len(unique) {
			return ErrNotFound
		}

		active, err := s.ledger.ActiveOnSeats(txCtx, sessionID, unique, now)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return ErrSeatUnavailable
		}

		exp := expiresAt
		created = make([]*model.Reservation, 0, len(seats))
		for _, seat := range seats {
			created = append(created, &model.Reservation{
				SeatID:        seat.ID,
				SessionID:     sessionID,
				UserID:        userID,
				Status:        model.ReservationPending,
				HoldExpiresAt: &exp,
			})
		}
		return s.ledger.CreatePending(txCtx, created)
	})
	if err != nil {
		return HoldResult{}, err
	}

	result := HoldResult{HoldExpiresAt: expiresAt}
	for _, r := range created {
		result.ReservationIDs = append(result.ReservationIDs, r.ID)
		result.SeatIDs = append(result.SeatIDs, r.SeatID)
		s.publish(sessionID, r.SeatID, StatusHeld)
	}
	return result, nil
}

// Confirm finalises a pending hold.  It fails with ErrNotFound when
// the reservation is unknown, not owned by the caller or not PENDING;
// with ErrHoldExpired when the hold window has closed; and with
// ErrSeatUnavailable when another reservation on the seat was
// confirmed in the meantime.
func (s *Service) Confirm(ctx context.Context, reservationID, userID uint64) (model.Reservation, error) {
	now := s.clock.Now()
	var res model.Reservation

	err := s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.ledger.GetForUpdate(txCtx, reservationID)
		if err != nil {
			if s.ledger.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if r.UserID != userID || r.Status != model.ReservationPending {
			return ErrNotFound
		}
		if r.HoldExpiresAt == nil || !r.HoldExpiresAt.After(now) {
			return ErrHoldExpired
		}

		// Defends against a hold that slipped past the hold-time
		// exclusion through a stale retry: if someone else confirmed
		// the seat, this hold loses.
		taken, err := s.ledger.OtherConfirmedOnSeat(txCtx, r.SeatID, r.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrSeatUnavailable
		}

		if err := s.ledger.MarkConfirmed(txCtx, r.ID); err != nil {
			return err
		}
		r.Status = model.ReservationConfirmed
		r.HoldExpiresAt = nil
		res = r
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}

	s.publish(res.SessionID, res.SeatID, StatusBooked)
	return res, nil
}

// Cancel releases a reservation owned by the caller.  Cancelling an
// already-cancelled or already-expired hold is a no-op success; only a
// transition out of an active state triggers a notification.
func (s *Service) Cancel(ctx context.Context, reservationID, userID uint64) error {
	now := s.clock.Now()
	var (
		sessionID uint64
		seatID    uint64
		notify    bool
	)

	err := s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.ledger.GetForUpdate(txCtx, reservationID)
		if err != nil {
			if s.ledger.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if r.UserID != userID {
			return ErrNotFound
		}
		if r.Status == model.ReservationCancelled {
			return nil
		}
		notify = r.Active(now)
		sessionID, seatID = r.SessionID, r.SeatID
		return s.ledger.MarkCancelled(txCtx, r.ID)
	})
	if err != nil {
		return err
	}

	if notify {
		s.publish(sessionID, seatID, StatusAvailable)
	}
	return nil
}

// ListSeatStatus projects the whole session's availability against one
// shared timestamp.  Reads a snapshot; never locks.
func (s *Service) ListSeatStatus(ctx context.Context, sessionID uint64) ([]SeatStatusEntry, error) {
	seats, err := s.ledger.SessionSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ProjectAll(seats, s.clock.Now()), nil
}

// publish fans a delta out after commit.  A notifier failure can only
// cause read-after-write staleness for observers, which their own
// resynchronization bounds, so it is never surfaced to the caller.
func (s *Service) publish(sessionID, seatID uint64, status SeatStatus) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("booking: notifier panic for session %d seat %d: %v", sessionID, seatID, rec)
		}
	}()
	s.notifier.Publish(sessionID, seatID, status)
}

// dedupe drops zero and duplicate seat IDs while preserving order.
func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
