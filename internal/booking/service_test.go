package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

var errFakeNotFound = errors.New("fake: not found")

// fakeLedger is an in-memory Ledger.  WithTx holds one mutex for the
// whole closure, which mirrors the row-lock serialization the real
// store provides for overlapping seat sets.
type fakeLedger struct {
	mu     sync.Mutex
	nextID uint64
	seats  map[uint64]model.Seat
	rows   map[uint64]*model.Reservation
}

func newFakeLedger(sessionID uint64, seatIDs ...uint64) *fakeLedger {
	l := &fakeLedger{
		seats: make(map[uint64]model.Seat),
		rows:  make(map[uint64]*model.Reservation),
	}
	for i, id := range seatIDs {
		l.seats[id] = model.Seat{
			ID:         id,
			SessionID:  sessionID,
			RowLabel:   "A",
			SeatNumber: uint32(i + 1),
			SeatType:   model.SeatGeneral,
			PriceCents: 1500,
		}
	}
	return l
}

func (l *fakeLedger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

func (l *fakeLedger) LockSeats(ctx context.Context, sessionID uint64, seatIDs []uint64) ([]model.Seat, error) {
	var out []model.Seat
	for _, id := range seatIDs {
		if s, ok := l.seats[id]; ok && s.SessionID == sessionID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *fakeLedger) ActiveOnSeats(ctx context.Context, sessionID uint64, seatIDs []uint64, now time.Time) ([]model.Reservation, error) {
	want := make(map[uint64]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		want[id] = struct{}{}
	}
	var out []model.Reservation
	for _, r := range l.rows {
		if r.SessionID != sessionID {
			continue
		}
		if _, ok := want[r.SeatID]; !ok {
			continue
		}
		if r.Active(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (l *fakeLedger) CreatePending(ctx context.Context, res []*model.Reservation) error {
	for _, r := range res {
		l.nextID++
		r.ID = l.nextID
		cp := *r
		l.rows[r.ID] = &cp
	}
	return nil
}

func (l *fakeLedger) GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	r, ok := l.rows[id]
	if !ok {
		return model.Reservation{}, errFakeNotFound
	}
	return *r, nil
}

func (l *fakeLedger) OtherConfirmedOnSeat(ctx context.Context, seatID, excludeID uint64) (bool, error) {
	for _, r := range l.rows {
		if r.SeatID == seatID && r.ID != excludeID && r.Status == model.ReservationConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLedger) MarkConfirmed(ctx context.Context, id uint64) error {
	r, ok := l.rows[id]
	if !ok {
		return errFakeNotFound
	}
	r.Status = model.ReservationConfirmed
	r.HoldExpiresAt = nil
	return nil
}

func (l *fakeLedger) MarkCancelled(ctx context.Context, id uint64) error {
	r, ok := l.rows[id]
	if !ok {
		return errFakeNotFound
	}
	r.Status = model.ReservationCancelled
	r.HoldExpiresAt = nil
	return nil
}

func (l *fakeLedger) SessionSnapshot(ctx context.Context, sessionID uint64) ([]SeatReservations, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var seats []model.Seat
	for _, s := range l.seats {
		if s.SessionID == sessionID {
			seats = append(seats, s)
		}
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].ID < seats[j].ID })
	out := make([]SeatReservations, 0, len(seats))
	for _, s := range seats {
		sr := SeatReservations{Seat: s}
		for _, r := range l.rows {
			if r.SeatID == s.ID && r.Status != model.ReservationCancelled {
				sr.Reservations = append(sr.Reservations, *r)
			}
		}
		out = append(out, sr)
	}
	return out, nil
}

func (l *fakeLedger) IsNotFound(err error) bool {
	return errors.Is(err, errFakeNotFound)
}

// row returns a copy of a stored reservation for assertions.
func (l *fakeLedger) row(id uint64) model.Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.rows[id]
}

func (l *fakeLedger) rowCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

type published struct {
	sessionID uint64
	seatID    uint64
	status    SeatStatus
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *fakeNotifier) Publish(sessionID, seatID uint64, status SeatStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{sessionID, seatID, status})
}

func (n *fakeNotifier) all() []published {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]published(nil), n.events...)
}

// manualClock is a settable clock for expiry arithmetic.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, seatIDs ...uint64) (*Service, *fakeLedger, *fakeNotifier, *manualClock) {
	t.Helper()
	ledger := newFakeLedger(1, seatIDs...)
	notifier := &fakeNotifier{}
	clk := &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewService(ledger, notifier, clk), ledger, notifier, clk
}

func TestHoldCreatesPendingBatch(t *testing.T) {
	svc, ledger, notifier, clk := newTestService(t, 10, 11)
	ctx := context.Background()

	res, err := svc.Hold(ctx, 1, 7, []uint64{10, 11})
	require.NoError(t, err)
	require.Len(t, res.ReservationIDs, 2)
	assert.Equal(t, []uint64{10, 11}, res.SeatIDs)
	assert.Equal(t, clk.Now().Add(DefaultHoldTTL), res.HoldExpiresAt)

	for _, id := range res.ReservationIDs {
		row := ledger.row(id)
		assert.Equal(t, model.ReservationPending, row.Status)
		assert.Equal(t, uint64(7), row.UserID)
		require.NotNil(t, row.HoldExpiresAt)
		assert.Equal(t, res.HoldExpiresAt, *row.HoldExpiresAt)
	}

	events := notifier.all()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, uint64(1), ev.sessionID)
		assert.Equal(t, StatusHeld, ev.status)
	}
}

func TestHoldDeduplicatesSeatIDs(t *testing.T) {
	svc, ledger, _, _ := newTestService(t, 10)

	res, err := svc.Hold(context.Background(), 1, 7, []uint64{10, 10, 0, 10})
	require.NoError(t, err)
	assert.Len(t, res.ReservationIDs, 1)
	assert.Equal(t, 1, ledger.rowCount())
}

func TestHoldUnknownSeat(t *testing.T) {
	svc, ledger, notifier, _ := newTestService(t, 10)

	_, err := svc.Hold(context.Background(), 1, 7, []uint64{10, 99})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, ledger.rowCount())
	assert.Empty(t, notifier.all())
}

func TestHoldConflictIsAllOrNothing(t *testing.T) {
	svc, ledger, notifier, _ := newTestService(t, 10, 11)
	ctx := context.Background()

	_, err := svc.Hold(ctx, 1, 1, []uint64{11})
	require.NoError(t, err)
	before := ledger.rowCount()
	notifier.events = nil

	// Seat 10 is free, seat 11 is held by someone else: the whole
	// batch must fail and seat 10 must stay untouched.
	_, err = svc.Hold(ctx, 1, 2, []uint64{10, 11})
	assert.ErrorIs(t, err, ErrSeatUnavailable)
	assert.Equal(t, before, ledger.rowCount())
	assert.Empty(t, notifier.all())
}

func TestConcurrentHoldsSingleWinner(t *testing.T) {
	svc, ledger, _, _ := newTestService(t, 10)
	ctx := context.Background()

	const attempts = 16
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			_, err := svc.Hold(ctx, 1, user, []uint64{10})
			errs <- err
		}(uint64(i + 1))
	}
	wg.Wait()
	close(errs)

	wins, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSeatUnavailable):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, ledger.rowCount())
}

func TestConfirmHappyPath(t *testing.T) {
	svc, ledger, notifier, _ := newTestService(t, 10)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)
	notifier.events = nil

	res, err := svc.Confirm(ctx, held.ReservationIDs[0], 7)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, res.Status)
	assert.Nil(t, res.HoldExpiresAt)

	row := ledger.row(res.ID)
	assert.Equal(t, model.ReservationConfirmed, row.Status)
	assert.Nil(t, row.HoldExpiresAt)

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, published{1, 10, StatusBooked}, events[0])
}

func TestConfirmAfterExpiry(t *testing.T) {
	svc, ledger, notifier, clk := newTestService(t, 10)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)
	notifier.events = nil

	clk.Advance(DefaultHoldTTL + time.Second)

	_, err = svc.Confirm(ctx, held.ReservationIDs[0], 7)
	assert.ErrorIs(t, err, ErrHoldExpired)
	// The expired row is left as-is, not rewritten.
	assert.Equal(t, model.ReservationPending, ledger.row(held.ReservationIDs[0]).Status)
	assert.Empty(t, notifier.all())
}

func TestConfirmExactlyAtExpiryFails(t *testing.T) {
	svc, _, _, clk := newTestService(t, 10)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)

	clk.Advance(DefaultHoldTTL)

	_, err = svc.Confirm(ctx, held.ReservationIDs[0], 7)
	assert.ErrorIs(t, err, ErrHoldExpired)
}

func TestConfirmWrongUser(t *testing.T) {
	svc, _, _, _ := newTestService(t, 10)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, held.ReservationIDs[0], 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmUnknownReservation(t *testing.T) {
	svc, _, _, _ := newTestService(t, 10)

	_, err := svc.Confirm(context.Background(), 12345, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmTwice(t *testing.T) {
	svc, _, _, _ := newTestService(t, 10)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, held.ReservationIDs[0], 7)
	require.NoError(t, err)

	// A second confirm sees a non-PENDING row.
	_, err = svc.Confirm(ctx, held.ReservationIDs[0], 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmLosesToConfirmedRival(t *testing.T) {
	svc, ledger, _, clk := newTestService(t, 10)
	ctx := context.Background()

	heldA, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)

	// A's hold lapses, B holds and confirms the same seat.
	clk.Advance(DefaultHoldTTL + time.Second)
	heldB, err := svc.Hold(ctx, 1, 8, []uint64{10})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, heldB.ReservationIDs[0], 8)
	require.NoError(t, err)

	// A's stale confirm must not steal the seat back.
	_, err = svc.Confirm(ctx, heldA.ReservationIDs[0], 7)
	assert.ErrorIs(t, err, ErrHoldExpired)
	assert.Equal(t, model.ReservationConfirmed, ledger.row(heldB.ReservationIDs[0]).Status)

	// Even a hold that somehow still looks open loses once a rival is
	// CONFIRMED; the confirm-time re-check is the last line of defense.
	future := clk.Now().Add(time.Minute)
	ledger.mu.Lock()
	ledger.rows[heldA.ReservationIDs[0]].HoldExpiresAt = &future
	ledger.mu.Unlock()
	_, err = svc.Confirm(ctx, heldA.ReservationIDs[0], 7)
	assert.ErrorIs(t, err, ErrSeatUnavailable)
}

func TestCancelReleasesSeat(t *testing.T) {
	svc, ledger, notifier, _ := newTestService(t, 10)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)
	notifier.events = nil

	require.NoError(t, svc.Cancel(ctx, held.ReservationIDs[0], 7))
	assert.Equal(t, model.ReservationCancelled, ledger.row(held.ReservationIDs[0]).Status)

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, published{1, 10, StatusAvailable}, events[0])

	// The seat is immediately holdable by someone else.
	_, err = svc.Hold(ctx, 1, 8, []uint64{10})
	assert.NoError(t, err)
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, _, notifier, _ := newTestService(t, 10)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)
	notifier.events = nil

	require.NoError(t, svc.Cancel(ctx, held.ReservationIDs[0], 7))
	require.NoError(t, svc.Cancel(ctx, held.ReservationIDs[0], 7))
	// Only the first transition out of an active state notifies.
	assert.Len(t, notifier.all(), 1)
}

func TestCancelExpiredHoldIsSilent(t *testing.T) {
	svc, ledger, notifier, clk := newTestService(t, 10)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)
	notifier.events = nil

	clk.Advance(DefaultHoldTTL + time.Second)

	// Cancelling an already-expired hold succeeds but frees nothing,
	// so observers hear nothing.
	require.NoError(t, svc.Cancel(ctx, held.ReservationIDs[0], 7))
	assert.Equal(t, model.ReservationCancelled, ledger.row(held.ReservationIDs[0]).Status)
	assert.Empty(t, notifier.all())
}

func TestCancelWrongUser(t *testing.T) {
	svc, _, _, _ := newTestService(t, 10)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)

	err = svc.Cancel(ctx, held.ReservationIDs[0], 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmedSeatsRejectNewHolds(t *testing.T) {
	svc, _, _, _ := newTestService(t, 10, 11)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10, 11})
	require.NoError(t, err)
	for _, id := range held.ReservationIDs {
		_, err := svc.Confirm(ctx, id, 7)
		require.NoError(t, err)
	}

	status, err := svc.ListSeatStatus(ctx, 1)
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.Equal(t, StatusBooked, status[0].Status)
	assert.Equal(t, StatusBooked, status[1].Status)

	_, err = svc.Hold(ctx, 1, 8, []uint64{10})
	assert.ErrorIs(t, err, ErrSeatUnavailable)
}

func TestExpiredHoldFreesSeatLazily(t *testing.T) {
	svc, ledger, _, clk := newTestService(t, 10)
	ctx := context.Background()

	heldA, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)

	// While the hold is active the seat is taken.
	_, err = svc.Hold(ctx, 1, 8, []uint64{10})
	assert.ErrorIs(t, err, ErrSeatUnavailable)

	clk.Advance(DefaultHoldTTL + time.Second)

	// After expiry the seat frees without any background job: the old
	// PENDING row stays in the ledger untouched.
	heldB, err := svc.Hold(ctx, 1, 8, []uint64{10})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, ledger.row(heldA.ReservationIDs[0]).Status)
	assert.Equal(t, model.ReservationPending, ledger.row(heldB.ReservationIDs[0]).Status)

	status, err := svc.ListSeatStatus(ctx, 1)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, StatusHeld, status[0].Status)
}

func TestListSeatStatus(t *testing.T) {
	svc, _, _, clk := newTestService(t, 10, 11, 12)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, held.ReservationIDs[0], 7)
	require.NoError(t, err)

	_, err = svc.Hold(ctx, 1, 8, []uint64{11})
	require.NoError(t, err)

	status, err := svc.ListSeatStatus(ctx, 1)
	require.NoError(t, err)
	require.Len(t, status, 3)
	assert.Equal(t, StatusBooked, status[0].Status)
	assert.Equal(t, StatusHeld, status[1].Status)
	assert.Equal(t, StatusAvailable, status[2].Status)

	// The projection is repeatable for the same instant.
	again, err := svc.ListSeatStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, status, again)

	// After the hold lapses only the confirmed seat stays taken.
	clk.Advance(DefaultHoldTTL + time.Second)
	later, err := svc.ListSeatStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, later[0].Status)
	assert.Equal(t, StatusAvailable, later[1].Status)
}

func TestWithHoldTTLOption(t *testing.T) {
	ledger := newFakeLedger(1, 10)
	clk := &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(ledger, nil, clk, WithHoldTTL(90*time.Second))

	res, err := svc.Hold(context.Background(), 1, 7, []uint64{10})
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(90*time.Second), res.HoldExpiresAt)
}

func TestNilNotifierIsSafe(t *testing.T) {
	ledger := newFakeLedger(1, 10)
	clk := &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(ledger, nil, clk)
	ctx := context.Background()

	held, err := svc.Hold(ctx, 1, 7, []uint64{10})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, held.ReservationIDs[0], 7)
	assert.NoError(t, err)
}
