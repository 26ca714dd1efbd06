package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/booking"
)

func recv(t *testing.T, sub *Subscription) Delta {
	t.Helper()
	select {
	case d := <-sub.C:
		return d
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delta")
		return Delta{}
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	reg := New(nil)
	sub := reg.Subscribe(1)
	defer reg.Unsubscribe(sub)

	reg.Publish(1, 42, booking.StatusHeld)

	d := recv(t, sub)
	assert.Equal(t, Delta{SeatID: 42, Status: "HELD"}, d)
}

func TestPublishIsScopedToSession(t *testing.T) {
	reg := New(nil)
	one := reg.Subscribe(1)
	two := reg.Subscribe(2)
	defer reg.Unsubscribe(one)
	defer reg.Unsubscribe(two)

	reg.Publish(1, 42, booking.StatusBooked)

	require.Equal(t, Delta{SeatID: 42, Status: "BOOKED"}, recv(t, one))
	assert.Empty(t, two.C)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	reg := New(nil)
	// Nobody is listening; publishing must simply be a no-op.
	reg.Publish(1, 42, booking.StatusAvailable)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	reg := New(nil)
	sub := reg.Subscribe(1)
	reg.Unsubscribe(sub)
	// Safe to call twice.
	reg.Unsubscribe(sub)

	reg.Publish(1, 42, booking.StatusHeld)
	assert.Empty(t, sub.C)
}

func TestSlowSubscriberDropsDeltas(t *testing.T) {
	reg := New(nil)
	sub := reg.Subscribe(1)
	defer reg.Unsubscribe(sub)

	// Publish past the buffer without draining; the overflow is
	// dropped instead of blocking the publisher.
	for i := 0; i < subscriberBuffer+5; i++ {
		reg.Publish(1, uint64(i+1), booking.StatusHeld)
	}
	assert.Len(t, sub.C, subscriberBuffer)

	// The subscriber is expected to resynchronize by refetching state,
	// so the retained deltas are the oldest ones in order.
	first := recv(t, sub)
	assert.Equal(t, uint64(1), first.SeatID)
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	reg := New(nil)
	a := reg.Subscribe(1)
	b := reg.Subscribe(1)
	defer reg.Unsubscribe(a)
	defer reg.Unsubscribe(b)

	reg.Publish(1, 7, booking.StatusAvailable)

	assert.Equal(t, Delta{SeatID: 7, Status: "AVAILABLE"}, recv(t, a))
	assert.Equal(t, Delta{SeatID: 7, Status: "AVAILABLE"}, recv(t, b))
}
