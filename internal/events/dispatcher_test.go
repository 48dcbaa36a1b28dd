package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherDeliversToAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.TicketID)
		return errors.New("boom")
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketClosed, func(context.Context, Event) error {
		calls = append(calls, "closed")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "T1"})

	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"first:T1", "second:T1"}, calls)
}

func TestEventTypeValid(t *testing.T) {
	assert.True(t, EventUrgentTicket.Valid())
	assert.False(t, EventType("ticket_reopened").Valid())
}

func TestDispatcherRecoversPanickingHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	delivered := false
	d.Subscribe(EventTest, func(context.Context, Event) error { panic("bad handler") })
	d.Subscribe(EventTest, func(context.Context, Event) error {
		delivered = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTest})

	assert.EqualError(t, err, "test handler panicked: bad handler")
	assert.True(t, delivered)
}

func TestDispatcherRejectsUnknownType(t *testing.T) {
	d := NewInMemoryDispatcher()
	err := d.Publish(context.Background(), Event{Type: "ticket_reopened"})
	assert.ErrorIs(t, err, ErrUnknownEventType)
}
