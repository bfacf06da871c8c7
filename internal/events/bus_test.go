package events

import "testing"

func TestBusPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	defer a.Close()
	defer b.Close()

	bus.Publish(NewNotification("hello"))

	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.C:
			if ev.Kind != NotificationSuccess || ev.NotificationText != "hello" {
				t.Fatalf("got %+v", ev)
			}
		default:
			t.Fatalf("subscriber did not receive event")
		}
	}
}

func TestBusPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < backlog+10; i++ {
			bus.Publish(NewNotification("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-sub.Lagged:
		// may or may not fire before done depending on scheduling; either is fine.
	}
}

func TestBusUnregisterClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	sub.Close()
	if _, ok := <-sub.C; ok {
		t.Fatalf("channel not closed after Close")
	}
}
