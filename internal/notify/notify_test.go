package notify

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSubscribeDeliverUnsubscribe(t *testing.T) {
	d := NewDispatcher(nil, zerolog.Nop())
	ch := d.Subscribe("alice")

	d.OnFollowerChange("alice", "bob", true)
	ev := <-ch
	if ev.Follower != "bob" || !ev.Added {
		t.Errorf("event = %+v", ev)
	}

	d.OnFollowerChange("alice", "bob", false)
	ev = <-ch
	if ev.Follower != "bob" || ev.Added {
		t.Errorf("event = %+v", ev)
	}

	d.Unsubscribe("alice", ch)
	if _, open := <-ch; open {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestDeliveryToOfflineUserIsDropped(t *testing.T) {
	d := NewDispatcher(nil, zerolog.Nop())
	// must not panic or block
	d.OnFollowerChange("nobody", "bob", true)
}

func TestBackloggedSubscriberDoesNotBlock(t *testing.T) {
	d := NewDispatcher(nil, zerolog.Nop())
	ch := d.Subscribe("alice")
	for i := 0; i < eventBuffer+5; i++ {
		d.OnFollowerChange("alice", "bob", true)
	}
	// buffer full events were dropped, the earlier ones kept
	if len(ch) != eventBuffer {
		t.Errorf("buffered = %d, want %d", len(ch), eventBuffer)
	}
}

func TestResubscribeReplacesChannel(t *testing.T) {
	d := NewDispatcher(nil, zerolog.Nop())
	old := d.Subscribe("alice")
	fresh := d.Subscribe("alice")
	if _, open := <-old; open {
		t.Error("stale channel should be closed on resubscribe")
	}
	d.OnFollowerChange("alice", "bob", true)
	if len(fresh) != 1 {
		t.Error("event should land on the fresh channel")
	}
}

func TestStaleUnsubscribeKeepsFreshChannel(t *testing.T) {
	d := NewDispatcher(nil, zerolog.Nop())
	old := d.Subscribe("alice")
	// alice logs back in on another connection before the first one
	// finishes tearing down
	fresh := d.Subscribe("alice")

	d.Unsubscribe("alice", old)

	d.OnFollowerChange("alice", "bob", true)
	select {
	case ev, open := <-fresh:
		if !open {
			t.Fatal("fresh channel closed by stale Unsubscribe")
		}
		if ev.Follower != "bob" || !ev.Added {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("event not delivered after stale Unsubscribe")
	}

	// the matching teardown still works
	d.Unsubscribe("alice", fresh)
	if _, open := <-fresh; open {
		t.Error("channel should be closed after matching Unsubscribe")
	}
}

func TestRewardsUpdatedWithoutBeacon(t *testing.T) {
	d := NewDispatcher(nil, zerolog.Nop())
	d.OnRewardsUpdated() // no beacon configured: a quiet no-op
}
