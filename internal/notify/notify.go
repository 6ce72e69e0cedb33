// notify carries the two asynchronous event channels out of the core:
// per-user follower deltas pushed to a connected client's writer task,
// and a periodic "rewards updated" beacon on a UDP multicast group.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Notifier is the boundary the core emits events through. The concrete
// transport is supplied by the caller.
type Notifier interface {
	OnFollowerChange(username, follower string, added bool)
	OnRewardsUpdated()
}

// FollowerEvent is one follower-set delta for a logged-in user.
type FollowerEvent struct {
	Follower string
	Added    bool
}

// subscriber channels are buffered; a slow or wedged client drops
// events rather than blocking the content store.
const eventBuffer = 16

// Dispatcher fans follower events out to per-user channels and relays
// reward beacons to the multicast sender. Delivery is best effort.
type Dispatcher struct {
	mu     sync.Mutex
	subs   map[string]chan FollowerEvent
	beacon *Beacon
	log    zerolog.Logger
}

func NewDispatcher(beacon *Beacon, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		subs:   map[string]chan FollowerEvent{},
		beacon: beacon,
		log:    log,
	}
}

// Subscribe registers username's event channel, replacing any stale
// one. The returned channel is closed by Unsubscribe.
func (d *Dispatcher) Subscribe(username string) <-chan FollowerEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.subs[username]; ok {
		close(old)
	}
	ch := make(chan FollowerEvent, eventBuffer)
	d.subs[username] = ch
	return ch
}

// Unsubscribe tears down username's subscription, but only if ch is
// still the registered channel. A caller holding a channel that a later
// Subscribe already replaced must not close the replacement: the user
// may have logged back in on another connection in the meantime.
func (d *Dispatcher) Unsubscribe(username string, ch <-chan FollowerEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.subs[username]
	if !ok || ch != cur {
		return
	}
	close(cur)
	delete(d.subs, username)
}

func (d *Dispatcher) OnFollowerChange(username, follower string, added bool) {
	d.mu.Lock()
	ch, ok := d.subs[username]
	d.mu.Unlock()
	if !ok {
		return // user not connected, nothing to deliver
	}
	select {
	case ch <- FollowerEvent{Follower: follower, Added: added}:
	default:
		d.log.Warn().Str("user", username).Msg("follower event dropped, subscriber backlogged")
	}
}

func (d *Dispatcher) OnRewardsUpdated() {
	if d.beacon == nil {
		return
	}
	if err := d.beacon.Send(); err != nil {
		d.log.Warn().Err(err).Msg("reward beacon send failed")
	}
}
