package mqtt

import "github.com/charmbracelet/log"

// outboxCapacity bounds the messages kept while the broker is unreachable.
const outboxCapacity = 256

// pending is a serialized message waiting for the broker.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	// state marks a message that only matters as the latest value of its
	// topic. A newer state message supersedes the queued one.
	state bool
}

// outbox holds messages published while disconnected. Timer snapshots are
// coalesced per topic so an outage replays the last known state, while
// movements and system events are kept in order. Beyond capacity the oldest
// message is dropped. Not safe for concurrent use.
type outbox struct {
	items    []pending
	capacity int
	dropped  int
	logger   *log.Logger
}

func newOutbox(capacity int, logger *log.Logger) *outbox {
	return &outbox{capacity: capacity, logger: logger}
}

func (o *outbox) add(msg pending) {
	if msg.state {
		for i, queued := range o.items {
			if queued.state && queued.topic == msg.topic {
				o.items = append(o.items[:i], o.items[i+1:]...)
				break
			}
		}
	}
	if len(o.items) >= o.capacity {
		if o.dropped == 0 && o.logger != nil {
			o.logger.Warn("outbox full, dropping oldest", "capacity", o.capacity)
		}
		o.dropped++
		o.items = o.items[1:]
	}
	o.items = append(o.items, msg)
}

// flush empties the outbox and returns its messages oldest first.
func (o *outbox) flush() []pending {
	items := o.items
	if o.dropped > 0 && o.logger != nil {
		o.logger.Warn("messages lost while offline", "count", o.dropped)
	}
	o.items = nil
	o.dropped = 0
	return items
}

func (o *outbox) len() int {
	return len(o.items)
}
