package mqtt

// message is one publish held back while the broker is unreachable.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox keeps the most recent messages published while disconnected.
// A retained message supersedes any older retained message queued for the
// same topic, since the broker would only keep the newest one anyway.
// The caller synchronizes access.
type outbox struct {
	limit   int
	pending []message
	dropped int // since the last take
}

func newOutbox(limit int) *outbox {
	return &outbox{limit: limit}
}

// add queues msg. It returns true the first time a message has to be
// discarded since the last take.
func (o *outbox) add(msg message) bool {
	if msg.retained {
		for i, m := range o.pending {
			if m.retained && m.topic == msg.topic {
				o.pending = append(o.pending[:i], o.pending[i+1:]...)
				break
			}
		}
	}

	first := false
	if len(o.pending) == o.limit {
		o.pending = o.pending[1:]
		o.dropped++
		first = o.dropped == 1
	}
	o.pending = append(o.pending, msg)
	return first
}

// take empties the outbox and returns its messages oldest first.
func (o *outbox) take() []message {
	if len(o.pending) == 0 {
		return nil
	}
	out := o.pending
	o.pending = make([]message, 0, o.limit)
	o.dropped = 0
	return out
}

func (o *outbox) size() int { return len(o.pending) }
