package mqtt

// queuedMsg is a serialized message held for replay after reconnect.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// pendingQueue is a fixed-capacity FIFO for messages written while the
// broker is unreachable. When full, the oldest message is dropped and
// the loss counted. Not safe for concurrent use; callers synchronize.
type pendingQueue struct {
	msgs     []queuedMsg
	capacity int
	dropped  int
}

func newPendingQueue(capacity int) *pendingQueue {
	return &pendingQueue{capacity: capacity}
}

func (q *pendingQueue) push(m queuedMsg) {
	if len(q.msgs) == q.capacity {
		copy(q.msgs, q.msgs[1:])
		q.msgs = q.msgs[:len(q.msgs)-1]
		q.dropped++
	}
	q.msgs = append(q.msgs, m)
}

// drain empties the queue, returning the held messages in arrival
// order and the count dropped since the last drain.
func (q *pendingQueue) drain() ([]queuedMsg, int) {
	msgs := q.msgs
	dropped := q.dropped
	q.msgs = nil
	q.dropped = 0
	return msgs, dropped
}

func (q *pendingQueue) size() int {
	return len(q.msgs)
}
