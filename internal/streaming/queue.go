package streaming

// Queue is the FCFS scheduling queue: a bounded FIFO of client identities
// produced by the admission listener and drained by the scheduler, modeled
// as a buffered Go channel.
type Queue struct {
	ch chan int
}

// NewQueue creates a queue with the given buffer capacity (sized to the
// registry's slot count, since at most one identity per slot is ever
// in flight).
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan int, capacity)}
}

// Enqueue appends a client identity. It is only safe to call under FCFS
// policy: the queue is sized to the registry's capacity on the assumption
// that every admitted slot is dequeued exactly once. Under round-robin
// nothing ever drains the channel, so calling Enqueue there would eventually
// block the admission listener once the buffer fills.
func (q *Queue) Enqueue(clientID int) {
	q.ch <- clientID
}

// TryDequeue performs a non-blocking dequeue, returning ok=false if empty.
func (q *Queue) TryDequeue() (clientID int, ok bool) {
	select {
	case id := <-q.ch:
		return id, true
	default:
		return -1, false
	}
}
