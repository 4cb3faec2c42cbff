package streaming

import (
	"net"
	"sync"

	rerrors "github.com/alxayo/vidstream/internal/errors"
)

// State is a client slot's position in the admission/delivery lifecycle.
type State int

const (
	// StateIdle: slot is free, or admitted and waiting to be scheduled.
	StateIdle State = iota
	// StateConnection: negotiation in progress, or selected by the scheduler
	// and awaiting reliable-stream delivery attachment.
	StateConnection
	// StateStreaming: a delivery engine is actively emitting chunks.
	StateStreaming
	// StateFinished: delivery ended; the slot may be reclaimed.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnection:
		return "CONNECTION"
	case StateStreaming:
		return "STREAMING"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Record is a single client registry slot. The slot index is the client
// identity and is stable for the record's lifetime; fields are mutated only
// while the registry mutex is held (see Registry).
type Record struct {
	ID            int
	PeerAddr      string // last known peer address (persists across FINISHED for slot-reuse preference)
	Resolution    string
	Transport     string // "TCP" or "UDP"
	StreamingPort int
	State         State
	Active        bool
	Conn          net.Conn // reliable-stream only: set by AttachConn when the client attaches, cleared by Finish

	StartTime    float64
	LastUpdate   float64
	BytesSent    int64
	ChunksSent   int64
	AvgRateBps   float64
	AvgLatencyMs float64
	Dropped      int64
}

// Registry owns the fixed-capacity client table. A single mutex guards every
// read and mutation; network I/O must never happen while the lock is held —
// callers copy scalars out, release, then perform I/O.
type Registry struct {
	mu      sync.Mutex
	records []Record
	cursor  int // round-robin scan position
	clock   Clock
}

// NewRegistry creates a registry with the given fixed slot capacity.
func NewRegistry(capacity int, clock Clock) *Registry {
	records := make([]Record, capacity)
	for i := range records {
		records[i] = Record{ID: i, State: StateIdle}
	}
	return &Registry{records: records, clock: clock, cursor: capacity - 1}
}

// Capacity returns the fixed number of slots.
func (r *Registry) Capacity() int {
	return len(r.records)
}

// Admit allocates a slot for peerAddr, preferring a free slot formerly held
// by the same address, else the first free slot. Returns a CapacityError if
// none is free. The returned slot is initialized to CONNECTION/active with
// zeroed statistics and start time set to now.
func (r *Registry) Admit(peerAddr string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := -1
	for i := range r.records {
		if !r.records[i].Active && r.records[i].PeerAddr == peerAddr {
			id = i
			break
		}
	}
	if id == -1 {
		for i := range r.records {
			if !r.records[i].Active {
				id = i
				break
			}
		}
	}
	if id == -1 {
		return -1, rerrors.NewCapacityError("registry.admit", nil)
	}

	now := r.clock.Now()
	r.records[id] = Record{
		ID:         id,
		PeerAddr:   peerAddr,
		State:      StateConnection,
		Active:     true,
		StartTime:  now,
		LastUpdate: now,
	}
	return id, nil
}

// WouldReuse reports whether admitting peerAddr right now would reclaim a
// slot formerly held by the same address, rather than take a never-used
// free slot. Used only to decide whether to fire a slot_reclaimed hook.
func (r *Registry) WouldReuse(peerAddr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if !r.records[i].Active && r.records[i].PeerAddr == peerAddr {
			return true
		}
	}
	return false
}

// Release marks a slot inactive without clearing its identity or peer
// address, matching the failure path of a negotiation that never completes.
func (r *Registry) Release(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id].Active = false
	r.records[id].State = StateIdle
}

// SetNegotiated records the resolution/transport/streaming port agreed during
// negotiation and transitions the slot IDLE, ready to be scheduled.
func (r *Registry) SetNegotiated(id int, resolution, transport string, streamingPort int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &r.records[id]
	rec.Resolution = resolution
	rec.Transport = transport
	rec.StreamingPort = streamingPort
	rec.State = StateIdle
}

// TransitionToConnection moves an IDLE, active slot to CONNECTION (scheduler
// dispatch for reliable-stream, or RR pre-dispatch marking).
func (r *Registry) TransitionToConnection(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id].State = StateConnection
}

// AttachConn stores the accepted reliable-stream delivery connection on the
// slot, closing and replacing any connection already present.
func (r *Registry) AttachConn(id int, conn net.Conn) {
	r.mu.Lock()
	prev := r.records[id].Conn
	r.records[id].Conn = conn
	r.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
}

// Get returns a copy of the slot's current record.
func (r *Registry) Get(id int) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id]
}

// IsActive reports whether the slot is currently active.
func (r *Registry) IsActive(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id].Active
}

// BeginStreaming transitions the slot to STREAMING, resets the start time and
// drop counter, and returns the record snapshot the delivery engine needs.
func (r *Registry) BeginStreaming(id int) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &r.records[id]
	rec.State = StateStreaming
	rec.StartTime = r.clock.Now()
	rec.LastUpdate = rec.StartTime
	rec.Dropped = 0
	rec.BytesSent = 0
	rec.ChunksSent = 0
	rec.AvgLatencyMs = 0
	return *rec
}

// UpdatePeerAddr replaces the slot's peer address, used when a datagram
// client's REQUEST_STREAM arrives from a different source port than
// negotiation.
func (r *Registry) UpdatePeerAddr(id int, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id].PeerAddr = addr
}

// UpdateStats folds a delivered (or dropped) chunk into the slot's running
// statistics. When dropped is true only the drop counter and last-update time
// change; bytes and latencyMs are ignored.
func (r *Registry) UpdateStats(id int, bytes int64, latencyMs float64, dropped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &r.records[id]

	if dropped {
		rec.Dropped++
		rec.LastUpdate = r.clock.Now()
		return
	}

	rec.BytesSent += bytes
	rec.ChunksSent++
	rec.LastUpdate = r.clock.Now()

	n := rec.ChunksSent
	rec.AvgLatencyMs = rec.AvgLatencyMs + (latencyMs-rec.AvgLatencyMs)/float64(n)

	elapsed := rec.LastUpdate - rec.StartTime
	if elapsed > 0 {
		rec.AvgRateBps = float64(rec.BytesSent) / elapsed
	}
}

// Finish transitions the slot to FINISHED, clears Active and the stored
// connection (closing it if present), and returns the final record.
func (r *Registry) Finish(id int) Record {
	r.mu.Lock()
	rec := &r.records[id]
	rec.State = StateFinished
	rec.Active = false
	conn := rec.Conn
	rec.Conn = nil
	final := *rec
	r.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	return final
}

// NextRoundRobin scans from cursor+1 (mod capacity) for the first slot that
// is active and IDLE, transitioning it to CONNECTION before returning. It
// returns ok=false if a full pass finds none.
func (r *Registry) NextRoundRobin() (id int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.records)
	for i := 1; i <= n; i++ {
		candidate := (r.cursor + i) % n
		rec := &r.records[candidate]
		if rec.Active && rec.State == StateIdle {
			r.cursor = candidate
			rec.State = StateConnection
			return candidate, true
		}
	}
	return -1, false
}

// Snapshot returns a copy of every slot, for statistics reporting.
func (r *Registry) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}
