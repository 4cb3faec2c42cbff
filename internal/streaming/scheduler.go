package streaming

import "time"

const (
	schedulerPollInterval   = 50 * time.Millisecond
	schedulerDispatchSettle = 5 * time.Millisecond
)

// runScheduler repeatedly selects the next negotiated client by the
// configured policy and dispatches it. UDP clients are handed straight to
// the datagram delivery engine; TCP clients are only marked CONNECTION and
// wait for the stream listener to see their incoming connection and attach
// it.
func (s *Server) runScheduler() {
	defer s.wg.Done()

	for {
		if s.isClosing() {
			return
		}

		id, ok := s.nextClient()
		if !ok {
			time.Sleep(schedulerPollInterval)
			continue
		}

		s.dispatch(id)
		time.Sleep(schedulerDispatchSettle)
	}
}

// nextClient selects the next IDLE, active slot per the configured policy.
// FCFS dequeues from the admission-ordered queue; RR scans the registry from
// the moving cursor. Both transition the slot to CONNECTION as a side effect
// of selection.
func (s *Server) nextClient() (int, bool) {
	switch s.cfg.Policy {
	case PolicyRR:
		return s.registry.NextRoundRobin()
	default:
		id, ok := s.queue.TryDequeue()
		if !ok {
			return -1, false
		}
		rec := s.registry.Get(id)
		if !rec.Active || rec.State != StateIdle {
			return -1, false
		}
		s.registry.TransitionToConnection(id)
		return id, true
	}
}

// dispatch starts the delivery engine appropriate to the slot's negotiated
// transport. TCP slots wait for the stream listener; UDP slots start
// immediately since there is no separate per-client connection to await.
func (s *Server) dispatch(id int) {
	rec := s.registry.Get(id)
	if rec.Transport == "UDP" {
		go s.deliverDatagram(id)
	}
	// TCP: the stream listener attaches the connection and launches
	// deliverReliableStream once the client connects to the stream port.
}
