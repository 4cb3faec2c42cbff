package streaming

import (
	"errors"
	"net"

	rerrors "github.com/alxayo/vidstream/internal/errors"
	"github.com/alxayo/vidstream/internal/streaming/hooks"
)

// runAdmissionListener accepts connections on the admission port and runs
// each through the Type-1/Type-2 negotiation exchange. A negotiated,
// successfully admitted client's identity moves to the FCFS scheduling queue
// under that policy; under round-robin the registry scan finds it directly.
// The negotiation connection itself is never reused for delivery.
func (s *Server) runAdmissionListener() {
	defer s.wg.Done()

	for {
		conn, err := s.admissionLn.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("admission accept failed", "error", err)
			continue
		}

		go s.handleAdmission(conn)
	}
}

func (s *Server) handleAdmission(conn net.Conn) {
	defer conn.Close()

	id, err := s.negotiate(conn)
	if err != nil {
		if rerrors.IsCapacity(err) {
			s.log.Info("admission rejected, no free slot", "peer_addr", conn.RemoteAddr())
		} else {
			s.log.Warn("negotiation failed", "peer_addr", conn.RemoteAddr(), "error", err)
			s.fireHook(hooks.EventClientRejected, -1, map[string]interface{}{"reason": "negotiation_failed", "peer_addr": conn.RemoteAddr().String()})
		}
		return
	}

	if s.cfg.Policy != PolicyRR {
		s.queue.Enqueue(id)
	}
	s.log.Info("client negotiated", "client_id", id, "peer_addr", conn.RemoteAddr())
}
