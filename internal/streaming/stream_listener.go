package streaming

import (
	"bytes"
	"errors"
	"net"
	"strconv"
	"time"

	rerrors "github.com/alxayo/vidstream/internal/errors"
)

const streamIdentifyWait = 5 * time.Second

// runStreamListener accepts connections on the reliable-stream port. Each
// connecting client is expected to have already negotiated TCP delivery; it
// identifies itself with its decimal client id, and delivery starts for any
// active TCP slot whether or not the scheduler has selected it yet.
func (s *Server) runStreamListener() {
	defer s.wg.Done()

	for {
		conn, err := s.streamLn.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("stream listener accept failed", "error", err)
			continue
		}

		go s.handleStreamConnect(conn)
	}
}

func (s *Server) handleStreamConnect(conn net.Conn) {
	id, err := s.readClientID(conn)
	if err != nil {
		s.log.Warn("stream identify failed", "peer_addr", conn.RemoteAddr(), "error", err)
		_ = conn.Close()
		return
	}

	rec := s.registry.Get(id)
	if !rec.Active || rec.Transport != "TCP" {
		s.log.Warn("stream connect rejected, unexpected slot state", "client_id", id, "state", rec.State)
		_ = conn.Close()
		return
	}

	s.registry.AttachConn(id, conn)
	go s.deliverReliableStream(id)
}

// readClientID reads the client's decimal identity string, terminated by
// whatever the client sent in a single write (the handshake is one small
// datagram-sized message, never fragmented in practice).
func (s *Server) readClientID(conn net.Conn) (int, error) {
	if err := conn.SetReadDeadline(time.Now().Add(streamIdentifyWait)); err != nil {
		return -1, rerrors.NewInternalError("stream_listener.set_read_deadline", err)
	}
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if err != nil {
		if rerrors.IsTimeout(err) {
			return -1, rerrors.NewTimeoutError("stream_listener.read_id", streamIdentifyWait, err)
		}
		return -1, rerrors.NewTransportError("stream_listener.read_id", err)
	}

	trimmed := bytes.TrimSpace(buf[:n])
	id, err := strconv.Atoi(string(trimmed))
	if err != nil {
		return -1, rerrors.NewHandshakeError("stream_listener.parse_id", err)
	}
	if id < 0 || id >= s.registry.Capacity() {
		return -1, rerrors.NewHandshakeError("stream_listener.id_out_of_range", nil)
	}
	return id, nil
}
