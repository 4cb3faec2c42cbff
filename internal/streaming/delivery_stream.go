package streaming

import (
	"context"
	"net"
	"time"

	rerrors "github.com/alxayo/vidstream/internal/errors"
	"github.com/alxayo/vidstream/internal/streaming/chunkgen"
	"github.com/alxayo/vidstream/internal/streaming/hooks"
)

const (
	streamReadyRetries  = 5
	streamReadyBackoff  = 100 * time.Millisecond
	streamStartWait     = 5 * time.Second
	streamWriteRetries  = 10
	streamWriteDeadline = 1 * time.Second
	streamWriteBackoff  = 50 * time.Millisecond
)

// deliverReliableStream runs the reliable-stream delivery engine for a slot
// that already carries an attached connection. Preconditions: the slot is
// active and its transport is TCP; it may still be IDLE if the client
// attached before the scheduler selected it.
func (s *Server) deliverReliableStream(id int) {
	rec := s.registry.BeginStreaming(id)
	conn := rec.Conn
	log := s.log.With("client_id", id, "transport", "TCP", "resolution", rec.Resolution)

	s.fireHook(hooks.EventStreamingStarted, id, map[string]interface{}{"transport": "TCP", "resolution": rec.Resolution})

	if err := s.sendReadyToStream(conn); err != nil {
		log.Warn("reliable-stream handshake failed", "error", err)
		s.finishDelivery(id, "TCP")
		return
	}

	if err := s.waitStartStream(conn); err != nil {
		log.Warn("reliable-stream start wait failed", "error", err)
		s.finishDelivery(id, "TCP")
		return
	}

	bandwidth := BandwidthForResolution(rec.Resolution)
	p := newPacer(bandwidth, chunkgen.SizeTCP, maxTCPChunkWaitMs)
	ctx := context.Background()

	for seq := 1; seq <= s.cfg.VideoChunks; seq++ {
		if !s.registry.IsActive(id) {
			break
		}

		chunk := chunkgen.Make(seq, rec.Resolution, chunkgen.SizeTCP)
		sendTime := s.clock.Now()
		err := writeAllWithRetry(conn, chunk)
		chunkgen.Release(chunk)
		if err != nil {
			log.Warn("reliable-stream write aborted", "seq", seq, "error", err)
			break
		}

		latencyMs := (s.clock.Now() - sendTime) * 1000
		s.registry.UpdateStats(id, int64(chunkgen.SizeTCP), latencyMs, false)

		if err := p.Wait(ctx, chunkgen.SizeTCP); err != nil {
			break
		}
	}

	s.finishDelivery(id, "TCP")
}

// sendReadyToStream sends the literal "READY_TO_STREAM" control string,
// retrying on a write timeout up to streamReadyRetries times.
func (s *Server) sendReadyToStream(conn net.Conn) error {
	msg := []byte("READY_TO_STREAM")
	var lastErr error
	for attempt := 0; attempt < streamReadyRetries; attempt++ {
		if err := conn.SetWriteDeadline(time.Now().Add(2 * time.Second)); err != nil {
			return rerrors.NewInternalError("stream.set_write_deadline", err)
		}
		_, err := conn.Write(msg)
		if err == nil {
			return nil
		}
		if !rerrors.IsTimeout(err) {
			return rerrors.NewTransportError("stream.send_ready", err)
		}
		lastErr = err
		time.Sleep(streamReadyBackoff)
	}
	return rerrors.NewTimeoutError("stream.send_ready", streamReadyRetries*streamReadyBackoff, lastErr)
}

// waitStartStream reads the client's control string and requires it to equal
// "START_STREAM" exactly.
func (s *Server) waitStartStream(conn net.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(streamStartWait)); err != nil {
		return rerrors.NewInternalError("stream.set_read_deadline", err)
	}
	buf := make([]byte, 32)
	n, err := conn.Read(buf)
	if err != nil {
		if rerrors.IsTimeout(err) {
			return rerrors.NewTimeoutError("stream.wait_start", streamStartWait, err)
		}
		return rerrors.NewTransportError("stream.wait_start", err)
	}
	if string(buf[:n]) != "START_STREAM" {
		return rerrors.NewHandshakeError("stream.wait_start", nil)
	}
	return nil
}

// writeAllWithRetry pushes data in full via a bounded retry loop: each
// attempt gets a write deadline; partial writes accumulate; a timeout
// contributes a retry with a fixed back-off; any other error aborts.
func writeAllWithRetry(conn net.Conn, data []byte) error {
	off := 0
	for attempt := 0; attempt < streamWriteRetries && off < len(data); {
		if err := conn.SetWriteDeadline(time.Now().Add(streamWriteDeadline)); err != nil {
			return rerrors.NewInternalError("stream.set_write_deadline", err)
		}
		n, err := conn.Write(data[off:])
		off += n
		if err == nil {
			continue
		}
		if !rerrors.IsTimeout(err) {
			return rerrors.NewTransportError("stream.write", err)
		}
		attempt++
		time.Sleep(streamWriteBackoff)
	}
	if off < len(data) {
		return rerrors.NewTimeoutError("stream.write", streamWriteRetries*streamWriteBackoff, nil)
	}
	return nil
}

// finishDelivery closes the slot's connection, marks it FINISHED, and fires
// the completion hook with final counters.
func (s *Server) finishDelivery(id int, transport string) {
	final := s.registry.Finish(id)
	s.fireHook(hooks.EventStreamingFinished, id, map[string]interface{}{
		"transport":   transport,
		"bytes_sent":  final.BytesSent,
		"chunks_sent": final.ChunksSent,
		"dropped":     final.Dropped,
	})
}
