// Package streamclient implements the negotiation-then-delivery protocol
// from the consuming side, driving a real server the way the integration
// tests and the cmd/client binary do.
package streamclient

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	rerrors "github.com/alxayo/vidstream/internal/errors"
	"github.com/alxayo/vidstream/internal/streaming/wire"
)

const (
	negotiateTimeout     = 5 * time.Second
	tcpConnectRetries    = 15
	tcpConnectRetryDelay = 1 * time.Second
	tcpReadyTimeout      = 15 * time.Second
	udpRequestRetries    = 5
	udpRequestTimeout    = 3 * time.Second
)

// Session describes the result of a successful negotiation.
type Session struct {
	ClientID      int
	Resolution    string
	Bandwidth     int
	Transport     string
	StreamingPort int
}

// Stats accumulates what the client observed while receiving chunks.
type Stats struct {
	TotalBytes    int64
	ChunksReached int
	ElapsedSec    float64
}

// Negotiate performs the Type-1/Type-2 exchange over a fresh TCP connection
// to serverIP:serverPort, then closes it.
func Negotiate(serverIP string, serverPort int, resolution, transport string) (Session, error) {
	addr := net.JoinHostPort(serverIP, strconv.Itoa(serverPort))
	conn, err := net.DialTimeout("tcp", addr, negotiateTimeout)
	if err != nil {
		return Session{}, rerrors.NewTransportError("client.negotiate.dial", err)
	}
	defer conn.Close()

	req := wire.Record{
		Kind:       wire.KindRequest,
		Resolution: resolution,
		Transport:  transport,
	}
	buf, err := req.Encode()
	if err != nil {
		return Session{}, rerrors.NewInputError("client.negotiate.encode", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(negotiateTimeout)); err != nil {
		return Session{}, rerrors.NewInternalError("client.negotiate.set_write_deadline", err)
	}
	if _, err := conn.Write(buf); err != nil {
		return Session{}, rerrors.NewTransportError("client.negotiate.write", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(negotiateTimeout)); err != nil {
		return Session{}, rerrors.NewInternalError("client.negotiate.set_read_deadline", err)
	}
	resp, err := wire.Decode(conn)
	if err != nil {
		if rerrors.IsTimeout(err) {
			return Session{}, rerrors.NewTimeoutError("client.negotiate.read", negotiateTimeout, err)
		}
		return Session{}, rerrors.NewHandshakeError("client.negotiate.read", err)
	}
	if resp.Kind != wire.KindResponse {
		return Session{}, rerrors.NewHandshakeError("client.negotiate.unexpected_kind", nil)
	}

	return Session{
		ClientID:      int(resp.ClientID),
		Resolution:    resp.Resolution,
		Bandwidth:     int(resp.Bandwidth),
		Transport:     resp.Transport,
		StreamingPort: int(resp.StreamingPort),
	}, nil
}

// ReceiveTCP connects to the reliable-stream delivery port, identifies
// itself, completes the READY_TO_STREAM/START_STREAM handshake, and drains
// chunks until the server closes the connection or maxChunks is reached.
func ReceiveTCP(serverIP string, session Session, maxChunks int, onChunk func(n int)) (Stats, error) {
	addr := net.JoinHostPort(serverIP, strconv.Itoa(session.StreamingPort+1))

	var conn net.Conn
	var err error
	for attempt := 0; attempt < tcpConnectRetries; attempt++ {
		conn, err = net.DialTimeout("tcp", addr, negotiateTimeout)
		if err == nil {
			break
		}
		time.Sleep(tcpConnectRetryDelay)
	}
	if err != nil {
		return Stats{}, rerrors.NewTransportError("client.tcp.dial", err)
	}
	defer conn.Close()

	idMsg := []byte(strconv.Itoa(session.ClientID))
	if err := conn.SetWriteDeadline(time.Now().Add(negotiateTimeout)); err != nil {
		return Stats{}, rerrors.NewInternalError("client.tcp.set_write_deadline", err)
	}
	if _, err := conn.Write(idMsg); err != nil {
		return Stats{}, rerrors.NewTransportError("client.tcp.send_id", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(tcpReadyTimeout)); err != nil {
		return Stats{}, rerrors.NewInternalError("client.tcp.set_read_deadline", err)
	}
	ready := make([]byte, 32)
	n, err := conn.Read(ready)
	if err != nil {
		if rerrors.IsTimeout(err) {
			return Stats{}, rerrors.NewTimeoutError("client.tcp.wait_ready", tcpReadyTimeout, err)
		}
		return Stats{}, rerrors.NewTransportError("client.tcp.wait_ready", err)
	}
	if string(ready[:n]) != "READY_TO_STREAM" {
		return Stats{}, rerrors.NewHandshakeError("client.tcp.unexpected_ready", nil)
	}

	if _, err := conn.Write([]byte("START_STREAM")); err != nil {
		return Stats{}, rerrors.NewTransportError("client.tcp.send_start", err)
	}

	start := time.Now()
	stats := Stats{}
	buf := make([]byte, 131072)
	for maxChunks == 0 || stats.ChunksReached < maxChunks {
		if err := conn.SetReadDeadline(time.Now().Add(30 * time.Second)); err != nil {
			return stats, rerrors.NewInternalError("client.tcp.set_read_deadline", err)
		}
		n, err := io.ReadFull(conn, buf)
		if n > 0 {
			stats.TotalBytes += int64(n)
			stats.ChunksReached++
			if onChunk != nil {
				onChunk(n)
			}
		}
		if err != nil {
			break
		}
	}
	stats.ElapsedSec = time.Since(start).Seconds()
	return stats, nil
}

// ReceiveUDP opens a local UDP socket, sends REQUEST_STREAM until
// READY_TO_STREAM arrives (or retries are exhausted), then reads datagrams
// until maxChunks is reached or the stream goes quiet.
func ReceiveUDP(serverIP string, session Session, maxChunks int, onChunk func(n int)) (Stats, error) {
	addr := net.JoinHostPort(serverIP, strconv.Itoa(session.StreamingPort))
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return Stats{}, rerrors.NewInputError("client.udp.resolve", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return Stats{}, rerrors.NewTransportError("client.udp.dial", err)
	}
	defer conn.Close()

	ready := false
	buf := make([]byte, 131072)
	for attempt := 0; attempt < udpRequestRetries && !ready; attempt++ {
		if _, err := conn.Write([]byte("REQUEST_STREAM")); err != nil {
			return Stats{}, rerrors.NewTransportError("client.udp.send_request", err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(udpRequestTimeout)); err != nil {
			return Stats{}, rerrors.NewInternalError("client.udp.set_read_deadline", err)
		}
		n, err := conn.Read(buf)
		if err == nil && string(buf[:n]) == "READY_TO_STREAM" {
			ready = true
		}
	}
	if !ready {
		return Stats{}, rerrors.NewTimeoutError("client.udp.wait_ready", udpRequestRetries*udpRequestTimeout, nil)
	}

	start := time.Now()
	stats := Stats{}
	for maxChunks == 0 || stats.ChunksReached < maxChunks {
		if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return stats, rerrors.NewInternalError("client.udp.set_read_deadline", err)
		}
		n, err := conn.Read(buf)
		if n > 0 {
			stats.TotalBytes += int64(n)
			stats.ChunksReached++
			if onChunk != nil {
				onChunk(n)
			}
		}
		if err != nil {
			break
		}
	}
	stats.ElapsedSec = time.Since(start).Seconds()
	return stats, nil
}

// ValidateResolution reports whether resolution is one of the known tags.
func ValidateResolution(resolution string) error {
	switch resolution {
	case "480p", "720p", "1080p":
		return nil
	default:
		return rerrors.NewInputError("client.validate_resolution", fmt.Errorf("unknown resolution %q", resolution))
	}
}

// ValidateTransport reports whether transport is one of the known tags.
func ValidateTransport(transport string) error {
	switch transport {
	case "TCP", "UDP":
		return nil
	default:
		return rerrors.NewInputError("client.validate_transport", fmt.Errorf("unknown transport %q", transport))
	}
}
