package streaming

import (
	"net"
	"sync"
	"time"

	rerrors "github.com/alxayo/vidstream/internal/errors"
)

// Endpoint is the single shared UDP socket serving every datagram client.
// One mutex guards the underlying connection so at most one goroutine is
// ever mid-send or mid-receive on it at a time.
type Endpoint struct {
	conn *net.UDPConn
	mu   sync.Mutex
}

// NewEndpoint binds a UDP socket on port.
func NewEndpoint(port int) (*Endpoint, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, rerrors.NewTransportError("endpoint.listen", err)
	}
	return &Endpoint{conn: conn}, nil
}

// Close releases the underlying socket.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}

// ReceiveRequest waits up to timeout for one datagram and reports whether its
// payload equals "REQUEST_STREAM" and its sender IP equals peerIP. A datagram
// that does not match is consumed and discarded, and the call returns
// matched=false without waiting further (matching the original single-socket
// polling behavior: whichever client task happens to read the datagram next
// consumes it, matched or not).
func (e *Endpoint) ReceiveRequest(peerIP string, timeout time.Duration) (senderAddr *net.UDPAddr, matched bool, err error) {
	buf := make([]byte, 64)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, false, rerrors.NewInternalError("endpoint.set_read_deadline", err)
	}
	n, addr, err := e.conn.ReadFromUDP(buf)
	if err != nil {
		if rerrors.IsTimeout(err) {
			return nil, false, rerrors.NewTimeoutError("endpoint.receive_request", timeout, err)
		}
		return nil, false, rerrors.NewTransportError("endpoint.receive_request", err)
	}

	if string(buf[:n]) != "REQUEST_STREAM" || addr.IP.String() != peerIP {
		return addr, false, nil
	}
	return addr, true, nil
}

// SendTo transmits data to addr, serialized by the endpoint mutex.
func (e *Endpoint) SendTo(addr *net.UDPAddr, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.conn.WriteToUDP(data, addr); err != nil {
		return rerrors.NewTransportError("endpoint.send", err)
	}
	return nil
}

// LocalAddr returns the bound address.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}
