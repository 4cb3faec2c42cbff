package streaming

import (
	"net"
	"testing"
)

// netPipe returns both ends of an in-memory net.Conn pair for tests that
// need a real net.Conn without binding a socket.
func netPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	c1, c2 := net.Pipe()
	return c1, c2
}
