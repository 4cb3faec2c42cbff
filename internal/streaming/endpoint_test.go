package streaming

import (
	"net"
	"testing"
	"time"
)

func TestEndpointReceiveRequestMatches(t *testing.T) {
	ep, err := NewEndpoint(0)
	if err != nil {
		t.Fatalf("new endpoint: %v", err)
	}
	defer ep.Close()

	clientConn, err := net.DialUDP("udp", nil, ep.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer clientConn.Close()

	if _, err := clientConn.Write([]byte("REQUEST_STREAM")); err != nil {
		t.Fatalf("write: %v", err)
	}

	localIP := clientConn.LocalAddr().(*net.UDPAddr).IP.String()
	addr, matched, err := ep.ReceiveRequest(localIP, 2*time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !matched {
		t.Fatalf("expected match")
	}
	if addr == nil {
		t.Fatalf("expected sender address")
	}
}

func TestEndpointReceiveRequestTimesOutWithNoTraffic(t *testing.T) {
	ep, err := NewEndpoint(0)
	if err != nil {
		t.Fatalf("new endpoint: %v", err)
	}
	defer ep.Close()

	_, matched, err := ep.ReceiveRequest("10.0.0.1", 50*time.Millisecond)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if matched {
		t.Fatalf("expected no match")
	}
}

func TestEndpointSendTo(t *testing.T) {
	ep, err := NewEndpoint(0)
	if err != nil {
		t.Fatalf("new endpoint: %v", err)
	}
	defer ep.Close()

	clientConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer clientConn.Close()

	target := clientConn.LocalAddr().(*net.UDPAddr)
	if err := ep.SendTo(target, []byte("READY_TO_STREAM")); err != nil {
		t.Fatalf("send: %v", err)
	}

	buf := make([]byte, 64)
	if err := clientConn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	n, _, err := clientConn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "READY_TO_STREAM" {
		t.Fatalf("unexpected payload %q", buf[:n])
	}
}
