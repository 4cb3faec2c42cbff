package streaming

import (
	"net"
	"testing"
	"time"

	"github.com/alxayo/vidstream/internal/streaming/chunkgen"
	"github.com/alxayo/vidstream/internal/streaming/streamclient"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func startTestServer(t *testing.T, policy Policy) (*Server, int) {
	t.Helper()
	chunkgen.EncodeLatency = 0
	port := freePort(t)
	cfg := Config{
		Port:              port,
		Policy:            policy,
		MaxClients:        4,
		VideoChunks:       5,
		UDPPacketLossRate: 0,
	}
	srv := New(cfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	time.Sleep(50 * time.Millisecond)
	return srv, port
}

func TestServerDeliversTCPStream(t *testing.T) {
	_, port := startTestServer(t, PolicyFCFS)

	session, err := streamclient.Negotiate("127.0.0.1", port, "720p", "TCP")
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if session.Bandwidth != 3000 {
		t.Fatalf("expected 3000 kbps, got %d", session.Bandwidth)
	}

	stats, err := streamclient.ReceiveTCP("127.0.0.1", session, 5, nil)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if stats.ChunksReached == 0 {
		t.Fatalf("expected at least one chunk")
	}
}

func TestServerDeliversUDPStream(t *testing.T) {
	_, port := startTestServer(t, PolicyFCFS)

	session, err := streamclient.Negotiate("127.0.0.1", port, "480p", "UDP")
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}

	stats, err := streamclient.ReceiveUDP("127.0.0.1", session, 5, nil)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if stats.ChunksReached == 0 {
		t.Fatalf("expected at least one datagram")
	}
}

func TestServerRoundRobinAdmitsMultipleClients(t *testing.T) {
	_, port := startTestServer(t, PolicyRR)

	sessionA, err := streamclient.Negotiate("127.0.0.1", port, "480p", "TCP")
	if err != nil {
		t.Fatalf("negotiate a: %v", err)
	}
	sessionB, err := streamclient.Negotiate("127.0.0.1", port, "1080p", "UDP")
	if err != nil {
		t.Fatalf("negotiate b: %v", err)
	}
	if sessionA.ClientID == sessionB.ClientID {
		t.Fatalf("expected distinct client ids")
	}
}

func TestServerRejectsWhenFull(t *testing.T) {
	chunkgen.EncodeLatency = 0
	port := freePort(t)
	cfg := Config{Port: port, Policy: PolicyFCFS, MaxClients: 1, VideoChunks: 2}
	srv := New(cfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	time.Sleep(50 * time.Millisecond)

	if _, err := srv.registry.Admit("occupied"); err != nil {
		t.Fatalf("prime admit: %v", err)
	}

	_, err := streamclient.Negotiate("127.0.0.1", port, "720p", "TCP")
	if err == nil {
		t.Fatalf("expected negotiation to fail when registry is full")
	}
}
