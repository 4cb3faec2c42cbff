package streaming

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	rerrors "github.com/alxayo/vidstream/internal/errors"
	"github.com/alxayo/vidstream/internal/logger"
	"github.com/alxayo/vidstream/internal/streaming/hooks"
	"github.com/alxayo/vidstream/internal/streaming/wire"
)

// Server owns every long-running task: the admission listener, the stream
// listener, the shared datagram endpoint, and the scheduler loop.
type Server struct {
	cfg   Config
	log   *slog.Logger
	clock Clock

	registry *Registry
	queue    *Queue
	endpoint *Endpoint
	hooks    *hooks.Manager

	admissionLn net.Listener
	streamLn    net.Listener

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New creates an unstarted Server.
func New(cfg Config) *Server {
	cfg.applyDefaults()
	clock := NewSystemClock()
	return &Server{
		cfg:      cfg,
		log:      logger.Logger().With("component", "streaming_server"),
		clock:    clock,
		registry: NewRegistry(cfg.MaxClients, clock),
		queue:    NewQueue(cfg.MaxClients),
		hooks:    newHookManager(cfg, logger.Logger()),
	}
}

// Start binds the admission, stream-delivery, and datagram endpoints and
// launches the admission listener, stream listener, and scheduler loops.
func (s *Server) Start() error {
	admissionLn, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return rerrors.NewTransportError("server.listen_admission", err)
	}
	streamLn, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port+1))
	if err != nil {
		_ = admissionLn.Close()
		return rerrors.NewTransportError("server.listen_stream", err)
	}
	endpoint, err := NewEndpoint(s.cfg.Port)
	if err != nil {
		_ = admissionLn.Close()
		_ = streamLn.Close()
		return err
	}

	s.admissionLn = admissionLn
	s.streamLn = streamLn
	s.endpoint = endpoint

	s.wg.Add(3)
	go s.runAdmissionListener()
	go s.runStreamListener()
	go s.runScheduler()

	s.log.Info("server started", "port", s.cfg.Port, "policy", s.cfg.Policy, "max_clients", s.cfg.MaxClients)
	return nil
}

// Stop closes every listener and the datagram endpoint, waits briefly for
// in-flight operations to notice, snapshots statistics, and returns.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	if s.admissionLn != nil {
		_ = s.admissionLn.Close()
	}
	if s.streamLn != nil {
		_ = s.streamLn.Close()
	}

	time.Sleep(1 * time.Second)

	if s.endpoint != nil {
		_ = s.endpoint.Close()
	}
	if err := s.hooks.Close(); err != nil {
		s.log.Warn("hook manager close error", "error", err)
	}

	s.log.Info("snapshot", "stats", s.Snapshot())
	return nil
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// fireHook builds and dispatches a lifecycle event without blocking the caller.
func (s *Server) fireHook(eventType hooks.EventType, clientID int, data map[string]interface{}) {
	if s.hooks == nil {
		return
	}
	event := hooks.NewEvent(eventType, clientID)
	for k, v := range data {
		event.WithData(k, v)
	}
	s.hooks.TriggerEvent(context.Background(), *event)
}

// newHookManager builds the hook manager from CLI-derived config, registering
// shell and webhook hooks in "event_type=target" form.
func newHookManager(cfg Config, log *slog.Logger) *hooks.Manager {
	hc := hooks.Config{
		Timeout:     cfg.HookTimeout,
		Concurrency: cfg.HookConcurrency,
		StdioFormat: cfg.HookStdioFormat,
	}
	mgr := hooks.NewManager(hc, log)

	timeout, err := time.ParseDuration(cfg.HookTimeout)
	if err != nil {
		timeout = 30 * time.Second
	}

	for i, assignment := range cfg.HookScripts {
		eventType, target, ok := splitAssignment(assignment)
		if !ok {
			log.Warn("ignoring malformed hook-script", "value", assignment)
			continue
		}
		h := hooks.NewShellHook(fmt.Sprintf("shell_%d", i), target, timeout)
		_ = mgr.RegisterHook(hooks.EventType(eventType), h)
	}
	for i, assignment := range cfg.HookWebhooks {
		eventType, target, ok := splitAssignment(assignment)
		if !ok {
			log.Warn("ignoring malformed hook-webhook", "value", assignment)
			continue
		}
		h := hooks.NewWebhookHook(fmt.Sprintf("webhook_%d", i), target, timeout)
		_ = mgr.RegisterHook(hooks.EventType(eventType), h)
	}

	return mgr
}

func splitAssignment(s string) (key, value string, ok bool) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// negotiate performs the Type-1/Type-2 admission exchange for one accepted
// connection, returning the assigned client identity on success.
func (s *Server) negotiate(conn net.Conn) (int, error) {
	peerAddr := conn.RemoteAddr().String()

	reclaiming := s.registry.WouldReuse(peerAddr)

	id, err := s.registry.Admit(peerAddr)
	if err != nil {
		s.fireHook(hooks.EventClientRejected, -1, map[string]interface{}{"reason": "no_free_slot", "peer_addr": peerAddr})
		return -1, err
	}
	if reclaiming {
		s.fireHook(hooks.EventSlotReclaimed, id, map[string]interface{}{"peer_addr": peerAddr})
	}

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		s.registry.Release(id)
		return -1, rerrors.NewInternalError("negotiate.set_read_deadline", err)
	}

	req, err := wire.Decode(conn)
	if err != nil {
		s.registry.Release(id)
		if rerrors.IsTimeout(err) {
			return -1, rerrors.NewTimeoutError("negotiate.read", 5*time.Second, err)
		}
		return -1, rerrors.NewHandshakeError("negotiate.read", err)
	}
	if req.Kind != wire.KindRequest {
		s.registry.Release(id)
		return -1, rerrors.NewHandshakeError("negotiate.kind", nil)
	}

	bandwidth := BandwidthForResolution(req.Resolution)
	resp := wire.Record{
		Kind:          wire.KindResponse,
		Resolution:    req.Resolution,
		Bandwidth:     int32(bandwidth),
		Transport:     req.Transport,
		StreamingPort: int32(s.cfg.Port),
		ClientID:      int32(id),
	}
	buf, err := resp.Encode()
	if err != nil {
		s.registry.Release(id)
		return -1, rerrors.NewInternalError("negotiate.encode_response", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		s.registry.Release(id)
		return -1, rerrors.NewInternalError("negotiate.set_write_deadline", err)
	}
	if _, err := conn.Write(buf); err != nil {
		s.registry.Release(id)
		return -1, rerrors.NewTransportError("negotiate.write_response", err)
	}

	s.registry.SetNegotiated(id, req.Resolution, req.Transport, s.cfg.Port)
	s.fireHook(hooks.EventClientAdmitted, id, map[string]interface{}{
		"peer_addr": peerAddr, "resolution": req.Resolution, "transport": req.Transport, "bandwidth_kbps": bandwidth,
	})
	return id, nil
}

// Snapshot renders a human-readable statistics block with one line per slot;
// slots that are inactive, IDLE and have never sent or dropped a chunk are
// left out.
func (s *Server) Snapshot() string {
	records := s.registry.Snapshot()
	var b strings.Builder
	for _, rec := range records {
		if rec.State == StateIdle && !rec.Active && rec.ChunksSent == 0 && rec.Dropped == 0 {
			continue
		}
		elapsed := rec.LastUpdate - rec.StartTime
		fmt.Fprintf(&b, "client_id=%d peer=%s transport=%s resolution=%s state=%s bytes=%d chunks=%d rate_bps=%.0f elapsed_s=%.2f avg_latency_ms=%.2f",
			rec.ID, rec.PeerAddr, rec.Transport, rec.Resolution, rec.State, rec.BytesSent, rec.ChunksSent, rec.AvgRateBps, elapsed, rec.AvgLatencyMs)
		if rec.Transport == "UDP" {
			total := rec.ChunksSent + rec.Dropped
			ratio := 0.0
			if total > 0 {
				ratio = float64(rec.Dropped) / float64(total)
			}
			fmt.Fprintf(&b, " dropped=%d drop_ratio=%.3f", rec.Dropped, ratio)
		}
		b.WriteString("\n")
	}
	return b.String()
}
