package streaming

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/alxayo/vidstream/internal/streaming/chunkgen"
	"github.com/alxayo/vidstream/internal/streaming/hooks"
)

const (
	datagramRequestRetries = 5
	datagramRequestTimeout = 1 * time.Second
)

// deliverDatagram runs the datagram delivery engine for an active slot whose
// transport is UDP. It shares the server's single UDP endpoint with every
// other datagram client.
func (s *Server) deliverDatagram(id int) {
	rec := s.registry.BeginStreaming(id)
	log := s.log.With("client_id", id, "transport", "UDP", "resolution", rec.Resolution)

	s.fireHook(hooks.EventStreamingStarted, id, map[string]interface{}{"transport": "UDP", "resolution": rec.Resolution})

	peerIP, _, err := net.SplitHostPort(rec.PeerAddr)
	if err != nil {
		log.Warn("invalid peer address", "error", err)
		s.finishDelivery(id, "UDP")
		return
	}

	var senderAddr *net.UDPAddr
	matched := false
	for attempt := 0; attempt < datagramRequestRetries; attempt++ {
		addr, ok, err := s.endpoint.ReceiveRequest(peerIP, datagramRequestTimeout)
		if err == nil && ok {
			senderAddr = addr
			matched = true
			break
		}
	}
	if !matched {
		log.Info("no REQUEST_STREAM received, ending session")
		s.finishDelivery(id, "UDP")
		return
	}

	s.registry.UpdatePeerAddr(id, senderAddr.String())
	if err := s.endpoint.SendTo(senderAddr, []byte("READY_TO_STREAM")); err != nil {
		log.Warn("failed to send READY_TO_STREAM", "error", err)
		s.finishDelivery(id, "UDP")
		return
	}

	bandwidth := BandwidthForResolution(rec.Resolution)
	p := newPacer(bandwidth, chunkgen.SizeUDP, 0)
	ctx := context.Background()

	for seq := 1; seq <= s.cfg.VideoChunks; seq++ {
		if !s.registry.IsActive(id) {
			break
		}

		if rand.Intn(100) < s.cfg.UDPPacketLossRate {
			s.registry.UpdateStats(id, 0, 0, true)
			continue
		}

		chunk := chunkgen.Make(seq, rec.Resolution, chunkgen.SizeUDP)
		sendTime := s.clock.Now()
		err := s.endpoint.SendTo(senderAddr, chunk)
		chunkgen.Release(chunk)
		if err != nil {
			log.Warn("datagram send failed", "seq", seq, "error", err)
			break
		}
		latencyMs := (s.clock.Now() - sendTime) * 1000
		s.registry.UpdateStats(id, int64(chunkgen.SizeUDP), latencyMs, false)

		if err := p.Wait(ctx, chunkgen.SizeUDP); err != nil {
			break
		}
	}

	s.finishDelivery(id, "UDP")
}
