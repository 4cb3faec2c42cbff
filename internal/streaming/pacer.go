package streaming

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// maxTCPChunkWaitMs caps the reliable-stream per-chunk pacing wait,
// regardless of how low the negotiated bandwidth is.
const maxTCPChunkWaitMs = 500

// pacer approximates a negotiated bit rate with a byte-denominated token
// bucket, generalizing the classic per-chunk sleep formula
// (8*bytes/bandwidth_kbps ms) so that bursts within a chunk are also bounded,
// not just the gap between chunks.
type pacer struct {
	limiter *rate.Limiter
	capMs   int // 0 means uncapped
}

// newPacer builds a pacer whose steady-state throughput is bandwidthKbps
// kbit/s, expressed as bytes/sec for the limiter. capMs, if positive, bounds
// the maximum wait for a single Wait(chunkSize) call (used by the
// reliable-stream engine's min(500, ...) rule).
func newPacer(bandwidthKbps int, chunkSize, capMs int) *pacer {
	bytesPerSec := float64(bandwidthKbps) * 1000 / 8
	return &pacer{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), chunkSize),
		capMs:   capMs,
	}
}

// Wait blocks until chunkSize bytes of budget are available, capped at capMs
// milliseconds when capMs > 0 (the reliable-stream path's min(500, ...) rule).
// Mirrors the ThrottledWriter.Write pattern of calling WaitN on the limiter,
// but bounds the wait instead of letting a slow bandwidth stall indefinitely.
func (p *pacer) Wait(ctx context.Context, chunkSize int) error {
	waitCtx := ctx
	if p.capMs > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, time.Duration(p.capMs)*time.Millisecond)
		defer cancel()
	}
	if err := p.limiter.WaitN(waitCtx, chunkSize); err != nil {
		if p.capMs > 0 && ctx.Err() == nil {
			// WaitN fails at once when the budget cannot be met within the
			// cap; wait the cap out and proceed under the min(...) rule.
			<-waitCtx.Done()
			return nil
		}
		return err
	}
	return nil
}
