// Package chunkgen produces fixed-size media payload chunks.
package chunkgen

import (
	"fmt"
	"time"

	"github.com/alxayo/vidstream/internal/bufpool"
)

// Size classes for the two transports.
const (
	SizeUDP = 8192
	SizeTCP = 131072
)

// fillPattern is the repeating filler that follows the ASCII chunk header.
const fillPattern = "VIDEODATA"

// EncodeLatency simulates the per-chunk encoding cost the original
// implementation pays before a chunk is ready to send. Tests may zero this
// out to avoid paying it VIDEO_CHUNKS times per delivery.
var EncodeLatency = 50 * time.Millisecond

// Make produces a chunk of exactly size bytes for the given sequence number
// and resolution tag: an ASCII header "VIDEO_CHUNK_<seq>_<resolution>_"
// followed by a repeating filler pattern, zero-terminated at the last byte.
// The backing buffer is drawn from the shared buffer pool.
func Make(seq int, resolution string, size int) []byte {
	if EncodeLatency > 0 {
		time.Sleep(EncodeLatency)
	}

	buf := bufpool.Get(size)
	header := []byte(fmt.Sprintf("VIDEO_CHUNK_%d_%s_", seq, resolution))
	n := copy(buf, header)

	for n < size {
		n += copy(buf[n:], fillPattern)
	}
	if size > 0 {
		buf[size-1] = 0
	}
	return buf
}

// Release returns a chunk buffer obtained from Make back to the pool.
func Release(buf []byte) {
	bufpool.Put(buf)
}
