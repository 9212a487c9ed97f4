package stealth

import (
	"math/rand"
	"time"
)

// DPIEvasion implements the datagram-shaping evasion techniques. It operates
// on already-encrypted packets — it never inspects plaintext.
type DPIEvasion struct {
	cfg Config
	rng *rand.Rand
}

func NewDPIEvasion(cfg Config) *DPIEvasion {
	return &DPIEvasion{cfg: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Fragment splits pkt into two datagrams when it exceeds a threshold sampled
// from [MinFragmentSize, MaxFragmentSize]. The first fragment is sized
// within [MinFragmentSize, threshold]; the second carries the remainder and
// is not bounded, so it can be shorter than MinFragmentSize or longer than
// MaxFragmentSize. Returns the input unsplit, as a single element slice,
// when fragmentation is disabled or pkt is already small.
func (d *DPIEvasion) Fragment(pkt []byte) [][]byte {
	if !d.cfg.EnableFragmentation || len(pkt) <= d.cfg.MinFragmentSize {
		return [][]byte{pkt}
	}
	threshold := d.sampleInRange(d.cfg.MinFragmentSize, d.cfg.MaxFragmentSize)
	if len(pkt) <= threshold {
		return [][]byte{pkt}
	}
	split := d.sampleInRange(d.cfg.MinFragmentSize, min(threshold, len(pkt)-1))
	if split <= 0 || split >= len(pkt) {
		split = len(pkt) / 2
	}
	return [][]byte{pkt[:split], pkt[split:]}
}

// NextDelay returns how long the transport should wait before emitting the
// next datagram, honoring EnableTimingRandom. A zero duration means "send
// immediately."
func (d *DPIEvasion) NextDelay() time.Duration {
	if !d.cfg.EnableTimingRandom {
		return 0
	}
	ms := d.cfg.MinDelayMillis + d.rng.Float64()*(d.cfg.MaxDelayMillis-d.cfg.MinDelayMillis)
	return time.Duration(ms * float64(time.Millisecond))
}

// Pad appends a random-length PADDING-frame-style block in
// [MinPaddingSize, MaxPaddingSize] bytes, returning the padded buffer and
// the padding length added (so the caller can emit a QUIC PADDING frame of
// that size and the receiver can discard exactly that many trailing bytes).
func (d *DPIEvasion) Pad(pkt []byte) ([]byte, int) {
	if !d.cfg.EnablePayloadPadding && !d.cfg.EnablePayloadRandom {
		return pkt, 0
	}
	n := d.sampleInRange(d.cfg.MinPaddingSize, d.cfg.MaxPaddingSize)
	if n <= 0 {
		return pkt, 0
	}
	padding := make([]byte, n)
	_, _ = rand.Read(padding)
	return append(pkt, padding...), n
}

// httpMimicLines are decoy HTTP/1.1 request lines for otherwise-empty probe
// packets ("HTTP mimicry").
var httpMimicLines = []string{
	"GET / HTTP/1.1\r\nHost: www.example.com\r\n\r\n",
	"GET /favicon.ico HTTP/1.1\r\nHost: www.example.com\r\n\r\n",
	"HEAD / HTTP/1.1\r\nHost: www.example.com\r\n\r\n",
}

// MimicProbe returns an ASCII HTTP-request-shaped decoy for an empty probe
// packet, or nil if HTTP mimicry is disabled.
func (d *DPIEvasion) MimicProbe() []byte {
	if !d.cfg.EnableHTTPMimicry {
		return nil
	}
	line := httpMimicLines[d.rng.Intn(len(httpMimicLines))]
	return []byte(line)
}

func (d *DPIEvasion) sampleInRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + d.rng.Intn(hi-lo+1)
}
