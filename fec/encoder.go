package fec

import (
	"math"

	"github.com/quicveil/stealthcore/simd"
)

const safetyMargin = 0.15
const emaAlpha = 0.5

// Encoder is the EncoderState entity: it owns a bounded sliding window of
// recently emitted Source packets, a running repair accumulator, and the
// current adaptive redundancy ratio.
type Encoder struct {
	cfg    Config
	disp   *simd.Dispatcher

	nextSeqNo       uint32 // Source sequence space only
	repairCounter   uint32 // separate counter for Repair packets; advisory, never gates contiguity
	generationID    uint32
	blockID         uint32
	window          []Packet // ordered, oldest first, bounded by cfg.WindowSize
	currentRedundancy float64

	repairPayload []byte
	repairSeen    []uint32

	sourceCount  uint64
	repairCount  uint64
	repairEveryN int // used only when !cfg.Adaptive

	packetsEncoded uint64
}

// NewEncoder constructs an Encoder from a validated Config.
func NewEncoder(cfg Config) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Encoder{
		cfg:               cfg,
		disp:              simd.Default(),
		currentRedundancy: cfg.InitialRedundancy,
	}
	e.refreshFixedInterval()
	return e, nil
}

func (e *Encoder) refreshFixedInterval() {
	if e.currentRedundancy <= 0 {
		e.repairEveryN = 1 << 30 // effectively never, guards against div-by-zero
		return
	}
	e.repairEveryN = int(math.Ceil(1 / e.currentRedundancy))
	if e.repairEveryN < 1 {
		e.repairEveryN = 1
	}
}

// CurrentRedundancy reports the encoder's current redundancy ratio.
func (e *Encoder) CurrentRedundancy() float64 { return e.currentRedundancy }

// PacketsEncoded reports the running count of Source packets encoded.
func (e *Encoder) PacketsEncoded() uint64 { return e.packetsEncoded }

// EncodePacket pushes one application payload through the encoder. It
// returns exactly one Source packet and, when the repair schedule fires,
// one Repair packet appended after it, in that order.
func (e *Encoder) EncodePacket(payload []byte) []Packet {
	padded := make([]byte, e.cfg.BlockSize)
	n := copy(padded, payload)

	seq := e.nextSeqNo
	e.nextSeqNo++
	src := NewSourcePacket(seq, e.generationID, e.blockID, uint32(n), padded)
	e.packetsEncoded++
	e.sourceCount++

	e.pushWindow(src)
	e.accumulateRepair(src)

	out := []Packet{src}
	if e.shouldEmitRepair() {
		out = append(out, e.emitRepair())
	}
	return out
}

func (e *Encoder) pushWindow(p Packet) {
	e.window = append(e.window, p)
	for len(e.window) > e.cfg.WindowSize {
		e.window = e.window[1:]
	}
}

// accumulateRepair XORs the new Source payload into the running repair
// buffer, growing the buffer with zeros first if this Source is longer than
// anything seen so far (it never is in this implementation, since every
// Source is padded to a fixed cfg.BlockSize, but the growth path is kept for
// configurations where BlockSize changes mid-session).
func (e *Encoder) accumulateRepair(p Packet) {
	if len(e.repairPayload) < len(p.Payload) {
		grown := make([]byte, len(p.Payload))
		copy(grown, e.repairPayload)
		e.repairPayload = grown
	}
	e.disp.XorInto(e.repairPayload, p.Payload)
	e.repairSeen = append(e.repairSeen, p.SeqNo)
}

// shouldEmitRepair implements the repair schedule: in adaptive mode,
// emit whenever the repair:source ratio observed so far would otherwise fall
// below the current target redundancy; in fixed mode, emit every
// ceil(1/r) sources.
func (e *Encoder) shouldEmitRepair() bool {
	if len(e.repairSeen) == 0 {
		return false
	}
	if e.cfg.Adaptive {
		// Emit as soon as the repair:source ratio observed so far has
		// fallen at or below the target, so it tracks the target from below
		// rather than drifting arbitrarily far past it between repairs.
		currentRatio := float64(e.repairCount) / float64(e.sourceCount)
		return currentRatio <= e.currentRedundancy
	}
	return e.sourceCount%uint64(e.repairEveryN) == 0
}

func (e *Encoder) emitRepair() Packet {
	payload := e.repairPayload
	seen := e.repairSeen
	e.repairPayload = nil
	e.repairSeen = nil
	e.repairCount++

	seq := e.repairCounter
	e.repairCounter++
	return Packet{
		Kind:         KindRepair,
		SeqNo:        seq,
		GenerationID: e.generationID,
		BlockID:      e.blockID,
		OriginalSize: uint32(len(payload)),
		Payload:      payload,
		Seen:         seen,
	}
}

// UpdateNetworkMetrics adjusts the current redundancy ratio when the encoder
// is adaptive: target tracks 1.5x the observed loss plus
// a safety margin (or, above a 0.2 loss threshold, 1.5x the loss alone,
// without the additive margin — seeding a steeper response to heavy loss
// without letting the margin push it needlessly high), clamped to
// [min,max] and smoothed with an EMA of alpha=0.5. The result is then raised
// to at least the observed loss rate whenever that is still within
// max_redundancy, so the encoder never knowingly under-protects.
func (e *Encoder) UpdateNetworkMetrics(m NetworkMetrics) {
	if !e.cfg.Adaptive {
		return
	}
	var raw float64
	if m.PacketLossRate > 0.2 {
		raw = m.PacketLossRate * 1.5
	} else {
		raw = m.PacketLossRate*1.5 + safetyMargin
	}
	target := math.Min(math.Max(raw, e.cfg.MinRedundancy), e.cfg.MaxRedundancy)

	e.currentRedundancy = emaAlpha*target + (1-emaAlpha)*e.currentRedundancy
	if m.PacketLossRate <= e.cfg.MaxRedundancy && e.currentRedundancy < m.PacketLossRate {
		e.currentRedundancy = m.PacketLossRate
	}
	e.refreshFixedInterval()
}
