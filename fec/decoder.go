package fec

import (
	"sort"

	"github.com/quicveil/stealthcore/simd"
)

// recoveryPasses bounds the recovery algorithm's iteration count (at least 3).
const recoveryPasses = 3

// Decoder is the DecoderState entity. It ingests Source and Repair packets
// in any order/subset and assembles the longest available contiguous byte
// prefix starting at its emit cursor (nextExpectedSeq).
type Decoder struct {
	cfg  Config
	disp *simd.Dispatcher

	receivedSource map[uint32]Packet // Source packets, keyed by their SeqNo (source sequence space)
	receivedRepair map[uint32]Packet // Repair packets, keyed by their own advisory SeqNo
	recovered      map[uint32]Packet // reconstructed Source packets, keyed by source SeqNo
	missing        map[uint32]struct{} // source sequence numbers known to be outstanding

	nextExpectedSeq uint32

	packetsRecovered uint64
	packetsStale     uint64
}

// NewDecoder constructs a Decoder from a validated Config.
func NewDecoder(cfg Config) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Decoder{
		cfg:            cfg,
		disp:           simd.Default(),
		receivedSource: make(map[uint32]Packet),
		receivedRepair: make(map[uint32]Packet),
		recovered:      make(map[uint32]Packet),
		missing:        make(map[uint32]struct{}),
	}, nil
}

// PacketsRecovered reports how many Source packets have been reconstructed
// from Repair packets over this Decoder's lifetime.
func (d *Decoder) PacketsRecovered() uint64 { return d.packetsRecovered }

// maxSeen returns the greatest sequence number in a Repair's seen set.
func maxSeen(seen []uint32) uint32 {
	m := seen[0]
	for _, s := range seen[1:] {
		if s > m {
			m = s
		}
	}
	return m
}

// AddPacket ingests one FecPacket. It deduplicates against already-known
// state (idempotent: feeding the same packet twice is a no-op), updates the
// missing set, runs recovery, and returns any newly contiguous payload
// bytes. A nil, nil return means "no contiguous prefix yet" — not a failure,
// an Unrecoverable classification rather than an error.
func (d *Decoder) AddPacket(p Packet) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, ErrInvalidPacket
	}

	if p.Kind == KindRepair && maxSeen(p.Seen) < d.nextExpectedSeq {
		d.packetsStale++
		return nil, ErrStale
	}

	if p.Kind == KindRepair {
		if _, ok := d.receivedRepair[p.SeqNo]; ok {
			return nil, nil // duplicate, idempotent no-op
		}
	} else {
		if _, ok := d.receivedSource[p.SeqNo]; ok {
			return nil, nil
		}
		if _, ok := d.recovered[p.SeqNo]; ok {
			return nil, nil
		}
	}

	if p.Kind == KindSource && p.SeqNo > d.nextExpectedSeq {
		for s := d.nextExpectedSeq; s < p.SeqNo; s++ {
			if d.isKnown(s) {
				continue
			}
			d.missing[s] = struct{}{}
		}
	}

	if p.Kind == KindRepair {
		d.receivedRepair[p.SeqNo] = p
		for _, s := range p.Seen {
			if s < d.nextExpectedSeq || d.isKnown(s) {
				continue
			}
			d.missing[s] = struct{}{}
		}
	} else {
		d.receivedSource[p.SeqNo] = p
		delete(d.missing, p.SeqNo)
	}

	d.runRecovery()
	d.flushOldEntries()

	return d.drainContiguous(), nil
}

func (d *Decoder) isKnown(seq uint32) bool {
	if _, ok := d.receivedSource[seq]; ok {
		return true
	}
	if _, ok := d.recovered[seq]; ok {
		return true
	}
	return false
}

func (d *Decoder) payloadOf(seq uint32) ([]byte, bool) {
	if pkt, ok := d.receivedSource[seq]; ok {
		return pkt.Payload, true
	}
	if pkt, ok := d.recovered[seq]; ok {
		return pkt.Payload, true
	}
	return nil, false
}

// runRecovery implements the Tetrys-style recovery algorithm: up to
// recoveryPasses passes, each scanning Repair packets ordered by ascending
// count of still-missing references, solving the |M|=1 case by XORing out
// every known member of the covered set. The pass-index>=2 "recover
// |M|=pass_index via zero assumption" heuristic is deliberately omitted: it
// can fabricate wrong payloads under adversarial loss patterns, at the cost
// of recovering less.
func (d *Decoder) runRecovery() {
	for pass := 0; pass < recoveryPasses; pass++ {
		progressed := false

		var repairs []Packet
		for _, pkt := range d.receivedRepair {
			repairs = append(repairs, pkt)
		}
		sort.Slice(repairs, func(i, j int) bool {
			return d.missingCount(repairs[i]) < d.missingCount(repairs[j])
		})

		for _, r := range repairs {
			var m uint32
			count := 0
			for _, s := range r.Seen {
				if _, stillMissing := d.missing[s]; stillMissing {
					count++
					m = s
					if count > 1 {
						break
					}
				}
			}
			if count != 1 {
				continue
			}

			payload := append([]byte(nil), r.Payload...)
			ok := true
			for _, s := range r.Seen {
				if s == m {
					continue
				}
				other, known := d.payloadOf(s)
				if !known {
					ok = false
					break
				}
				n := len(payload)
				if len(other) < n {
					n = len(other)
				}
				d.disp.XorInto(payload[:n], other[:n])
			}
			if !ok {
				continue
			}

			d.recovered[m] = Packet{
				Kind:         KindSource,
				SeqNo:        m,
				GenerationID: r.GenerationID,
				BlockID:      r.BlockID,
				OriginalSize: originalSizeFor(payload),
				Payload:      payload,
				Seen:         []uint32{m},
			}
			delete(d.missing, m)
			d.packetsRecovered++
			progressed = true
		}

		if !progressed {
			break
		}
	}
}

// originalSizeFor is a conservative fallback for recovered payloads: the
// true OriginalSize travels on the wire only with the Source packet that
// was lost, so a recovered Source cannot know exactly how much of its tail
// was zero padding. We preserve the full block rather than guess — pad
// bytes are preserved by default.
func originalSizeFor(payload []byte) uint32 {
	return uint32(len(payload))
}

func (d *Decoder) missingCount(r Packet) int {
	n := 0
	for _, s := range r.Seen {
		if _, ok := d.missing[s]; ok {
			n++
		}
	}
	return n
}

// drainContiguous advances the emit cursor over every Source/recovered
// packet available back-to-back starting at nextExpectedSeq, trimming each
// to its declared OriginalSize. Received Source packets carry their exact
// OriginalSize; recovered ones carry the full block length (see
// originalSizeFor), so their zero padding is emitted as well.
func (d *Decoder) drainContiguous() []byte {
	var out []byte
	for {
		if pkt, ok := d.receivedSource[d.nextExpectedSeq]; ok {
			out = append(out, trim(pkt)...)
			d.nextExpectedSeq++
			continue
		}
		if pkt, ok := d.recovered[d.nextExpectedSeq]; ok {
			out = append(out, trim(pkt)...)
			d.nextExpectedSeq++
			continue
		}
		break
	}
	return out
}

func trim(p Packet) []byte {
	if int(p.OriginalSize) <= len(p.Payload) {
		return p.Payload[:p.OriginalSize]
	}
	return p.Payload
}

// flushOldEntries drops missing/received/recovered/repair bookkeeping that
// has fallen more than two windows behind the emit cursor, bounding decoder
// memory the way kcp-go's fecDecoder.flushShards bounds its shard map.
// Emitted Source/recovered payloads are kept here rather than deleted the
// instant drainContiguous emits them: a Repair packet can reference a
// sequence number the emit cursor has already passed, and recovery needs
// payloadOf to still find it.
func (d *Decoder) flushOldEntries() {
	if d.nextExpectedSeq < uint32(d.cfg.WindowSize)*2 {
		return
	}
	floor := d.nextExpectedSeq - uint32(d.cfg.WindowSize)*2
	for seq := range d.missing {
		if seq < floor {
			delete(d.missing, seq)
		}
	}
	for seq := range d.receivedSource {
		if seq < floor {
			delete(d.receivedSource, seq)
		}
	}
	for seq := range d.recovered {
		if seq < floor {
			delete(d.recovered, seq)
		}
	}
	for seq, pkt := range d.receivedRepair {
		if maxSeen(pkt.Seen) < floor {
			delete(d.receivedRepair, seq)
		}
	}
}
