package fec

import (
	"encoding/binary"
	"errors"
)

// Kind distinguishes a Source packet (one original application payload)
// from a Repair packet (an XOR combination over a seen-set of Source
// sequence numbers).
type Kind uint8

const (
	KindSource Kind = 0
	KindRepair Kind = 1
)

// ErrInvalidPacket covers malformed packets, or declared lengths exceeding
// the containing datagram.
var ErrInvalidPacket = errors.New("fec: invalid packet")

// wire offsets for the FEC packet format.
const (
	offKind         = 0
	offSeq          = 1
	offGeneration   = 5
	offBlockID      = 9
	offIsRepair     = 13
	offOriginalSize = 14
	offDataLength   = 18
	offPayload      = 20
	fixedHeaderSize = offPayload
)

// Packet is the FecPacket entity: a Source packet carries exactly one
// sequence number in Seen ({SeqNo}); a Repair packet carries the full set of
// source sequence numbers it XOR-combines.
type Packet struct {
	Kind         Kind
	SeqNo        uint32
	GenerationID uint32
	BlockID      uint32
	OriginalSize uint32
	Payload      []byte
	Seen         []uint32 // for Source: exactly [SeqNo]; for Repair: the covered set
}

// NewSourcePacket builds a well-formed Source packet.
func NewSourcePacket(seq, generation, block uint32, originalSize uint32, payload []byte) Packet {
	return Packet{
		Kind:         KindSource,
		SeqNo:        seq,
		GenerationID: generation,
		BlockID:      block,
		OriginalSize: originalSize,
		Payload:      payload,
		Seen:         []uint32{seq},
	}
}

// Validate checks the FecPacket invariants: a Source packet's seen set is
// exactly {SeqNo}; a Repair packet's seen set is non-empty.
func (p Packet) Validate() error {
	switch p.Kind {
	case KindSource:
		if len(p.Seen) != 1 || p.Seen[0] != p.SeqNo {
			return ErrInvalidPacket
		}
	case KindRepair:
		if len(p.Seen) == 0 {
			return ErrInvalidPacket
		}
	default:
		return ErrInvalidPacket
	}
	return nil
}

// Marshal serializes the packet to its wire format. Pure-XOR Tetrys mode
// always writes a zero coefficient count and no coefficient bytes.
func (p Packet) Marshal() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(p.Payload) > 0xFFFF {
		return nil, ErrInvalidPacket
	}

	size := fixedHeaderSize + len(p.Payload) + 1 /*coeff count*/ + 1 /*source id count*/
	if p.Kind == KindRepair {
		size += 4 * len(p.Seen)
	}
	buf := make([]byte, size)

	buf[offKind] = byte(p.Kind)
	binary.LittleEndian.PutUint32(buf[offSeq:], p.SeqNo)
	binary.LittleEndian.PutUint32(buf[offGeneration:], p.GenerationID)
	binary.LittleEndian.PutUint32(buf[offBlockID:], p.BlockID)
	if p.Kind == KindRepair {
		buf[offIsRepair] = 1
	}
	binary.LittleEndian.PutUint32(buf[offOriginalSize:], p.OriginalSize)
	binary.LittleEndian.PutUint16(buf[offDataLength:], uint16(len(p.Payload)))
	off := offPayload
	copy(buf[off:], p.Payload)
	off += len(p.Payload)

	buf[off] = 0 // coefficient count, always 0 in pure-XOR mode
	off++

	if p.Kind == KindRepair {
		buf[off] = byte(len(p.Seen))
		off++
		for _, s := range p.Seen {
			binary.LittleEndian.PutUint32(buf[off:], s)
			off += 4
		}
	} else {
		buf[off] = 0
		off++
	}

	return buf, nil
}

// Unmarshal parses a wire-format FecPacket out of buf. It rejects packets
// whose declared lengths exceed the containing datagram (ErrInvalidPacket).
func Unmarshal(buf []byte) (Packet, error) {
	if len(buf) < fixedHeaderSize+2 { // +1 coeff count +1 source-id count minimum
		return Packet{}, ErrInvalidPacket
	}
	kind := Kind(buf[offKind])
	if kind != KindSource && kind != KindRepair {
		return Packet{}, ErrInvalidPacket
	}
	seq := binary.LittleEndian.Uint32(buf[offSeq:])
	gen := binary.LittleEndian.Uint32(buf[offGeneration:])
	block := binary.LittleEndian.Uint32(buf[offBlockID:])
	isRepair := buf[offIsRepair] != 0
	if isRepair != (kind == KindRepair) {
		return Packet{}, ErrInvalidPacket
	}
	originalSize := binary.LittleEndian.Uint32(buf[offOriginalSize:])
	dataLen := int(binary.LittleEndian.Uint16(buf[offDataLength:]))

	off := offPayload
	if off+dataLen > len(buf) {
		return Packet{}, ErrInvalidPacket
	}
	payload := make([]byte, dataLen)
	copy(payload, buf[off:off+dataLen])
	off += dataLen

	if off >= len(buf) {
		return Packet{}, ErrInvalidPacket
	}
	coeffCount := int(buf[off])
	off++
	if off+coeffCount > len(buf) {
		return Packet{}, ErrInvalidPacket
	}
	off += coeffCount // coefficients absent in pure-XOR mode (coeffCount==0)

	if off >= len(buf) {
		return Packet{}, ErrInvalidPacket
	}
	sourceIDCount := int(buf[off])
	off++
	if off+4*sourceIDCount > len(buf) {
		return Packet{}, ErrInvalidPacket
	}

	var seen []uint32
	if kind == KindSource {
		seen = []uint32{seq}
	} else {
		if sourceIDCount == 0 {
			return Packet{}, ErrInvalidPacket
		}
		seen = make([]uint32, sourceIDCount)
		for i := 0; i < sourceIDCount; i++ {
			seen[i] = binary.LittleEndian.Uint32(buf[off:])
			off += 4
		}
	}

	p := Packet{
		Kind:         kind,
		SeqNo:        seq,
		GenerationID: gen,
		BlockID:      block,
		OriginalSize: originalSize,
		Payload:      payload,
		Seen:         seen,
	}
	return p, p.Validate()
}
