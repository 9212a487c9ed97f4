package stealth

import (
	"math/rand"
	"time"
)

// SpinBitRandomizer: QUIC short-header packets carry a
// 1-bit spin signal that reveals RTT to on-path observers. The randomizer
// overwrites it per the configured strategy without touching payload bytes.
type SpinBitRandomizer struct {
	strategy SpinBitStrategy
	rng      *rand.Rand
}

func NewSpinBitRandomizer(strategy SpinBitStrategy) *SpinBitRandomizer {
	return &SpinBitRandomizer{
		strategy: strategy,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// shortHeaderSpinBitMask is bit position 0x20 of a QUIC short header's first
// byte (the spin bit, per RFC 9000 §17.3.1).
const shortHeaderSpinBitMask = 0x20

// Apply rewrites the spin bit of a short-header QUIC packet's first byte in
// place. It is a no-op for long-header packets (high bit set) since the
// spin bit is only defined for short headers.
func (s *SpinBitRandomizer) Apply(firstByte *byte, originalSpin bool) {
	if *firstByte&0x80 != 0 {
		return // long header, spin bit not defined
	}
	bit := s.nextBit(originalSpin)
	if bit {
		*firstByte |= shortHeaderSpinBitMask
	} else {
		*firstByte &^= shortHeaderSpinBitMask
	}
}

func (s *SpinBitRandomizer) nextBit(originalSpin bool) bool {
	switch s.strategy {
	case SpinOff:
		return originalSpin
	case SpinRandom:
		return s.rng.Intn(2) == 1
	case SpinTiming:
		return time.Now().UnixNano()&1 == 1
	default:
		return originalSpin
	}
}
