package stealth

import (
	"math/rand"
	"time"
)

// Governor is the Stealth Governor: given a logical stream of
// outgoing bytes, it applies the enabled sub-module transforms to produce
// one or more transformed byte arrays, and reverses them on ingress. Each
// sub-module owns its own state and enable flag; the caller owns one
// Governor per connection.
type Governor struct {
	cfg Config

	obf   *Obfuscator
	spin  *SpinBitRandomizer
	dpi   *DPIEvasion
	paths *PathMigrationGovernor

	rng *rand.Rand
}

// NewGovernor builds a Governor for one connection from a Config. The
// caller owns one Governor per connection; there is no internal locking.
func NewGovernor(cfg Config) *Governor {
	return &Governor{
		cfg:   cfg,
		obf:   NewObfuscator(cfg),
		spin:  NewSpinBitRandomizer(cfg.SpinBit),
		dpi:   NewDPIEvasion(cfg),
		paths: NewPathMigrationGovernor(cfg),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ShieldOutgoing applies the enabled transforms to one QUIC datagram
// destined for the wire: spin-bit randomization, protocol obfuscation
// (XOR), padding, and fragmentation, in that order — fragmentation
// comes last since every earlier step operates on one logical datagram.
func (g *Governor) ShieldOutgoing(datagram []byte, streamID uint64) [][]byte {
	out := append([]byte(nil), datagram...)

	if len(out) > 0 {
		g.spin.Apply(&out[0], out[0]&shortHeaderSpinBitMask != 0)
	}
	if g.cfg.EnableProtocolObf && len(out) > 0 {
		g.obf.Obfuscate(out, streamID)
	}

	if padded, n := g.dpi.Pad(out); n > 0 {
		out = padded
	}

	return g.dpi.Fragment(out)
}

// UnshieldIncoming reverses ShieldOutgoing's protocol obfuscation for one
// received datagram. The padding tail is left in place and the spin bit is
// not restored. The caller is responsible for reassembling fragments before
// calling this — the fragmentation boundary is transport-visible, not
// self-describing.
func (g *Governor) UnshieldIncoming(datagram []byte, streamID uint64) []byte {
	out := append([]byte(nil), datagram...)
	if g.cfg.EnableProtocolObf && len(out) > 0 {
		g.obf.Deobfuscate(out, streamID)
	}
	return out
}

// RewriteOutgoingClientHello applies the SNI techniques to a TLS
// ClientHello record about to be sent. Non-ClientHello records are returned
// unchanged.
func (g *Governor) RewriteOutgoingClientHello(record []byte) ([]byte, error) {
	return RewriteClientHello(record, g.cfg)
}

// DecoyHeaderBlock returns a QPACK-encoded decoy header block to prepend to
// an outgoing HTTP/3 request when masquerade is enabled, or nil otherwise.
func (g *Governor) DecoyHeaderBlock() []byte {
	if !g.cfg.EnableHTTP3Masquerade {
		return nil
	}
	return EncodeDecoyHeaders(g.cfg.Profile, g.rng)
}

// StripDecoyHeaderBlock removes a decoy header block from ingress data, if
// present.
func (g *Governor) StripDecoyHeaderBlock(data []byte) []byte {
	if !g.cfg.EnableHTTP3Masquerade {
		return data
	}
	return StripDecoyHeaders(data)
}

// NextDelay reports how long the transport should wait before sending the
// next datagram, driven by the DPI evasion module's timing randomization.
func (g *Governor) NextDelay() time.Duration { return g.dpi.NextDelay() }

// Paths exposes the path migration governor for the enclosing transport to
// drive PATH_CHALLENGE/PATH_RESPONSE against.
func (g *Governor) Paths() *PathMigrationGovernor { return g.paths }

// MimicProbe returns a decoy HTTP-request-shaped payload for an otherwise
// empty probe packet, or nil if disabled.
func (g *Governor) MimicProbe() []byte { return g.dpi.MimicProbe() }
