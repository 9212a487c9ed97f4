package transport

import (
	"github.com/quicveil/stealthcore/fec"
	"github.com/quicveil/stealthcore/internal/telemetry"
	"github.com/quicveil/stealthcore/stealth"
)

// Session is the per-connection glue behind encode_and_shield/
// unshield_and_decode: it owns one Encoder, one Decoder, and one Governor.
// Session applies no internal locking of its own — the enclosing connection
// (ShieldedConn) serializes access.
type Session struct {
	// StreamID keys the XOR obfuscator's per-packet context. This core
	// library shields one underlying datagram channel per Session; any
	// higher-level stream multiplexing (smux) happens above this layer, so
	// StreamID is fixed for the Session's lifetime rather than varying
	// per smux stream.
	StreamID uint64

	enc *fec.Encoder
	dec *fec.Decoder
	gov *stealth.Governor

	counters       *telemetry.Counters
	lastRecovered  uint64
}

// NewSession builds a Session from validated FEC and Stealth configs.
func NewSession(fecCfg fec.Config, stealthCfg stealth.Config, streamID uint64) (*Session, error) {
	enc, err := fec.NewEncoder(fecCfg)
	if err != nil {
		return nil, err
	}
	dec, err := fec.NewDecoder(fecCfg)
	if err != nil {
		return nil, err
	}
	return &Session{
		StreamID: streamID,
		enc:      enc,
		dec:      dec,
		gov:      stealth.NewGovernor(stealthCfg),
		counters: telemetry.Default,
	}, nil
}

// EncodeAndShield is the send-side transport boundary:
// arbitrary application payload in (already framed by the caller), one or
// more UDP-ready datagrams out, in send order.
func (s *Session) EncodeAndShield(payload []byte) [][]byte {
	packets := s.enc.EncodePacket(payload)

	var datagrams [][]byte
	for _, p := range packets {
		wire, err := p.Marshal()
		if err != nil {
			// Marshal only fails when EncodePacket built an internally
			// inconsistent Packet — a library bug, not caller-reachable
			// input, so there is nothing for the caller to act on.
			s.counters.AddFecErrors(1)
			continue
		}
		s.counters.AddFecEncoded(1)
		datagrams = append(datagrams, s.gov.ShieldOutgoing(wire, s.StreamID)...)
	}
	return datagrams
}

// UnshieldAndDecode is the receive-side transport boundary:
// one inbound, already-reassembled UDP datagram in, zero or more contiguous
// payload bytes out. A nil, nil return means the decoder has no new
// contiguous prefix yet (unrecoverable for now, not an error).
func (s *Session) UnshieldAndDecode(datagram []byte) ([]byte, error) {
	wire := s.gov.UnshieldIncoming(datagram, s.StreamID)
	p, err := fec.Unmarshal(wire)
	if err != nil {
		s.counters.AddFecErrors(1)
		return nil, err
	}
	out, err := s.dec.AddPacket(p)
	if err == nil {
		if recovered := s.dec.PacketsRecovered(); recovered > s.lastRecovered {
			s.counters.AddFecRecovered(recovered - s.lastRecovered)
			s.lastRecovered = recovered
		}
	}
	return out, err
}

// UpdateMetrics feeds observed network conditions back into the adaptive FEC
// encoder so later EncodePacket calls adjust their redundancy ratio.
func (s *Session) UpdateMetrics(m fec.NetworkMetrics) { s.enc.UpdateNetworkMetrics(m) }

// Governor exposes the underlying Stealth Governor so the enclosing
// transport can drive path migration, ClientHello rewriting, decoy HTTP/3
// headers, and calculate_next_delay directly.
func (s *Session) Governor() *stealth.Governor { return s.gov }
