package fec

import (
	"bytes"
	"testing"
)

func testConfig() Config {
	return Config{
		BlockSize:         1024,
		WindowSize:        10,
		InitialRedundancy: 0.3,
		MinRedundancy:     0.1,
		MaxRedundancy:     0.5,
		Adaptive:          true,
	}
}

// Scenario 1: encode/decode round trip without loss.
func TestRoundTripNoLoss(t *testing.T) {
	var input []byte
	for i := 0; i < 4; i++ {
		for b := 0; b <= 255; b++ {
			input = append(input, byte(b))
		}
	}

	enc, err := NewEncoder(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	dec, err := NewDecoder(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	pkts := enc.EncodePacket(input)

	var got []byte
	for _, p := range pkts {
		out, err := dec.AddPacket(p)
		if err != nil && err != ErrStale {
			t.Fatalf("AddPacket: %v", err)
		}
		got = append(got, out...)
	}

	if !bytes.Equal(got, input) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(input))
	}
}

// Scenario 2: single-loss recovery.
func TestSingleLossRecovery(t *testing.T) {
	cfg := Config{
		BlockSize:         1024,
		WindowSize:        10,
		InitialRedundancy: 0.5,
		MinRedundancy:     0.1,
		MaxRedundancy:     0.5,
		Adaptive:          false,
	}
	enc, err := NewEncoder(cfg)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := NewDecoder(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var payloads [][]byte
	for i := 0; i < 10; i++ {
		p := make([]byte, 1024)
		for j := range p {
			p[j] = byte(i)
		}
		payloads = append(payloads, p)
	}

	var allPackets []Packet
	var sourceSeqNos []uint32
	for _, p := range payloads {
		produced := enc.EncodePacket(p)
		allPackets = append(allPackets, produced...)
		sourceSeqNos = append(sourceSeqNos, produced[0].SeqNo)
	}

	droppedSeq := sourceSeqNos[3] // the 4th Source packet carries payload index 3
	var assembled []byte
	for _, pkt := range allPackets {
		if pkt.Kind == KindSource && pkt.SeqNo == droppedSeq {
			continue // simulate loss
		}
		out, err := dec.AddPacket(pkt)
		if err != nil && err != ErrStale {
			t.Fatalf("AddPacket: %v", err)
		}
		assembled = append(assembled, out...)
	}

	want := bytes.Join(payloads, nil)
	if !bytes.Equal(assembled, want) {
		t.Fatalf("recovery mismatch: got %d bytes, want %d bytes", len(assembled), len(want))
	}
	if dec.PacketsRecovered() == 0 {
		t.Fatalf("expected at least one recovered packet")
	}
}

// Scenario 5: adaptive redundancy response.
func TestAdaptiveRedundancyConverges(t *testing.T) {
	cfg := Config{
		BlockSize:         1024,
		WindowSize:        10,
		InitialRedundancy: 0.1,
		MinRedundancy:     0.05,
		MaxRedundancy:     0.6,
		Adaptive:          true,
	}
	enc, err := NewEncoder(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		enc.UpdateNetworkMetrics(NetworkMetrics{PacketLossRate: 0.25})
	}

	got := enc.CurrentRedundancy()
	if got < 0.2 || got > 0.45 {
		t.Fatalf("current_redundancy = %v, want in [0.2, 0.45]", got)
	}
	if got < 0.25 {
		t.Fatalf("current_redundancy must never fall below the observed loss rate: got %v", got)
	}
}

// FEC idempotence: feeding the same packet twice leaves decoder state
// unchanged.
func TestDecoderIdempotent(t *testing.T) {
	cfg := testConfig()
	enc, _ := NewEncoder(cfg)
	dec, _ := NewDecoder(cfg)

	pkts := enc.EncodePacket(make([]byte, 100))
	first, err := dec.AddPacket(pkts[0])
	if err != nil {
		t.Fatal(err)
	}
	second, err := dec.AddPacket(pkts[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Fatalf("duplicate packet produced output: %v (first output was %d bytes)", second, len(first))
	}
}

func TestPacketMarshalRoundTrip(t *testing.T) {
	p := NewSourcePacket(42, 1, 2, 900, make([]byte, 1024))
	for i := range p.Payload {
		p.Payload[i] = byte(i)
	}
	buf, err := p.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.SeqNo != p.SeqNo || got.OriginalSize != p.OriginalSize || !bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, p)
	}
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	p := NewSourcePacket(1, 0, 0, 10, make([]byte, 10))
	buf, err := p.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unmarshal(buf[:len(buf)-3]); err == nil {
		t.Fatalf("expected ErrInvalidPacket for truncated buffer")
	}
}

func TestStaleRepairDropped(t *testing.T) {
	cfg := testConfig()
	enc, _ := NewEncoder(cfg)
	dec, _ := NewDecoder(cfg)

	// Advance the decoder's cursor well past seq 0 by feeding in-order
	// sources, then hand it a repair packet that only covers seq 0.
	for i := 0; i < 5; i++ {
		for _, p := range enc.EncodePacket(make([]byte, 16)) {
			if _, err := dec.AddPacket(p); err != nil && err != ErrStale {
				t.Fatal(err)
			}
		}
	}

	stale := Packet{Kind: KindRepair, SeqNo: 999, Seen: []uint32{0}, Payload: make([]byte, 16)}
	if _, err := dec.AddPacket(stale); err != ErrStale {
		t.Fatalf("expected ErrStale, got %v", err)
	}
}
