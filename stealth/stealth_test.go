package stealth

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"
)

// buildTestClientHello constructs a minimal, well-formed TLS 1.2-shaped
// ClientHello record carrying exactly one extension: server_name=host.
func buildTestClientHello(host string) []byte {
	ext := buildServerNameExtension(host)

	var body bytes.Buffer
	body.Write([]byte{0x03, 0x03})             // client_version: TLS 1.2
	body.Write(make([]byte, 32))               // random
	body.WriteByte(0)                          // session_id_len
	binary.Write(&body, binary.BigEndian, uint16(2)) // cipher_suites_len
	body.Write([]byte{0x13, 0x01})             // one cipher suite
	body.WriteByte(1)                          // compression_methods_len
	body.WriteByte(0)                          // compression_methods
	binary.Write(&body, binary.BigEndian, uint16(len(ext))) // extensions_len
	body.Write(ext)

	var hs bytes.Buffer
	hs.WriteByte(tlsHandshakeTypeClientHello)
	bl := body.Len()
	hs.Write([]byte{byte(bl >> 16), byte(bl >> 8), byte(bl)})
	hs.Write(body.Bytes())

	var record bytes.Buffer
	record.WriteByte(tlsContentTypeHandshake)
	record.Write([]byte{0x03, 0x03}) // record version
	binary.Write(&record, binary.BigEndian, uint16(hs.Len()))
	record.Write(hs.Bytes())

	return record.Bytes()
}

// assertFramingConsistent re-parses record and checks that record length,
// handshake length, and extensions length agree with each other.
func assertFramingConsistent(t *testing.T, record []byte) {
	t.Helper()
	if len(record) < 9 {
		t.Fatalf("record too short: %d bytes", len(record))
	}
	recordLen := int(binary.BigEndian.Uint16(record[3:]))
	if recordLen != len(record)-5 {
		t.Fatalf("record length field %d != actual %d", recordLen, len(record)-5)
	}
	hsLen := int(record[6])<<16 | int(record[7])<<8 | int(record[8])
	if hsLen != recordLen-4 {
		t.Fatalf("handshake length %d != record length - 4 (%d)", hsLen, recordLen-4)
	}

	layout, err := parseClientHello(record)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	extLen := int(binary.BigEndian.Uint16(record[layout.extensionsLenOff:]))
	if layout.extEnd-layout.extStart != extLen {
		t.Fatalf("extensions length field %d != actual span %d", extLen, layout.extEnd-layout.extStart)
	}
	wantBodyLen := 2 + 32 + 1 + 0 + 2 + 2 + 1 + 1 + 2 + extLen
	if hsLen != wantBodyLen {
		t.Fatalf("handshake length %d != computed body length %d", hsLen, wantBodyLen)
	}
}

// Scenario 4: SNI substitution via domain fronting.
func TestSNISubstitutionScenario4(t *testing.T) {
	record := buildTestClientHello("example.com")

	cfg := NewConfig(Minimal)
	cfg.EnableDomainFronting = true
	cfg.FrontDomain = "www.cloudflare.com"

	recordLenBefore := int(binary.BigEndian.Uint16(record[3:]))

	out, err := RewriteClientHello(record, cfg)
	if err != nil {
		t.Fatal(err)
	}
	assertFramingConsistent(t, out)

	recordLenAfter := int(binary.BigEndian.Uint16(out[3:]))
	if delta := recordLenAfter - recordLenBefore; delta != 7 {
		t.Fatalf("expected all three length fields to grow by 7, record length grew by %d", delta)
	}

	layout, _ := parseClientHello(out)
	extOff, extLen, ok := findExtension(out, layout, extServerName)
	if !ok {
		t.Fatal("server_name extension missing after rewrite")
	}
	host, err := sniHost(out, extOff, extLen)
	if err != nil {
		t.Fatal(err)
	}
	if host != "www.cloudflare.com" {
		t.Fatalf("host = %q, want www.cloudflare.com", host)
	}
}

func TestClientHelloFramingAcrossAllTechniques(t *testing.T) {
	techniques := []func(*Config){
		func(c *Config) { c.EnableDomainFronting = true },
		func(c *Config) { c.EnableSNIPadding = true },
		func(c *Config) { c.EnableSNIOmission = true },
		func(c *Config) { c.EnableSNISplit = true },
		func(c *Config) {
			c.EnableECH = true
			c.ECHConfig = []byte{0x01, 0x02, 0x03, 0x04}
		},
		func(c *Config) {
			c.EnableDomainFronting = true
			c.EnableSNIPadding = true
			c.EnableSNISplit = true
		},
	}

	for i, apply := range techniques {
		record := buildTestClientHello("example.com")
		cfg := NewConfig(Minimal)
		cfg.FrontDomain = "www.cloudflare.com"
		apply(&cfg)

		out, err := RewriteClientHello(record, cfg)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		assertFramingConsistent(t, out)
	}
}

func TestSNIOmissionRemovesExtension(t *testing.T) {
	record := buildTestClientHello("example.com")
	cfg := NewConfig(Minimal)
	cfg.EnableSNIOmission = true

	out, err := RewriteClientHello(record, cfg)
	if err != nil {
		t.Fatal(err)
	}
	assertFramingConsistent(t, out)

	layout, _ := parseClientHello(out)
	if _, _, ok := findExtension(out, layout, extServerName); ok {
		t.Fatal("server_name extension still present after omission")
	}
}

// XOR involution: deobfuscate(obfuscate(X, ctx), ctx) = X, for every
// pattern and a handful of contexts.
func TestXorInvolutionAllPatterns(t *testing.T) {
	patterns := []XorPattern{
		XorSimple, XorLayered, XorPositionBased,
		XorCryptoSecure, XorFecOptimized, XorHeaderSpecific,
	}
	contexts := []uint64{0, 1, 42, 1 << 40}

	for _, pat := range patterns {
		for _, ctx := range contexts {
			cfg := NewConfig(Standard)
			cfg.XorPattern = pat
			cfg.XorBaseKey = []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03}
			cfg.XorKeyRotateN = 1000

			sender := NewObfuscator(cfg)
			receiver := NewObfuscator(cfg)

			original := make([]byte, 300)
			rand.New(rand.NewSource(int64(ctx) + 7)).Read(original)

			buf := append([]byte(nil), original...)
			sender.Obfuscate(buf, ctx)
			if bytes.Equal(buf, original) && len(original) > 0 {
				t.Fatalf("pattern %v ctx %d: obfuscate was a no-op", pat, ctx)
			}
			receiver.Deobfuscate(buf, ctx)

			if !bytes.Equal(buf, original) {
				t.Fatalf("pattern %v ctx %d: involution failed", pat, ctx)
			}
		}
	}
}

// FEC-linearity property specific to XorFecOptimized: XOR(mask(a), mask(b))
// must equal XOR(a, b), so masking distributes over the repair XOR
// accumulator.
func TestXorFecOptimizedPreservesLinearity(t *testing.T) {
	cfg := NewConfig(Standard)
	cfg.XorPattern = XorFecOptimized
	cfg.XorBaseKey = []byte{0x11, 0x22, 0x33}

	a := make([]byte, 64)
	b := make([]byte, 64)
	rand.New(rand.NewSource(1)).Read(a)
	rand.New(rand.NewSource(2)).Read(b)

	xorAB := make([]byte, 64)
	for i := range xorAB {
		xorAB[i] = a[i] ^ b[i]
	}

	maskedA := append([]byte(nil), a...)
	maskedB := append([]byte(nil), b...)
	NewObfuscator(cfg).Obfuscate(maskedA, 0)
	NewObfuscator(cfg).Obfuscate(maskedB, 0)

	xorMasked := make([]byte, 64)
	for i := range xorMasked {
		xorMasked[i] = maskedA[i] ^ maskedB[i]
	}

	if !bytes.Equal(xorMasked, xorAB) {
		t.Fatal("XorFecOptimized does not preserve XOR-linearity across packets")
	}
}

// Spin-bit isolation: randomization changes at most one bit per
// short-header packet and never any other byte.
func TestSpinBitIsolation(t *testing.T) {
	for _, strategy := range []SpinBitStrategy{SpinOff, SpinRandom, SpinTiming} {
		r := NewSpinBitRandomizer(strategy)
		pkt := []byte{0x40, 0xAA, 0xBB, 0xCC} // short header, spin bit clear
		orig := append([]byte(nil), pkt...)

		r.Apply(&pkt[0], false)

		if !bytes.Equal(pkt[1:], orig[1:]) {
			t.Fatal("spin-bit randomization touched payload bytes")
		}
		diff := pkt[0] ^ orig[0]
		if diff&^shortHeaderSpinBitMask != 0 {
			t.Fatalf("spin-bit randomization changed bits outside the spin bit: diff=%08b", diff)
		}
	}
}

func TestSpinBitIgnoresLongHeader(t *testing.T) {
	r := NewSpinBitRandomizer(SpinRandom)
	b := byte(0x80) // long header
	orig := b
	r.Apply(&b, false)
	if b != orig {
		t.Fatal("spin-bit randomizer modified a long-header first byte")
	}
}

// Policy table: every level's per-technique defaults match the fixed policy
// table exactly for a representative subset of columns.
func TestPolicyTableDefaults(t *testing.T) {
	cases := []struct {
		level           Level
		fragment, front bool
		spin            SpinBitStrategy
	}{
		{Minimal, false, false, SpinOff},
		{Standard, false, false, SpinRandom},
		{Enhanced, true, true, SpinTiming},
		{Maximum, true, true, SpinRandom},
	}
	for _, c := range cases {
		cfg := NewConfig(c.level)
		if cfg.EnableFragmentation != c.fragment {
			t.Errorf("level %v: EnableFragmentation = %v, want %v", c.level, cfg.EnableFragmentation, c.fragment)
		}
		if cfg.EnableDomainFronting != c.front {
			t.Errorf("level %v: EnableDomainFronting = %v, want %v", c.level, cfg.EnableDomainFronting, c.front)
		}
		if cfg.SpinBit != c.spin {
			t.Errorf("level %v: SpinBit = %v, want %v", c.level, cfg.SpinBit, c.spin)
		}
	}
}

func TestDecoyHeaderRoundTrip(t *testing.T) {
	profile := DefaultProfile()
	rng := rand.New(rand.NewSource(5))
	block := EncodeDecoyHeaders(profile, rng)

	payload := []byte("hello world")
	full := append(append([]byte(nil), block...), payload...)

	stripped := StripDecoyHeaders(full)
	if !bytes.Equal(stripped, payload) {
		t.Fatalf("stripped payload mismatch: got %q, want %q", stripped, payload)
	}
}

func TestGovernorShieldRoundTrip(t *testing.T) {
	cfg := NewConfig(Maximum)
	cfg.XorBaseKey = []byte{0x01, 0x02, 0x03, 0x04}

	sender := NewGovernor(cfg)
	receiver := NewGovernor(cfg)

	datagram := make([]byte, 200)
	datagram[0] = 0x40 // short header
	rand.New(rand.NewSource(9)).Read(datagram[1:])
	orig := append([]byte(nil), datagram...)

	fragments := sender.ShieldOutgoing(datagram, 77)

	var reassembled []byte
	for _, f := range fragments {
		reassembled = append(reassembled, f...)
	}

	got := receiver.UnshieldIncoming(reassembled, 77)

	// The spin bit is intentionally randomized on every egress datagram and
	// is never restored on ingress (it carries no application data), so
	// mask it off byte 0 before comparing — same treatment as the padding
	// tail.
	gotHead := append([]byte(nil), got[:len(orig)]...)
	wantHead := append([]byte(nil), orig...)
	gotHead[0] &^= shortHeaderSpinBitMask
	wantHead[0] &^= shortHeaderSpinBitMask

	if !bytes.Equal(gotHead, wantHead) {
		t.Fatal("shield/unshield round trip mismatch (ignoring padding tail and spin bit)")
	}
}
