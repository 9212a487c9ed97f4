package stealth

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
)

// ErrNotClientHello is returned when the input is not a well-formed TLS
// Handshake record carrying a ClientHello.
var ErrNotClientHello = errors.New("stealth: not a TLS ClientHello record")

const (
	tlsContentTypeHandshake = 0x16
	tlsHandshakeTypeClientHello = 0x01
	extServerName              = 0x0000
	extECH                      = 0xfe0d
)

// clientHelloLayout records the byte offsets a SNI rewrite needs to keep TLS
// record framing consistent: record-layer length == handshake-layer length
// + 4 == (2 + 32 + 1 + session_id_len + 2 + cipher_len + 1 + compression_len
// + 2 + extensions_len).
type clientHelloLayout struct {
	extensionsLenOff int // offset of the 2-byte extensions_length field
	extStart         int // first byte of the extensions block
	extEnd           int // one past the last byte of the extensions block
}

// parseClientHello walks a TLS record's fixed-size fields to locate the
// extensions block. It does not validate extension contents beyond framing.
func parseClientHello(record []byte) (clientHelloLayout, error) {
	if len(record) < 9 || record[0] != tlsContentTypeHandshake {
		return clientHelloLayout{}, ErrNotClientHello
	}
	if record[5] != tlsHandshakeTypeClientHello {
		return clientHelloLayout{}, ErrNotClientHello
	}

	off := 9 // 5 record header + 4 handshake header
	off += 2 // client_version
	if off+32 > len(record) {
		return clientHelloLayout{}, ErrNotClientHello
	}
	off += 32 // random

	if off >= len(record) {
		return clientHelloLayout{}, ErrNotClientHello
	}
	sessIDLen := int(record[off])
	off++
	off += sessIDLen

	if off+2 > len(record) {
		return clientHelloLayout{}, ErrNotClientHello
	}
	cipherLen := int(binary.BigEndian.Uint16(record[off:]))
	off += 2
	off += cipherLen

	if off >= len(record) {
		return clientHelloLayout{}, ErrNotClientHello
	}
	compLen := int(record[off])
	off++
	off += compLen

	if off+2 > len(record) {
		return clientHelloLayout{}, ErrNotClientHello
	}
	extLenOff := off
	extLen := int(binary.BigEndian.Uint16(record[off:]))
	off += 2

	if off+extLen > len(record) {
		return clientHelloLayout{}, ErrNotClientHello
	}

	return clientHelloLayout{
		extensionsLenOff: extLenOff,
		extStart:         off,
		extEnd:           off + extLen,
	}, nil
}

// findExtension scans the extensions block of record for one of the given
// type, returning the offset of its type field and its total on-wire length
// (type + length + data).
func findExtension(record []byte, layout clientHelloLayout, wantType uint16) (off, totalLen int, ok bool) {
	p := layout.extStart
	for p+4 <= layout.extEnd {
		typ := binary.BigEndian.Uint16(record[p:])
		length := int(binary.BigEndian.Uint16(record[p+2:]))
		total := 4 + length
		if p+total > layout.extEnd {
			return 0, 0, false
		}
		if typ == wantType {
			return p, total, true
		}
		p += total
	}
	return 0, 0, false
}

// spliceExtensions replaces record[start:end] with replacement and adjusts
// the record-length, handshake-length, and extensions-length fields by the
// resulting delta, atomically, to keep TLS record framing consistent.
func spliceExtensions(record []byte, layout clientHelloLayout, start, end int, replacement []byte) []byte {
	delta := len(replacement) - (end - start)

	out := make([]byte, 0, len(record)+delta)
	out = append(out, record[:start]...)
	out = append(out, replacement...)
	out = append(out, record[end:]...)

	recordLen := int(binary.BigEndian.Uint16(out[3:])) + delta
	binary.BigEndian.PutUint16(out[3:], uint16(recordLen))

	hsLen := (int(out[6])<<16 | int(out[7])<<8 | int(out[8])) + delta
	out[6] = byte(hsLen >> 16)
	out[7] = byte(hsLen >> 8)
	out[8] = byte(hsLen)

	extLenOff := layout.extensionsLenOff
	extLen := int(binary.BigEndian.Uint16(out[extLenOff:])) + delta
	binary.BigEndian.PutUint16(out[extLenOff:], uint16(extLen))

	return out
}

func buildServerNameExtension(host string) []byte {
	nameLen := len(host)
	serverNameListLen := 1 + 2 + nameLen // name_type + name_len + name
	ext := make([]byte, 4+2+serverNameListLen)
	binary.BigEndian.PutUint16(ext[0:], extServerName)
	binary.BigEndian.PutUint16(ext[2:], uint16(2+serverNameListLen))
	binary.BigEndian.PutUint16(ext[4:], uint16(serverNameListLen))
	ext[6] = 0x00 // name_type: host_name
	binary.BigEndian.PutUint16(ext[7:], uint16(nameLen))
	copy(ext[9:], host)
	return ext
}

// sniHost extracts the host string from a located server_name extension.
func sniHost(record []byte, extOff, extTotalLen int) (string, error) {
	if extTotalLen < 4+2+1+2 {
		return "", ErrNotClientHello
	}
	nameLen := int(binary.BigEndian.Uint16(record[extOff+4+2+1:]))
	start := extOff + 4 + 2 + 1 + 2
	if start+nameLen > extOff+extTotalLen {
		return "", ErrNotClientHello
	}
	return string(record[start : start+nameLen]), nil
}

const randomSubdomainAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSubdomain() string {
	n := 5 + secureIntn(6) // length 5-10
	b := make([]byte, n)
	for i := range b {
		b[i] = randomSubdomainAlphabet[secureIntn(len(randomSubdomainAlphabet))]
	}
	return string(b)
}

func secureIntn(n int) int {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return int(binary.BigEndian.Uint32(b[:]) % uint32(n))
}

// RewriteClientHello applies the SNI techniques in order, each gated
// by its Config flag. It returns the input unchanged if no server_name
// extension is present, or if record does not parse as a ClientHello.
func RewriteClientHello(record []byte, cfg Config) ([]byte, error) {
	layout, err := parseClientHello(record)
	if err != nil {
		return record, err
	}

	out := append([]byte(nil), record...)

	extOff, extLen, ok := findExtension(out, layout, extServerName)
	if !ok {
		return out, nil
	}
	host, err := sniHost(out, extOff, extLen)
	if err != nil {
		return out, err
	}

	if cfg.EnableDomainFronting && cfg.FrontDomain != "" {
		host = cfg.FrontDomain
		newExt := buildServerNameExtension(host)
		out = spliceExtensions(out, layout, extOff, extOff+extLen, newExt)
		layout, _ = parseClientHello(out)
		extOff, extLen, ok = findExtension(out, layout, extServerName)
	}

	if ok && cfg.EnableSNIPadding {
		padded := randomSubdomain() + "." + host
		host = padded
		newExt := buildServerNameExtension(host)
		out = spliceExtensions(out, layout, extOff, extOff+extLen, newExt)
		layout, _ = parseClientHello(out)
		extOff, extLen, ok = findExtension(out, layout, extServerName)
	}

	if ok && cfg.EnableSNIOmission {
		out = spliceExtensions(out, layout, extOff, extOff+extLen, nil)
		layout, _ = parseClientHello(out)
		ok = false
	}

	if ok && cfg.EnableSNISplit {
		mid := len(host) / 2
		split := host[:mid] + string(byte(0x00)) + host[mid:]
		newExt := buildServerNameExtension(split)
		out = spliceExtensions(out, layout, extOff, extOff+extLen, newExt)
		layout, _ = parseClientHello(out)
	}

	if cfg.EnableECH && len(cfg.ECHConfig) > 0 {
		echExt := buildECHExtension(host, cfg.ECHConfig)
		out = spliceExtensions(out, layout, layout.extEnd, layout.extEnd, echExt)
	}

	return out, nil
}

// buildECHExtension appends an Encrypted-Client-Hello extension carrying the
// real SNI, masked under the ECH config's key material. This is not a full
// HPKE implementation of RFC 9180 — it XORs the host bytes against the
// config blob, repeated. This package has no peer-side ECH strip or decrypt
// path.
func buildECHExtension(realHost string, echConfig []byte) []byte {
	payload := obfuscateECHPayload(realHost, echConfig)
	ext := make([]byte, 4+2+len(payload))
	binary.BigEndian.PutUint16(ext[0:], extECH)
	binary.BigEndian.PutUint16(ext[2:], uint16(2+len(payload)))
	binary.BigEndian.PutUint16(ext[4:], uint16(len(payload)))
	copy(ext[6:], payload)
	return ext
}

func obfuscateECHPayload(host string, key []byte) []byte {
	out := []byte(host)
	for i := range out {
		out[i] ^= key[i%len(key)]
	}
	return out
}
