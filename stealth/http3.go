package stealth

import (
	"bytes"
	"encoding/binary"
	"math/rand"

	"golang.org/x/net/http2/hpack"
)

// sentinelHeaderName is the marker the peer looks for to recognize and strip
// the decoy HTTP/3 header block. It is not a legitimate header
// name, so it can never collide with the real protocol's critical headers.
const sentinelHeaderName = "x-qf-decoy"

// decoyHeaderOrder lists the names of a small, legitimate-looking request
// header set. On each call everything after :method (which browsers always
// emit first) is shuffled with the rng passed to EncodeDecoyHeaders; the
// BrowserProfile supplies header values, not the ordering.
var decoyHeaderOrder = []string{
	":method", ":path", ":authority", "accept", "user-agent",
	"accept-language", "accept-encoding", "cache-control",
}

// EncodeDecoyHeaders produces a QPACK-encoded (via HPACK's static/dynamic
// table machinery, which QPACK's instruction set is modeled on) block of
// decoy request headers drawn from profile, terminated by the sentinel
// field. The block is prefixed with its own 2-byte length so a peer running
// StripDecoyHeaders can find the boundary without running the HPACK state
// machine against the real payload that follows.
func EncodeDecoyHeaders(profile *BrowserProfile, rng *rand.Rand) []byte {
	if profile == nil {
		profile = DefaultProfile()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	values := map[string]string{
		":method":          "GET",
		":path":            "/",
		":authority":       "www.example.com",
		"accept":           "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"user-agent":       profile.UserAgent,
		"accept-language":  profile.AcceptLanguage,
		"accept-encoding":  "gzip, deflate, br",
		"cache-control":    "no-cache",
	}

	order := append([]string(nil), decoyHeaderOrder[1:]...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	order = append([]string{decoyHeaderOrder[0]}, order...)

	var buf bytes.Buffer
	enc := hpack.NewEncoder(&buf)
	for _, name := range order {
		_ = enc.WriteField(hpack.HeaderField{Name: name, Value: values[name]})
	}
	_ = enc.WriteField(hpack.HeaderField{Name: sentinelHeaderName, Value: "1"})

	block := buf.Bytes()
	framed := make([]byte, 2+len(block))
	binary.BigEndian.PutUint16(framed, uint16(len(block)))
	copy(framed[2:], block)
	return framed
}

// StripDecoyHeaders decodes a header block produced by EncodeDecoyHeaders
// and returns the bytes following it, i.e. the real payload. If data is too
// short or does not carry the sentinel field, it is returned unchanged (no
// decoy was present).
func StripDecoyHeaders(data []byte) []byte {
	if len(data) < 2 {
		return data
	}
	blockLen := int(binary.BigEndian.Uint16(data))
	if 2+blockLen > len(data) {
		return data
	}
	block := data[2 : 2+blockLen]

	var sawSentinel bool
	dec := hpack.NewDecoder(4096, func(f hpack.HeaderField) {
		if f.Name == sentinelHeaderName {
			sawSentinel = true
		}
	})
	if _, err := dec.Write(block); err != nil || !sawSentinel {
		return data
	}
	return data[2+blockLen:]
}
