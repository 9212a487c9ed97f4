package stealth

import (
	"crypto/sha256"
	"encoding/binary"
	"hash/fnv"

	"github.com/quicveil/stealthcore/simd"
)

// Obfuscator implements the XOR obfuscator: keyed, context-dependent
// byte masking. Every pattern is a pure XOR stream, hence involutive —
// Obfuscate and Deobfuscate are the same operation given the same context.
type Obfuscator struct {
	pattern  XorPattern
	baseKey  []byte
	rotateN  uint64
	disp     *simd.Dispatcher

	opCount uint64
}

// NewObfuscator builds an Obfuscator from a Config. baseKey is typically
// derived from the session's PBKDF2 key material by the enclosing tunnel.
func NewObfuscator(cfg Config) *Obfuscator {
	key := cfg.XorBaseKey
	if len(key) == 0 {
		key = []byte{0x5a} // single-byte fallback key, never zero
	}
	return &Obfuscator{
		pattern: cfg.XorPattern,
		baseKey: key,
		rotateN: cfg.XorKeyRotateN,
		disp:    simd.Default(),
	}
}

// streamKey derives the keystream for one call, sized to n bytes, for the
// given context (stream_id for payload obfuscation, header-name hash for
// HeaderSpecific). The same (pattern, baseKey, context, rotation epoch, n)
// always yields the same keystream — required for the involution property.
func (o *Obfuscator) streamKey(n int, context uint64) []byte {
	epoch := uint64(0)
	if o.rotateN > 0 {
		epoch = o.opCount / o.rotateN
	}

	switch o.pattern {
	case XorSimple:
		return repeatingKey(o.baseKey, n, epoch)

	case XorLayered:
		// N layers, one key derived per layer, folded together: XORing a
		// buffer with the fold is equivalent to applying each layer's XOR
		// in sequence, but in one pass.
		out := make([]byte, n)
		layers := 3
		if len(o.baseKey) < layers {
			layers = 1
		}
		for l := 0; l < layers; l++ {
			layerKey := repeatingKey(rotateBytes(o.baseKey, l+1), n, epoch)
			o.disp.XorInto(out, layerKey)
		}
		return out

	case XorPositionBased:
		out := make([]byte, n)
		base := o.baseKey
		for i := 0; i < n; i++ {
			out[i] = base[i%len(base)] ^ byte(i%256) ^ byte(epoch)
		}
		return out

	case XorCryptoSecure:
		return csprngStream(o.baseKey, context, epoch, n)

	case XorFecOptimized:
		// Designed so XOR(mask(a), mask(b)) == XOR(a, b): the keystream is
		// a pure function of position and epoch, independent of the
		// plaintext and of per-packet context, so masking distributes over
		// XOR and the FEC repair accumulator stays linear end to end.
		return repeatingKey(o.baseKey, n, epoch)

	case XorHeaderSpecific:
		h := fnv.New64a()
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], context)
		h.Write(b[:])
		h.Write(o.baseKey)
		seed := h.Sum64()
		return csprngStream(o.baseKey, seed, epoch, n)

	default:
		return repeatingKey(o.baseKey, n, epoch)
	}
}

func repeatingKey(base []byte, n int, epoch uint64) []byte {
	out := make([]byte, n)
	rot := rotateBytes(base, int(epoch%uint64(len(base)+1)))
	for i := range out {
		out[i] = rot[i%len(rot)]
	}
	return out
}

func rotateBytes(b []byte, n int) []byte {
	if len(b) == 0 {
		return b
	}
	n %= len(b)
	out := make([]byte, len(b))
	copy(out, b[n:])
	copy(out[len(b)-n:], b[:n])
	return out
}

// csprngStream derives a deterministic, reproducible "CSPRNG-like" keystream
// by hashing (key, context, epoch, counter) with SHA-256 and concatenating
// blocks — a counter-mode hash-DRBG construction, not a true CSPRNG, but
// sufficient here since the receiver must regenerate the exact same stream
// from the same context without any online negotiation.
func csprngStream(key []byte, context, epoch uint64, n int) []byte {
	out := make([]byte, 0, n)
	var counter uint64
	for len(out) < n {
		h := sha256.New()
		h.Write(key)
		var b [24]byte
		binary.LittleEndian.PutUint64(b[0:], context)
		binary.LittleEndian.PutUint64(b[8:], epoch)
		binary.LittleEndian.PutUint64(b[16:], counter)
		h.Write(b[:])
		out = append(out, h.Sum(nil)...)
		counter++
	}
	return out[:n]
}

// Obfuscate XORs buf in place against the keystream for context (e.g. a
// stream_id) and advances the operation counter that drives key rotation.
func (o *Obfuscator) Obfuscate(buf []byte, context uint64) {
	key := o.streamKey(len(buf), context)
	o.disp.XorInto(buf, key)
	o.opCount++
}

// Deobfuscate reverses Obfuscate. Since every pattern is a pure XOR stream,
// this is the identical operation: calling Obfuscate a second time with the
// same context and rotation epoch recovers the original bytes.
func (o *Obfuscator) Deobfuscate(buf []byte, context uint64) {
	key := o.streamKey(len(buf), context)
	o.disp.XorInto(buf, key)
	o.opCount++
}
