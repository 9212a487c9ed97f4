package simd

import "github.com/templexxx/xorsimd"

// XorInto computes dst ^= src over the first min(len(dst), len(src)) bytes,
// in place, using the best backend xorsimd selects for the running CPU
// (AVX512/AVX2/SSE2 on amd64, generic elsewhere). xorsimd performs its own
// CPU-feature detection (via github.com/templexxx/cpu) independently of our
// Dispatcher; we call through it rather than reimplement SIMD kernels, since
// the whole point of this package is routing to existing vetted backends,
// not re-deriving assembly.
//
// len(dst) must be >= len(src); callers (the FEC engine's running repair
// buffer, the Stealth Governor's XOR obfuscator) always grow dst first.
func (d *Dispatcher) XorInto(dst, src []byte) {
	if len(src) == 0 {
		return
	}
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	xorsimd.Bytes(dst[:n], dst[:n], src[:n])
}

// XorBytes writes dst[i] = a[i] ^ b[i] for i in [0, min(len(a),len(b))), the
// "add" form of GF(2^8) used by gf256_add_vec — an alias of xor_into with a
// separate output buffer.
func (d *Dispatcher) XorBytes(dst, a, b []byte) int {
	return xorsimd.Bytes(dst, a, b)
}
