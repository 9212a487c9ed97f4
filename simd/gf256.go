package simd

import "github.com/klauspost/reedsolomon"

// GF(2^8) arithmetic here is the Rijndael field, polynomial
// x^8+x^4+x^3+x^2+1 (0x1D) — the same field github.com/klauspost/reedsolomon
// uses for its erasure codes. Rather than re-derive exp/log/4-bit-split
// tables by hand, we dispatch to reedsolomon's exported low-level galois
// primitives (reedsolomon.LowLevel), which already pick the best of
// AVX512/AVX2/SSSE3/NEON/scalar for the running CPU the same way our own
// Dispatcher would for XOR. This keeps exactly one GF(2^8) table/kernel set
// in the binary instead of two subtly-incompatible ones.
var lowLevel reedsolomon.LowLevel

// GF256MulScalarVec computes out[i] = a[i]*k in GF(2^8) for all i.
// Multiply-by-zero short-circuits to a memset-zero and multiply-by-one to a
// memcpy; reedsolomon.LowLevel.GalMulSlice already implements the
// multiply-by-one shortcut, so we only add the multiply-by-zero one.
func (d *Dispatcher) GF256MulScalarVec(a []byte, k byte, out []byte) {
	n := len(a)
	if len(out) < n {
		n = len(out)
	}
	if k == 0 {
		clear(out[:n])
		return
	}
	lowLevel.GalMulSlice(k, a[:n], out[:n])
}

// GF256MulScalarVecXor computes out[i] ^= a[i]*k, the accumulating form for
// repair combines with a coefficient other than 1. The fec package's
// pure-XOR Tetrys mode does not call it; it combines payloads with XorInto.
func (d *Dispatcher) GF256MulScalarVecXor(a []byte, k byte, out []byte) {
	n := len(a)
	if len(out) < n {
		n = len(out)
	}
	if k == 0 {
		return
	}
	lowLevel.GalMulSliceXor(k, a[:n], out[:n])
}

// GF256MulVec computes out[i] = a[i]*b[i] elementwise. There is no SIMD
// elementwise-vector*vector galois kernel exposed by reedsolomon (it only
// exposes vector*scalar), so the elementwise form makes one single-byte
// GalMulSlice call per element, with b[i]==0 and b[i]==1 handled inline.
// Runs of repeated coefficients are not batched into one call.
func (d *Dispatcher) GF256MulVec(a, b []byte, out []byte) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if len(out) < n {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		if b[i] == 0 {
			out[i] = 0
			continue
		}
		if b[i] == 1 {
			out[i] = a[i]
			continue
		}
		tmp := [1]byte{a[i]}
		res := [1]byte{}
		lowLevel.GalMulSlice(b[i], tmp[:], res[:])
		out[i] = res[0]
	}
}

// GF256AddVec computes out[i] = a[i] ^ b[i], the GF(2^8) additive identity
// operation — an alias of XorBytes with a distinct name for call sites that
// are reasoning in field-arithmetic terms rather than raw XOR terms.
func (d *Dispatcher) GF256AddVec(a, b, out []byte) int {
	return d.XorBytes(out, a, b)
}

// GF256Inv returns the multiplicative inverse of e in GF(2^8) (0 maps to 0),
// delegating to reedsolomon's precomputed inverse table.
func GF256Inv(e byte) byte {
	return reedsolomon.Inv(e)
}
