package simd

import "sync"

// Primitive names a dispatchable operation for observability purposes.
type Primitive int

const (
	PrimitiveXOR Primitive = iota
	PrimitiveAEADEncrypt
	PrimitiveAEADDecrypt
	PrimitiveGF256MulVec
	PrimitiveGF256ScalarVec
	PrimitiveGF256AddVec
)

func (p Primitive) String() string {
	switch p {
	case PrimitiveXOR:
		return "xor_into"
	case PrimitiveAEADEncrypt:
		return "aes128_gcm_encrypt"
	case PrimitiveAEADDecrypt:
		return "aes128_gcm_decrypt"
	case PrimitiveGF256MulVec:
		return "gf256_mul_vec"
	case PrimitiveGF256ScalarVec:
		return "gf256_mul_scalar_vec"
	case PrimitiveGF256AddVec:
		return "gf256_add_vec"
	default:
		return "unknown"
	}
}

// Dispatcher captures the CPU features detected once at process start and
// exposes the crypto/erasure-coding primitive set routed through them. A
// Dispatcher is cheap to copy (it only holds a CpuFeatures snapshot) and is
// intended to be captured once per session rather than re-resolved on every
// call — no dynamic dispatch in hot loops.
type Dispatcher struct {
	features CpuFeatures
}

var (
	defaultOnce       sync.Once
	defaultDispatcher Dispatcher
)

// Default returns the process-wide Dispatcher built from Detect().
func Default() *Dispatcher {
	defaultOnce.Do(func() {
		defaultDispatcher = Dispatcher{features: Detect()}
	})
	return &defaultDispatcher
}

// NewDispatcher builds a Dispatcher from an explicit CpuFeatures snapshot,
// primarily useful for tests that want to force a particular backend
// selection (e.g. simulate a host with no AES-NI).
func NewDispatcher(f CpuFeatures) *Dispatcher {
	return &Dispatcher{features: f}
}

// Features returns the CpuFeatures this dispatcher was built from.
func (d *Dispatcher) Features() CpuFeatures {
	return d.features
}

// BestBackendFor reports which feature the dispatcher would select for a
// given primitive, for logging/observability. It does not allocate and does
// not perform the operation.
func (d *Dispatcher) BestBackendFor(p Primitive) Feature {
	switch p {
	case PrimitiveXOR:
		switch {
		case d.features.Has(AVX512F) && d.features.Has(AVX512BW):
			return AVX512F
		case d.features.Has(AVX2):
			return AVX2
		case d.features.Has(SSE2):
			return SSE2
		case d.features.Has(NEON):
			return NEON
		default:
			return 0
		}
	case PrimitiveAEADEncrypt, PrimitiveAEADDecrypt:
		switch {
		case d.features.Has(AESNI) && d.features.Has(PCLMULQDQ):
			return AESNI
		case d.features.Has(ARMCrypto):
			return ARMCrypto
		default:
			return 0
		}
	case PrimitiveGF256MulVec, PrimitiveGF256ScalarVec:
		switch {
		case d.features.Has(AVX2):
			return AVX2
		case d.features.Has(SSSE3):
			return SSSE3
		case d.features.Has(NEON):
			return NEON
		default:
			return 0
		}
	case PrimitiveGF256AddVec:
		return d.BestBackendFor(PrimitiveXOR)
	default:
		return 0
	}
}
