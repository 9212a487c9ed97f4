// Package simd detects CPU capabilities once per process and dispatches a
// small set of hot-path primitives (XOR, AES-128-GCM, GF(2^8) arithmetic) to
// the fastest backend available on the running host.
//
// Detection is grounded on github.com/klauspost/cpuid/v2, the same library
// github.com/klauspost/reedsolomon uses to decide between its AVX512/AVX2/
// SSSE3/NEON/scalar galois-field kernels (see reedsolomon's options.go).
package simd

import (
	"sync"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"
)

// Feature is a single detected or derived CPU capability bit.
type Feature uint64

const (
	SSE2 Feature = 1 << iota
	SSSE3
	SSE41
	SSE42
	AVX
	AVX2
	AVX512F
	AVX512BW
	AVX512DQ
	AVX512VL
	AVX512VBMI
	AESNI
	PCLMULQDQ
	NEON
	ASIMD
	SVE
	SVE2
	ARMCrypto
	CRC32
	DotProd

	// derived capabilities, computed from the bits above
	HWAES
	HWCRC32
	WideVectors
	FP16
)

var featureNames = map[Feature]string{
	SSE2: "SSE2", SSSE3: "SSSE3", SSE41: "SSE4.1", SSE42: "SSE4.2",
	AVX: "AVX", AVX2: "AVX2", AVX512F: "AVX512F", AVX512BW: "AVX512BW",
	AVX512DQ: "AVX512DQ", AVX512VL: "AVX512VL", AVX512VBMI: "AVX512VBMI",
	AESNI: "AES-NI", PCLMULQDQ: "PCLMULQDQ", NEON: "NEON", ASIMD: "ASIMD",
	SVE: "SVE", SVE2: "SVE2", ARMCrypto: "ARM-Crypto", CRC32: "CRC32",
	DotProd: "DotProd", HWAES: "HW_AES", HWCRC32: "HW_CRC32",
	WideVectors: "WIDE_VECTORS", FP16: "FP16",
}

// String renders the human-readable name of a single feature bit, or
// "unknown" if it is not a recognized bit. Composite masks are not rendered
// by String; use Names for that.
func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return "unknown"
}

// CpuFeatures is the immutable, process-wide snapshot of CPU capabilities.
// It is computed once by Detect and never mutated afterward.
type CpuFeatures struct {
	mask uint64
}

// Has reports whether every bit in want is present in the detected mask.
func (c CpuFeatures) Has(want Feature) bool {
	return c.mask&uint64(want) == uint64(want)
}

// Names lists the human-readable names of every detected bit, in declaration
// order, for observability/debugging.
func (c CpuFeatures) Names() []string {
	var names []string
	for bit := Feature(1); bit != 0 && bit <= DotProd; bit <<= 1 {
		if c.Has(bit) {
			names = append(names, bit.String())
		}
	}
	return names
}

var (
	detectOnce sync.Once
	detected   CpuFeatures
	detectedOK uint32 // 1 once detectOnce has run; acquire/release via atomic
)

// Detect returns the process-wide CpuFeatures, computing it on first call.
// Detection is idempotent and safe for concurrent use from multiple
// goroutines: sync.Once provides the acquire/release pairing so a goroutine
// observing detectedOK==1 always sees a fully initialized CpuFeatures.
func Detect() CpuFeatures {
	detectOnce.Do(func() {
		detected = detectLocked()
		atomic.StoreUint32(&detectedOK, 1)
	})
	return detected
}

// detectLocked reads cpuid.CPU (already a process-wide, OS-xsave-aware
// singleton maintained by klauspost/cpuid/v2) and derives our bitmap,
// enforcing the feature-dependency chain AVX512* => AVX2 => AVX => SSE4.2 =>
// SSE4.1 => SSSE3 => SSE2, and ARM SVE2 => SVE => ASIMD => NEON. cpuid/v2
// already masks features on OS support (it inspects XCR0 itself), so we only
// need to encode the logical prerequisite chain here.
func detectLocked() CpuFeatures {
	var m uint64
	set := func(f Feature) { m |= uint64(f) }

	has2 := cpuid.CPU.Supports(cpuid.SSE2)
	has3 := has2 && cpuid.CPU.Supports(cpuid.SSSE3)
	has41 := has3 && cpuid.CPU.Supports(cpuid.SSE4)
	has42 := has41 && cpuid.CPU.Supports(cpuid.SSE42)
	hasAVX := has42 && cpuid.CPU.Supports(cpuid.AVX)
	hasAVX2 := hasAVX && cpuid.CPU.Supports(cpuid.AVX2)
	hasAVX512F := hasAVX2 && cpuid.CPU.Supports(cpuid.AVX512F)
	hasAVX512BW := hasAVX512F && cpuid.CPU.Supports(cpuid.AVX512BW)
	hasAVX512DQ := hasAVX512F && cpuid.CPU.Supports(cpuid.AVX512DQ)
	hasAVX512VL := hasAVX512F && cpuid.CPU.Supports(cpuid.AVX512VL)
	hasAVX512VBMI := hasAVX512BW && cpuid.CPU.Supports(cpuid.AVX512VBMI)

	if has2 {
		set(SSE2)
	}
	if has3 {
		set(SSSE3)
	}
	if has41 {
		set(SSE41)
	}
	if has42 {
		set(SSE42)
	}
	if hasAVX {
		set(AVX)
	}
	if hasAVX2 {
		set(AVX2)
	}
	if hasAVX512F {
		set(AVX512F)
	}
	if hasAVX512BW {
		set(AVX512BW)
	}
	if hasAVX512DQ {
		set(AVX512DQ)
	}
	if hasAVX512VL {
		set(AVX512VL)
	}
	if hasAVX512VBMI {
		set(AVX512VBMI)
	}
	if cpuid.CPU.Supports(cpuid.AESNI) {
		set(AESNI)
	}
	if cpuid.CPU.Supports(cpuid.PCLMULQDQ) {
		set(PCLMULQDQ)
	}

	hasNEON := cpuid.CPU.Supports(cpuid.ASIMD)
	if hasNEON {
		set(NEON)
		set(ASIMD)
	}
	hasSVE := hasNEON && cpuid.CPU.Supports(cpuid.SVE)
	if hasSVE {
		set(SVE)
	}
	if hasSVE && cpuid.CPU.Supports(cpuid.SVE2) {
		set(SVE2)
	}
	if cpuid.CPU.Supports(cpuid.AESARM) {
		set(ARMCrypto)
	}
	if cpuid.CPU.Supports(cpuid.CRC32) {
		set(CRC32)
	}
	if cpuid.CPU.Supports(cpuid.ASIMDDP) {
		set(DotProd)
	}

	// derived capabilities
	if m&uint64(AESNI) != 0 || m&uint64(ARMCrypto) != 0 {
		set(HWAES)
	}
	if m&uint64(CRC32) != 0 {
		set(HWCRC32)
	}
	if m&uint64(AVX2) != 0 || m&uint64(ASIMD) != 0 {
		set(WideVectors)
	}
	if cpuid.CPU.Supports(cpuid.F16C) {
		set(FP16)
	}

	return CpuFeatures{mask: m}
}
