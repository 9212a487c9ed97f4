// Package telemetry provides the process-wide counters instance and its
// periodic CSV flush, following the SnmpLogger ticker/date-rotation pattern
// common to KCP tunnels but reporting on this library's own
// FEC/stealth/AEAD counters instead of a KCP ARQ's Snmp struct.
package telemetry

import "sync/atomic"

// Counters holds per-process counters, safe for concurrent atomic updates,
// monotonically increasing for the lifetime of the process.
type Counters struct {
	FecPacketsEncoded  uint64
	FecPacketsRecovered uint64
	FecPacketsStale    uint64
	FecErrors          uint64

	StealthSNIRewrites     uint64
	StealthFragmentations  uint64
	StealthPaddingsApplied uint64
	StealthSpinBitFlips    uint64
	StealthHTTP3Decoys     uint64

	AEADAuthFailures uint64

	PathMigrations        uint64
	PathValidationFailures uint64
}

// Default is the one process-wide instance every session reports into.
var Default = &Counters{}

func (c *Counters) AddFecEncoded(n uint64)        { atomic.AddUint64(&c.FecPacketsEncoded, n) }
func (c *Counters) AddFecRecovered(n uint64)      { atomic.AddUint64(&c.FecPacketsRecovered, n) }
func (c *Counters) AddFecStale(n uint64)          { atomic.AddUint64(&c.FecPacketsStale, n) }
func (c *Counters) AddFecErrors(n uint64)         { atomic.AddUint64(&c.FecErrors, n) }
func (c *Counters) AddSNIRewrite()                { atomic.AddUint64(&c.StealthSNIRewrites, 1) }
func (c *Counters) AddFragmentation()             { atomic.AddUint64(&c.StealthFragmentations, 1) }
func (c *Counters) AddPadding()                   { atomic.AddUint64(&c.StealthPaddingsApplied, 1) }
func (c *Counters) AddSpinBitFlip()               { atomic.AddUint64(&c.StealthSpinBitFlips, 1) }
func (c *Counters) AddHTTP3Decoy()                { atomic.AddUint64(&c.StealthHTTP3Decoys, 1) }
func (c *Counters) AddAEADAuthFailure()           { atomic.AddUint64(&c.AEADAuthFailures, 1) }
func (c *Counters) AddPathMigration()             { atomic.AddUint64(&c.PathMigrations, 1) }
func (c *Counters) AddPathValidationFailure()     { atomic.AddUint64(&c.PathValidationFailures, 1) }

// Header names the CSV columns, in the same order Snapshot emits them.
func (c *Counters) Header() []string {
	return []string{
		"FecPacketsEncoded", "FecPacketsRecovered", "FecPacketsStale", "FecErrors",
		"StealthSNIRewrites", "StealthFragmentations", "StealthPaddingsApplied",
		"StealthSpinBitFlips", "StealthHTTP3Decoys",
		"AEADAuthFailures",
		"PathMigrations", "PathValidationFailures",
	}
}

// Snapshot reads every counter as a single consistent-enough CSV row. Reads
// are individually atomic; the row as a whole is not a single atomic
// snapshot.
func (c *Counters) Snapshot() []string {
	fmtU := func(p *uint64) string { return uitoa(atomic.LoadUint64(p)) }
	return []string{
		fmtU(&c.FecPacketsEncoded), fmtU(&c.FecPacketsRecovered), fmtU(&c.FecPacketsStale), fmtU(&c.FecErrors),
		fmtU(&c.StealthSNIRewrites), fmtU(&c.StealthFragmentations), fmtU(&c.StealthPaddingsApplied),
		fmtU(&c.StealthSpinBitFlips), fmtU(&c.StealthHTTP3Decoys),
		fmtU(&c.AEADAuthFailures),
		fmtU(&c.PathMigrations), fmtU(&c.PathValidationFailures),
	}
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
