// Package fec implements an adaptive, sliding-window, Tetrys-style forward
// error correction engine: source packets are pushed in, source and repair
// packets come out; on the receive side, any subset of those packets lets
// the decoder reconstruct missing source payloads.
//
// The implementation mirrors the encoder/decoder split of
// github.com/xtaci/kcp-go/v5's fec.go (dedup of already-known packets,
// monotonic sequence numbers; payloads are plain allocations, not pooled,
// and sequence-number wraparound is not handled) but replaces kcp-go's fixed-shard Reed-Solomon scheme with the XOR-only,
// variable-window Tetrys scheme this specification calls for: repair packets
// accumulate a running XOR of an open-ended "seen" set rather than a fixed
// (dataShards, parityShards) block.
package fec

import "errors"

// ErrInvalidConfig is returned by Config.Validate (and so by NewEncoder and
// NewDecoder) when the supplied values violate the FecConfig invariants.
var ErrInvalidConfig = errors.New("fec: invalid config")

// Config mirrors the FecConfig entity of the data model: block size, window
// size, and the redundancy band an adaptive encoder is allowed to roam in.
type Config struct {
	BlockSize      int     // padded length of every Source packet's payload
	WindowSize     int     // max number of recent Source packets retained
	InitialRedundancy float64
	MinRedundancy  float64
	MaxRedundancy  float64
	Adaptive       bool
}

// DefaultConfig mirrors a classic KCP tunnel's CLI defaults in spirit
// (datashard=10, parityshard=3, i.e. ~30% redundancy) translated into
// Tetrys terms.
func DefaultConfig() Config {
	return Config{
		BlockSize:         1400,
		WindowSize:        64,
		InitialRedundancy: 0.3,
		MinRedundancy:     0.1,
		MaxRedundancy:     0.5,
		Adaptive:          true,
	}
}

// Validate checks the FecConfig invariants: min <= initial <= max, all in
// [0,1], window_size >= 1, block_size > 0.
func (c Config) Validate() error {
	if c.BlockSize <= 0 {
		return ErrInvalidConfig
	}
	if c.WindowSize < 1 {
		return ErrInvalidConfig
	}
	if c.MinRedundancy < 0 || c.MaxRedundancy > 1 || c.MinRedundancy > c.MaxRedundancy {
		return ErrInvalidConfig
	}
	if c.InitialRedundancy < c.MinRedundancy || c.InitialRedundancy > c.MaxRedundancy {
		return ErrInvalidConfig
	}
	return nil
}
