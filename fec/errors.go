package fec

import "errors"

// ErrStale is returned (and should be logged at debug, not surfaced as a
// hard error) when a Repair packet's entire seen set refers to sequence
// numbers older than the decoder's window front.
var ErrStale = errors.New("fec: stale packet")

// Unrecoverable is not a Go error in the idiomatic sense — add_packet simply
// returns an empty slice when no contiguous prefix is available yet. It is
// documented here so call sites can name the condition instead of comparing
// against nil/empty directly.
var ErrUnrecoverable = errors.New("fec: no contiguous prefix available yet")
