package fec

// NetworkMetrics is the feedback the enclosing transport reports back to an
// adaptive Encoder after observing loss/RTT/jitter/bandwidth on the wire.
type NetworkMetrics struct {
	PacketLossRate float64 // in [0,1]
	RTTMillis      float64
	JitterMillis   float64
	BandwidthEst   float64 // bytes/sec, advisory
	IsMobile       bool
}
