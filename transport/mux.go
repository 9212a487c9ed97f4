// Package transport wires the Adaptive FEC Engine and the Stealth Governor
// around a UDP net.PacketConn, implementing the encode_and_shield/
// unshield_and_decode transport boundary as session methods, and layering
// github.com/xtaci/smux stream multiplexing on top — the same architecture
// a KCP client/server pair builds around a KCP session, adapted to this
// repository's datagram-shielding core instead of KCP's ARQ.
package transport

import (
	"io"
	"net"
)

// Mux is the stream-multiplexing boundary a Session's shielded connection is
// handed to. smux.Session names these operations OpenStream/AcceptStream and
// does not satisfy Mux directly.
type Mux interface {
	Open() (io.ReadWriteCloser, error)
	Accept() (io.ReadWriteCloser, error)
	IsClosed() bool
	NumStreams() int
	RemoteAddr() net.Addr
	Close() error
}

// Stream is one multiplexed stream within a Mux. smux.Stream's ID returns
// uint32, so it does not satisfy Stream directly.
type Stream interface {
	io.ReadWriteCloser
	ID() int
	RemoteAddr() net.Addr
}
