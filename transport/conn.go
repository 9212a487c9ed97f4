package transport

import (
	"net"
	"time"
)

// ShieldedConn adapts one Session over a UDP net.PacketConn into a net.Conn,
// the same role a KCP session plays beneath smux: every Write
// pushes the payload through Session.EncodeAndShield and fires the resulting
// datagrams at remoteAddr; every Read pulls one UDP datagram and feeds it
// through Session.UnshieldAndDecode, buffering any leftover decoded bytes
// between calls.
type ShieldedConn struct {
	pc         net.PacketConn
	remoteAddr net.Addr
	session    *Session

	readBuf   []byte
	packetBuf []byte
}

// NewShieldedConn wraps pc for session, assuming every datagram is exchanged
// with remoteAddr (the client/dial side always knows its one remote; the
// accept side binds one ShieldedConn per resolved peer address).
func NewShieldedConn(pc net.PacketConn, remoteAddr net.Addr, session *Session, mtu int) *ShieldedConn {
	return &ShieldedConn{
		pc:         pc,
		remoteAddr: remoteAddr,
		session:    session,
		packetBuf:  make([]byte, mtu),
	}
}

func (c *ShieldedConn) Write(p []byte) (int, error) {
	for _, datagram := range c.session.EncodeAndShield(p) {
		if _, err := c.pc.WriteTo(datagram, c.remoteAddr); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (c *ShieldedConn) Read(p []byte) (int, error) {
	for len(c.readBuf) == 0 {
		n, _, err := c.pc.ReadFrom(c.packetBuf)
		if err != nil {
			return 0, err
		}
		decoded, err := c.session.UnshieldAndDecode(c.packetBuf[:n])
		if err != nil {
			// InvalidInput/AuthFailure/Stale are all locally recoverable:
			// drop and wait for the next datagram rather than surfacing.
			continue
		}
		c.readBuf = decoded
	}
	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

func (c *ShieldedConn) Close() error                       { return c.pc.Close() }
func (c *ShieldedConn) LocalAddr() net.Addr                { return c.pc.LocalAddr() }
func (c *ShieldedConn) RemoteAddr() net.Addr               { return c.remoteAddr }
func (c *ShieldedConn) SetDeadline(t time.Time) error      { return c.pc.SetDeadline(t) }
func (c *ShieldedConn) SetReadDeadline(t time.Time) error  { return c.pc.SetReadDeadline(t) }
func (c *ShieldedConn) SetWriteDeadline(t time.Time) error { return c.pc.SetWriteDeadline(t) }
