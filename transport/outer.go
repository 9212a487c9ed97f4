package transport

import (
	"net"

	"github.com/quicveil/stealthcore/std"
)

// OuterPacketConn wraps a net.PacketConn with the legacy outer-datagram
// cipher (std.OuterCipher), applied below the Stealth Governor's shielding:
// WriteTo encrypts the already-shielded datagram before it hits the wire;
// ReadFrom decrypts before handing bytes to a Session.
type OuterPacketConn struct {
	net.PacketConn
	cipher std.OuterCipher
}

// NewOuterPacketConn wraps pc so every datagram crossing it is encrypted
// with cipher.
func NewOuterPacketConn(pc net.PacketConn, cipher std.OuterCipher) *OuterPacketConn {
	return &OuterPacketConn{PacketConn: pc, cipher: cipher}
}

func (c *OuterPacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	ct, err := c.cipher.Encrypt(b)
	if err != nil {
		return 0, err
	}
	if _, err := c.PacketConn.WriteTo(ct, addr); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *OuterPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	raw := make([]byte, len(b)*2) // headroom for outer-cipher IV/nonce overhead
	n, addr, err := c.PacketConn.ReadFrom(raw)
	if err != nil {
		return 0, addr, err
	}
	pt, err := c.cipher.Decrypt(raw[:n])
	if err != nil {
		return 0, addr, err
	}
	return copy(b, pt), addr, nil
}
