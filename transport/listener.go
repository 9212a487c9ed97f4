package transport

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/quicveil/stealthcore/fec"
	"github.com/quicveil/stealthcore/stealth"
)

// Listener demultiplexes inbound datagrams on one net.PacketConn by remote
// address, handing each newly observed peer its own Session/ShieldedConn
// pair — the same per-remote dispatch role a KCP listener plays beneath
// smux.Server, generalized to this repository's FEC/stealth shielding
// instead of KCP's ARQ.
type Listener struct {
	pc         net.PacketConn
	fecCfg     fec.Config
	stealthCfg stealth.Config
	mtu        int

	mu    sync.Mutex
	peers map[string]chan []byte

	accept chan *ShieldedConn
	die    chan struct{}
}

// NewListener starts demultiplexing pc immediately; callers should wrap pc
// in an OuterPacketConn first if the legacy outer-datagram cipher is
// enabled.
func NewListener(pc net.PacketConn, fecCfg fec.Config, stealthCfg stealth.Config, mtu int) *Listener {
	l := &Listener{
		pc:         pc,
		fecCfg:     fecCfg,
		stealthCfg: stealthCfg,
		mtu:        mtu,
		peers:      make(map[string]chan []byte),
		accept:     make(chan *ShieldedConn, 16),
		die:        make(chan struct{}),
	}
	go l.readLoop()
	return l
}

func (l *Listener) readLoop() {
	defer close(l.accept)
	buf := make([]byte, l.mtu*2+256)
	for {
		n, addr, err := l.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		pkt := append([]byte(nil), buf[:n]...)

		l.mu.Lock()
		in, ok := l.peers[addr.String()]
		if !ok {
			in = make(chan []byte, 128)
			l.peers[addr.String()] = in
			l.mu.Unlock()

			vpc := &virtualPacketConn{real: l.pc, peer: addr, in: in, closed: make(chan struct{})}
			sess, err := NewSession(l.fecCfg, l.stealthCfg, 0)
			if err != nil {
				continue
			}
			conn := NewShieldedConn(vpc, addr, sess, l.mtu)
			select {
			case l.accept <- conn:
			case <-l.die:
				return
			}
		} else {
			l.mu.Unlock()
		}

		select {
		case in <- pkt:
		default: // peer's queue is full; drop, the FEC layer tolerates loss
		}
	}
}

// Accept blocks until a datagram arrives from a peer address not seen
// before, returning a ready net.Conn for that peer.
func (l *Listener) Accept() (*ShieldedConn, error) {
	conn, ok := <-l.accept
	if !ok {
		return nil, io.EOF
	}
	return conn, nil
}

func (l *Listener) Close() error {
	select {
	case <-l.die:
	default:
		close(l.die)
	}
	return l.pc.Close()
}

func (l *Listener) Addr() net.Addr { return l.pc.LocalAddr() }

// virtualPacketConn is a net.PacketConn backed by a channel Listener's single
// read loop feeds, writing through to the real socket at a fixed peer
// address. It lets one real UDP socket present a private per-peer
// net.PacketConn to each peer's ShieldedConn.
type virtualPacketConn struct {
	real net.PacketConn
	peer net.Addr
	in   chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func (v *virtualPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	select {
	case pkt, ok := <-v.in:
		if !ok {
			return 0, v.peer, io.EOF
		}
		return copy(b, pkt), v.peer, nil
	case <-v.closed:
		return 0, v.peer, io.EOF
	}
}

func (v *virtualPacketConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	return v.real.WriteTo(b, v.peer)
}

func (v *virtualPacketConn) Close() error {
	v.closeOnce.Do(func() { close(v.closed) })
	return nil
}

func (v *virtualPacketConn) LocalAddr() net.Addr { return v.real.LocalAddr() }
func (v *virtualPacketConn) SetDeadline(t time.Time) error      { return nil }
func (v *virtualPacketConn) SetReadDeadline(t time.Time) error  { return nil }
func (v *virtualPacketConn) SetWriteDeadline(t time.Time) error { return nil }
