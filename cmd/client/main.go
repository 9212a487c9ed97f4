// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Command client dials a stealthcore server, shielding a UDP channel with
// the Adaptive FEC Engine and the Stealth Governor, and multiplexes local
// TCP connections over it with smux — in the style of a classic KCP tunnel
// client, replacing its KCP session with transport.ShieldedConn.
package main

import (
	"crypto/sha1"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"github.com/xtaci/qpp"
	"github.com/xtaci/smux"

	"github.com/quicveil/stealthcore/internal/config"
	"github.com/quicveil/stealthcore/internal/telemetry"
	"github.com/quicveil/stealthcore/std"
	"github.com/quicveil/stealthcore/stealth"
	"github.com/quicveil/stealthcore/transport"
)

// SALT is the pbkdf2 key-expansion salt; it is not a secret, only a domain
// separator.
const SALT = "stealthcore"

// VERSION is injected by build flags.
var VERSION = "SELFBUILD"

const (
	exitOK          = 0
	exitBadInput    = 64
	exitUnavailable = 69
	exitInternal    = 70
)

func main() {
	myApp := cli.NewApp()
	myApp.Name = "stealthcore-client"
	myApp.Usage = "stealth QUIC-shielded tunnel client (with smux)"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "localaddr,l", Value: ":12948", Usage: "local listen address"},
		cli.StringFlag{Name: "remoteaddr,r", Value: "vps:29900", Usage: `server address, eg "IP:29900" or "IP:minport-maxport" for multi-port`},
		cli.StringFlag{Name: "key", Value: "it's a secret", Usage: "pre-shared secret", EnvVar: "STEALTHCORE_KEY"},
		cli.StringFlag{Name: "crypt", Value: "aes-128", Usage: "legacy outer-datagram cipher: null, aes-128, aes-192, sm4, blowfish, twofish, cast5, 3des, tea, xtea, salsa20, none"},
		cli.StringFlag{Name: "stealth-level", Value: "standard", Usage: "minimal, standard, enhanced, maximum", EnvVar: "STEALTH_LEVEL"},
		cli.StringFlag{Name: "stealth-front-domain", Value: "www.cloudflare.com", EnvVar: "STEALTH_FRONT_DOMAIN"},
		cli.StringFlag{Name: "stealth-real-domain", EnvVar: "STEALTH_REAL_DOMAIN"},
		cli.StringFlag{Name: "stealth-browser-profile", Value: "chrome_win10", EnvVar: "STEALTH_BROWSER_PROFILE"},
		cli.StringFlag{Name: "stealth-ech-config-base64", EnvVar: "STEALTH_ECH_CONFIG_BASE64"},
		cli.BoolFlag{Name: "QPP", Usage: "enable Quantum Permutation Pads"},
		cli.IntFlag{Name: "QPPCount", Value: 61, Usage: "prime pad count for QPP"},
		cli.IntFlag{Name: "mtu", Value: 1350},
		cli.IntFlag{Name: "sockbuf", Value: 4194304},
		cli.IntFlag{Name: "smuxver", Value: 1},
		cli.IntFlag{Name: "smuxbuf", Value: 4194304},
		cli.IntFlag{Name: "streambuf", Value: 2097152},
		cli.IntFlag{Name: "framesize", Value: 1024},
		cli.IntFlag{Name: "keepalive", Value: 10},
		cli.BoolFlag{Name: "nocomp"},
		cli.Float64Flag{Name: "fec-redundancy-initial", Value: 0.3},
		cli.Float64Flag{Name: "fec-redundancy-min", Value: 0.1},
		cli.Float64Flag{Name: "fec-redundancy-max", Value: 0.5},
		cli.IntFlag{Name: "fec-blocksize", Value: 1400},
		cli.IntFlag{Name: "fec-window", Value: 64},
		cli.StringFlag{Name: "c", Usage: "JSON config file, overrides flags"},
		cli.StringFlag{Name: "snmplog"},
		cli.IntFlag{Name: "snmpperiod", Value: 60},
		cli.BoolFlag{Name: "quiet"},
	}
	myApp.Action = run
	if err := myApp.Run(os.Args); err != nil {
		log.Printf("%+v", err)
		os.Exit(exitInternal)
	}
}

func run(c *cli.Context) error {
	cfg := config.Default()
	cfg.Listen = c.String("localaddr")
	cfg.Target = c.String("remoteaddr")
	cfg.Key = c.String("key")
	cfg.Crypt = c.String("crypt")
	cfg.StealthLevel = c.String("stealth-level")
	cfg.StealthFrontDomain = c.String("stealth-front-domain")
	cfg.StealthRealDomain = c.String("stealth-real-domain")
	cfg.StealthBrowserProfile = c.String("stealth-browser-profile")
	cfg.StealthECHConfigB64 = c.String("stealth-ech-config-base64")
	cfg.QPP = c.Bool("QPP")
	cfg.QPPCount = c.Int("QPPCount")
	cfg.MTU = c.Int("mtu")
	cfg.SockBuf = c.Int("sockbuf")
	cfg.SmuxVer = c.Int("smuxver")
	cfg.SmuxBuf = c.Int("smuxbuf")
	cfg.StreamBuf = c.Int("streambuf")
	cfg.FrameSize = c.Int("framesize")
	cfg.KeepAlive = c.Int("keepalive")
	cfg.NoComp = c.Bool("nocomp")
	cfg.FecInitialRedundancy = c.Float64("fec-redundancy-initial")
	cfg.FecMinRedundancy = c.Float64("fec-redundancy-min")
	cfg.FecMaxRedundancy = c.Float64("fec-redundancy-max")
	cfg.FecBlockSize = c.Int("fec-blocksize")
	cfg.FecWindowSize = c.Int("fec-window")
	cfg.SnmpLog = c.String("snmplog")
	cfg.SnmpPeriod = c.Int("snmpperiod")
	cfg.Quiet = c.Bool("quiet")

	if path := c.String("c"); path != "" {
		if err := config.ParseJSONConfig(&cfg, path); err != nil {
			log.Printf("%+v", err)
			os.Exit(exitBadInput)
		}
	}
	cfg.ApplyEnv()

	if cfg.QPP {
		warnings, err := std.ValidateQPPParams(cfg.QPPCount, cfg.Key)
		if err != nil {
			log.Printf("%+v", err)
			os.Exit(exitBadInput)
		}
		for _, w := range warnings {
			log.Println(w)
		}
	}

	mp, err := std.ParseMultiPort(cfg.Target)
	if err != nil {
		log.Printf("%+v", err)
		os.Exit(exitBadInput)
	}

	pass := pbkdf2.Key([]byte(cfg.Key), []byte(SALT), 4096, 32, sha1.New)
	outerCipher, effectiveCrypt := std.SelectOuterCipher(cfg.Crypt, pass)
	if !cfg.Quiet {
		log.Println("version:", VERSION)
		log.Println("effective crypt:", effectiveCrypt)
		log.Println("stealth level:", cfg.StealthLevel)
	}
	go telemetry.SnmpLogger(cfg.SnmpLog, cfg.SnmpPeriod)

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.Printf("%+v", err)
		os.Exit(exitBadInput)
	}
	defer lis.Close()
	if !cfg.Quiet {
		log.Println("listening on:", lis.Addr())
	}

	var qppPad *qpp.QuantumPermutationPad
	if cfg.QPP {
		qppPad = qpp.NewQPP([]byte(cfg.Key), uint16(cfg.QPPCount))
	}

	session, err := dialSession(cfg, mp, outerCipher)
	if err != nil {
		log.Printf("%+v", err)
		os.Exit(exitUnavailable)
	}

	for {
		p1, err := lis.Accept()
		if err != nil {
			return errors.WithStack(err)
		}
		go handleClient(session, qppPad, pass, p1, cfg)
	}
}

// dialSession dials the first port (MinPort) of the multi-port range and
// builds the smux session over a transport.ShieldedConn, registering one
// stealth.QuicPath per resolved address for path migration.
func dialSession(cfg config.TunnelConfig, mp *std.MultiPort, outerCipher std.OuterCipher) (*smux.Session, error) {
	addr := fmt.Sprintf("%v:%v", mp.Host, mp.MinPort)
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	udpConn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var pc net.PacketConn = udpConn
	if outerCipher != nil {
		pc = transport.NewOuterPacketConn(udpConn, outerCipher)
	}

	sess, err := transport.NewSession(cfg.FecConfig(), cfg.StealthConfig(), 0)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	for port := mp.MinPort; port <= mp.MaxPort; port++ {
		a, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%v:%v", mp.Host, port))
		if err != nil {
			continue
		}
		sess.Governor().Paths().AddPath(&stealth.QuicPath{
			PathID:    port,
			Local:     pc.LocalAddr(),
			Remote:    a,
			Validated: port == mp.MinPort,
			LastUsed:  now,
		})
	}

	conn := transport.NewShieldedConn(pc, raddr, sess, cfg.MTU)

	smuxConfig, err := std.BuildSmuxConfig(std.SmuxConfigParams{
		Version:          cfg.SmuxVer,
		MaxReceiveBuffer: cfg.SmuxBuf,
		MaxStreamBuffer:  cfg.StreamBuf,
		MaxFrameSize:     cfg.FrameSize,
		KeepAliveSeconds: cfg.KeepAlive,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var muxSession *smux.Session
	if cfg.NoComp {
		muxSession, err = smux.Client(conn, smuxConfig)
	} else {
		muxSession, err = smux.Client(std.NewCompStream(conn), smuxConfig)
	}
	return muxSession, errors.WithStack(err)
}

func handleClient(session *smux.Session, qppPad *qpp.QuantumPermutationPad, seed []byte, p1 net.Conn, cfg config.TunnelConfig) {
	defer p1.Close()
	p2, err := session.OpenStream()
	if err != nil {
		log.Println(err)
		return
	}
	defer p2.Close()

	var s2 io.ReadWriteCloser = p2
	if qppPad != nil {
		s2 = std.NewQPPPort(p2, qppPad, seed)
	}

	errA, errB := std.Pipe(p1, s2)
	if errA != nil && !cfg.Quiet {
		log.Println("pipe client->server:", errA)
	}
	if errB != nil && !cfg.Quiet {
		log.Println("pipe server->client:", errB)
	}
}
