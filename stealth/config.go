package stealth

// Level is the StealthConfig entity's level tag.
type Level int

const (
	Minimal Level = iota
	Standard
	Enhanced
	Maximum
)

// SpinBitStrategy selects how the spin-bit randomizer treats the
// short-header spin bit.
type SpinBitStrategy int

const (
	SpinOff SpinBitStrategy = iota
	SpinRandom
	SpinTiming
)

// PathStrategy selects the path migration governor's behavior.
type PathStrategy int

const (
	PathNone PathStrategy = iota
	PathRandom
	PathLatencyOptimized
	PathLoadBalanced
)

// XorPattern selects one of the six XOR obfuscator keying schemes.
type XorPattern int

const (
	XorSimple XorPattern = iota
	XorLayered
	XorPositionBased
	XorCryptoSecure
	XorFecOptimized
	XorHeaderSpecific
)

// Config is the StealthConfig entity. Per-technique enable flags default to
// what Level implies (see policyFor) but may be overridden individually —
// overrides always win.
type Config struct {
	Level Level

	// SNI/ClientHello rewriter
	EnableDomainFronting bool
	EnableSNIPadding     bool
	EnableSNIOmission    bool
	EnableSNISplit       bool
	EnableECH            bool
	FrontDomain          string
	RealDomain           string
	ECHConfig            []byte // public-key config blob; ECH skipped when empty

	// HTTP/3 masquerade
	EnableHTTP3Masquerade bool
	Profile               *BrowserProfile

	// TLS feat: dress the ClientHello's cipher/extension ordering to match
	// the active BrowserProfile, independent of which SNI techniques run.
	EnableTLSFingerprint bool

	// DPI evasion
	EnableFragmentation   bool
	EnableTimingRandom    bool
	EnablePayloadRandom   bool
	EnablePayloadPadding  bool
	EnableHTTPMimicry     bool
	EnableProtocolObf     bool
	MinFragmentSize       int
	MaxFragmentSize       int
	MinDelayMillis        float64
	MaxDelayMillis        float64
	MinPaddingSize        int
	MaxPaddingSize        int

	// XOR obfuscator
	XorPattern     XorPattern
	XorKeyRotateN  uint64
	XorBaseKey     []byte

	// spin-bit randomizer
	SpinBit SpinBitStrategy

	// path migration governor
	PathStrategy          PathStrategy
	MinMigrationDelayMS    float64
	MaxMigrationDelayMS    float64
	PathValidationTimeout  float64 // milliseconds
	MaxValidationAttempts  int
}

// NewConfig builds a Config for the given level, applying the level policy
// table and the numeric defaults. Per-technique overrides are made by
// setting fields on the returned Config.
func NewConfig(level Level) Config {
	cfg := policyFor(level)
	cfg.Level = level
	cfg.FrontDomain = "www.cloudflare.com"
	cfg.MinFragmentSize = 64
	cfg.MaxFragmentSize = 1200
	cfg.MinDelayMillis = 0
	cfg.MaxDelayMillis = 15
	cfg.MinPaddingSize = 0
	cfg.MaxPaddingSize = 256
	cfg.XorPattern = XorFecOptimized
	cfg.XorKeyRotateN = 4096
	cfg.MinMigrationDelayMS = 5000
	cfg.MaxMigrationDelayMS = 60000
	cfg.PathValidationTimeout = 3000
	cfg.MaxValidationAttempts = 3
	cfg.Profile = DefaultProfile()
	return cfg
}

// policyFor implements the fixed per-level policy table exactly. Enhanced
// uses SpinTiming, Maximum uses SpinRandom, matching the table's
// "timing"/"random" entries. SNI split is "off" at every level in the
// table, including Maximum — it is only ever enabled via an explicit
// per-technique override after NewConfig returns.
func policyFor(level Level) Config {
	switch level {
	case Minimal:
		return Config{SpinBit: SpinOff}
	case Standard:
		return Config{
			EnablePayloadRandom:  true,
			EnablePayloadPadding: true,
			EnableTLSFingerprint: true,
			EnableSNIPadding:     true,
			SpinBit:              SpinRandom,
		}
	case Enhanced:
		// HTTP/3 masquerade is on whenever stealth is Enhanced or Maximum,
		// independent of the per-technique table below.
		return Config{
			EnableFragmentation:   true,
			EnableTimingRandom:    true,
			EnablePayloadRandom:   true,
			EnablePayloadPadding:  true,
			EnableTLSFingerprint:  true,
			EnableHTTP3Masquerade: true,
			EnableProtocolObf:     true,
			EnableDomainFronting:  true,
			EnableSNIPadding:      true,
			EnableECH:             true,
			SpinBit:               SpinTiming,
		}
	case Maximum:
		return Config{
			EnableFragmentation:   true,
			EnableTimingRandom:    true,
			EnablePayloadRandom:   true,
			EnablePayloadPadding:  true,
			EnableHTTPMimicry:     true,
			EnableTLSFingerprint:  true,
			EnableHTTP3Masquerade: true,
			EnableProtocolObf:     true,
			EnableDomainFronting:  true,
			EnableSNIPadding:      true,
			EnableECH:             true,
			SpinBit:               SpinRandom,
		}
	default:
		return Config{SpinBit: SpinOff}
	}
}
