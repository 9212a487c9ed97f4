package stealth

// BrowserTag enumerates the BrowserProfile entity's tag.
type BrowserTag int

const (
	ChromeWin BrowserTag = iota
	ChromeMac
	ChromeLinux
	ChromeMobile
	FirefoxWin
	FirefoxMac
	FirefoxLinux
	FirefoxMobile
	SafariMac
	SafariIOS
	EdgeWin
)

// BrowserProfile is process-wide read-only fingerprint data: cipher suite
// order, extension order, supported groups, signature algorithms, ALPN, and
// H2/H3 settings a real browser of this tag would present. It is referenced,
// never copied, by StealthConfig.
type BrowserProfile struct {
	Tag         BrowserTag
	Version     string
	CipherSuites    []uint16
	ExtensionOrder  []uint16
	SupportedGroups []uint16
	SignatureAlgs   []uint16
	ALPN            []string
	UserAgent       string
	AcceptLanguage  string
	H3Settings      map[uint64]uint64
}

// profiles is the process-wide read-only table, built once at package init —
// the same "computed once, immutable after" discipline as CpuFeatures,
// applied here to fingerprint data.
var profiles = map[BrowserTag]*BrowserProfile{
	ChromeWin: {
		Tag:     ChromeWin,
		Version: "124.0.0.0",
		CipherSuites: []uint16{
			0x1301, 0x1302, 0x1303, // TLS 1.3 AES128/256-GCM, CHACHA20
			0xc02b, 0xc02f, 0xc02c, 0xc030, 0xcca9, 0xcca8,
			0xc013, 0xc014, 0x009c, 0x009d, 0x002f, 0x0035,
		},
		ExtensionOrder: []uint16{
			0x0000, 0x0017, 0xff01, 0x000a, 0x000b, 0x0023,
			0x0010, 0x0005, 0x000d, 0x0012, 0x0033, 0x002d,
			0x002b, 0x001b, 0x0015,
		},
		SupportedGroups: []uint16{0x001d, 0x0017, 0x0018},
		SignatureAlgs:   []uint16{0x0403, 0x0804, 0x0401, 0x0503, 0x0805, 0x0501},
		ALPN:            []string{"h2", "http/1.1"},
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		AcceptLanguage:  "en-US,en;q=0.9",
		H3Settings:      map[uint64]uint64{0x1: 4096, 0x7: 100, 0x8: 0},
	},
	ChromeMac: {
		Tag:     ChromeMac,
		Version: "124.0.0.0",
		CipherSuites: []uint16{
			0x1301, 0x1302, 0x1303,
			0xc02b, 0xc02f, 0xc02c, 0xc030, 0xcca9, 0xcca8,
			0xc013, 0xc014, 0x009c, 0x009d, 0x002f, 0x0035,
		},
		ExtensionOrder: []uint16{
			0x0000, 0x0017, 0xff01, 0x000a, 0x000b, 0x0023,
			0x0010, 0x0005, 0x000d, 0x0012, 0x0033, 0x002d,
			0x002b, 0x001b, 0x0015,
		},
		SupportedGroups: []uint16{0x001d, 0x0017, 0x0018},
		SignatureAlgs:   []uint16{0x0403, 0x0804, 0x0401, 0x0503, 0x0805, 0x0501},
		ALPN:            []string{"h2", "http/1.1"},
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		AcceptLanguage:  "en-US,en;q=0.9",
		H3Settings:      map[uint64]uint64{0x1: 4096, 0x7: 100, 0x8: 0},
	},
	FirefoxWin: {
		Tag:     FirefoxWin,
		Version: "125.0",
		CipherSuites: []uint16{
			0x1301, 0x1302, 0x1303,
			0xc02b, 0xc02f, 0xc02c, 0xc030, 0xcca9, 0xcca8,
			0xc013, 0xc014, 0x009c, 0x009d, 0x002f, 0x0035,
		},
		ExtensionOrder: []uint16{
			0x0000, 0x0017, 0xff01, 0x000a, 0x000b, 0x0023,
			0x0010, 0x0016, 0x0005, 0x000d, 0x002b, 0x002d,
			0x0033,
		},
		SupportedGroups: []uint16{0x001d, 0x0017, 0x0018, 0x0019},
		SignatureAlgs:   []uint16{0x0403, 0x0503, 0x0603, 0x0804, 0x0805, 0x0806, 0x0401, 0x0501, 0x0601},
		ALPN:            []string{"h2", "http/1.1"},
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		AcceptLanguage:  "en-US,en;q=0.5",
		H3Settings:      map[uint64]uint64{0x1: 65536, 0x7: 128, 0x8: 0},
	},
	SafariMac: {
		Tag:     SafariMac,
		Version: "17.4",
		CipherSuites: []uint16{
			0x1301, 0x1302, 0x1303,
			0xc02c, 0xc02b, 0xc030, 0xc02f, 0xcca9, 0xcca8,
			0xc00a, 0xc009, 0xc014, 0xc013, 0x009d, 0x009c,
		},
		ExtensionOrder: []uint16{
			0x0000, 0x0017, 0xff01, 0x000a, 0x000b, 0x0010,
			0x0005, 0x000d, 0x0033, 0x002b, 0x002d, 0x001b,
		},
		SupportedGroups: []uint16{0x001d, 0x0017, 0x0018},
		SignatureAlgs:   []uint16{0x0403, 0x0503, 0x0603, 0x0804, 0x0805, 0x0806, 0x0401, 0x0501, 0x0601},
		ALPN:            []string{"h2", "http/1.1"},
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		AcceptLanguage:  "en-US,en;q=0.9",
		H3Settings:      map[uint64]uint64{0x1: 4096, 0x7: 100},
	},
}

// DefaultProfile returns ChromeWin, the most common fingerprint on the open
// internet and hence the least suspicious default.
func DefaultProfile() *BrowserProfile { return profiles[ChromeWin] }

// ProfileFor looks up a process-wide profile by tag. Returns DefaultProfile
// for an unrecognized tag rather than nil, since every call site treats the
// profile as non-optional.
func ProfileFor(tag BrowserTag) *BrowserProfile {
	if p, ok := profiles[tag]; ok {
		return p
	}
	return DefaultProfile()
}
