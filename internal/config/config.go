// Package config defines TunnelConfig, the ambient configuration surface for
// cmd/client and cmd/server: CLI flags via github.com/urfave/cli, an
// optional JSON override file read with a parseJSONConfig-style
// pattern, and STEALTH_* environment variables layered on top.
package config

import (
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/quicveil/stealthcore/fec"
	"github.com/quicveil/stealthcore/stealth"
)

// TunnelConfig mirrors a typical KCP tunnel client/server Config struct,
// extended with the FEC and Stealth parameters this repository adds.
type TunnelConfig struct {
	Listen string `json:"listen"`
	Target string `json:"target"`
	Key    string `json:"key"`

	// Crypt selects the legacy outer-datagram cipher (std.SelectOuterCipher).
	Crypt string `json:"crypt"`

	MTU     int `json:"mtu"`
	SockBuf int `json:"sockbuf"`

	SmuxVer   int `json:"smuxver"`
	SmuxBuf   int `json:"smuxbuf"`
	StreamBuf int `json:"streambuf"`
	FrameSize int `json:"framesize"`
	KeepAlive int `json:"keepalive"`
	NoComp    bool `json:"nocomp"`

	QPP      bool `json:"qpp"`
	QPPCount int  `json:"qpp-count"`

	// FEC parameters (fec.Config).
	FecBlockSize         int     `json:"fec-blocksize"`
	FecWindowSize        int     `json:"fec-window"`
	FecInitialRedundancy float64 `json:"fec-redundancy-initial"`
	FecMinRedundancy     float64 `json:"fec-redundancy-min"`
	FecMaxRedundancy     float64 `json:"fec-redundancy-max"`
	FecAdaptive          bool    `json:"fec-adaptive"`

	// Stealth parameters, translated into a stealth.Config by StealthConfig.
	StealthLevel          string `json:"stealth-level"`
	StealthFrontDomain    string `json:"stealth-front-domain"`
	StealthRealDomain     string `json:"stealth-real-domain"`
	StealthBrowserProfile string `json:"stealth-browser-profile"`
	StealthECHConfigB64   string `json:"stealth-ech-config-base64"`

	Log        string `json:"log"`
	SnmpLog    string `json:"snmplog"`
	SnmpPeriod int    `json:"snmpperiod"`
	Quiet      bool   `json:"quiet"`
}

// Default returns a TunnelConfig with defaults in the same spirit as a
// classic KCP tunnel's datashard=10/parityshard=3 (translated here to a
// ~0.3 initial FEC redundancy) plus standard stealth defaults.
func Default() TunnelConfig {
	return TunnelConfig{
		Listen:    ":29900",
		MTU:       1350,
		SockBuf:   4194304,
		SmuxVer:   1,
		SmuxBuf:   4194304,
		StreamBuf: 2097152,
		FrameSize: 1024,
		KeepAlive: 10,
		Crypt:     "aes-128",

		FecBlockSize:         1400,
		FecWindowSize:        64,
		FecInitialRedundancy: 0.3,
		FecMinRedundancy:     0.1,
		FecMaxRedundancy:     0.5,
		FecAdaptive:          true,

		StealthLevel:       "standard",
		StealthFrontDomain: "www.cloudflare.com",

		SnmpPeriod: 60,
	}
}

// ParseJSONConfig overlays a JSON config file onto an existing TunnelConfig.
func ParseJSONConfig(cfg *TunnelConfig, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(cfg)
}

// ApplyEnv layers STEALTH_* environment variables on top of cfg. CLI flags
// and JSON file values set before calling this are overridden by any
// present env var, since env is the last-applied layer.
func (c *TunnelConfig) ApplyEnv() {
	if v := os.Getenv("STEALTH_LEVEL"); v != "" {
		c.StealthLevel = v
	}
	if v := os.Getenv("STEALTH_FRONT_DOMAIN"); v != "" {
		c.StealthFrontDomain = v
	}
	if v := os.Getenv("STEALTH_REAL_DOMAIN"); v != "" {
		c.StealthRealDomain = v
	}
	if v := os.Getenv("STEALTH_BROWSER_PROFILE"); v != "" {
		c.StealthBrowserProfile = v
	}
	if v := os.Getenv("STEALTH_ECH_CONFIG_BASE64"); v != "" {
		c.StealthECHConfigB64 = v
	}
}

// FecConfig translates the FEC-related fields into a fec.Config.
func (c *TunnelConfig) FecConfig() fec.Config {
	return fec.Config{
		BlockSize:         c.FecBlockSize,
		WindowSize:        c.FecWindowSize,
		InitialRedundancy: c.FecInitialRedundancy,
		MinRedundancy:     c.FecMinRedundancy,
		MaxRedundancy:     c.FecMaxRedundancy,
		Adaptive:          c.FecAdaptive,
	}
}

func levelFromString(s string) stealth.Level {
	switch s {
	case "minimal":
		return stealth.Minimal
	case "enhanced":
		return stealth.Enhanced
	case "maximum":
		return stealth.Maximum
	default:
		return stealth.Standard
	}
}

func browserTagFromString(s string) stealth.BrowserTag {
	switch s {
	case "chrome_macos":
		return stealth.ChromeMac
	case "chrome_linux":
		return stealth.ChromeLinux
	case "chrome_mobile":
		return stealth.ChromeMobile
	case "firefox_win10":
		return stealth.FirefoxWin
	case "firefox_macos":
		return stealth.FirefoxMac
	case "firefox_linux":
		return stealth.FirefoxLinux
	case "firefox_mobile":
		return stealth.FirefoxMobile
	case "safari_macos":
		return stealth.SafariMac
	case "safari_ios":
		return stealth.SafariIOS
	case "edge_win10":
		return stealth.EdgeWin
	default:
		return stealth.ChromeWin
	}
}

// StealthConfig translates the stealth-related fields into a stealth.Config,
// building on NewConfig's policy defaults for the selected level.
func (c *TunnelConfig) StealthConfig() stealth.Config {
	cfg := stealth.NewConfig(levelFromString(c.StealthLevel))
	if c.StealthFrontDomain != "" {
		cfg.FrontDomain = c.StealthFrontDomain
	}
	if c.StealthRealDomain != "" {
		cfg.RealDomain = c.StealthRealDomain
	}
	if c.StealthBrowserProfile != "" {
		cfg.Profile = stealth.ProfileFor(browserTagFromString(c.StealthBrowserProfile))
	}
	if c.StealthECHConfigB64 != "" {
		if decoded, err := base64.StdEncoding.DecodeString(c.StealthECHConfigB64); err == nil {
			cfg.ECHConfig = decoded
		}
	}
	return cfg
}
