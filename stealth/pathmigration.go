package stealth

import (
	"math/rand"
	"net"
	"time"
)

// QuicPath is one candidate network path for a connection, tracked by the
// migration governor.
type QuicPath struct {
	PathID     uint64
	Local      net.Addr
	Remote     net.Addr
	Validated  bool
	RTT        time.Duration
	Loss       float64
	Bandwidth  float64 // bytes/sec, advisory
	BytesSent  uint64
	BytesRecv  uint64
	LastUsed   time.Time

	validationAttempts int
	rttSamples         int // consecutive probes the latency threshold has held, for LatencyOptimized
}

// PathMigrationGovernor owns the set of QuicPath
// candidates for a connection and decides when, and to which path, to
// migrate. It never performs the PATH_CHALLENGE/PATH_RESPONSE round trip
// itself — that belongs to the transport; the governor only decides.
type PathMigrationGovernor struct {
	strategy              PathStrategy
	minDelay, maxDelay    time.Duration
	validationTimeout     time.Duration
	maxValidationAttempts int

	paths      []*QuicPath
	activeIdx  int
	nextMigrateAt time.Time

	rng *rand.Rand
}

func NewPathMigrationGovernor(cfg Config) *PathMigrationGovernor {
	g := &PathMigrationGovernor{
		strategy:              cfg.PathStrategy,
		minDelay:              time.Duration(cfg.MinMigrationDelayMS) * time.Millisecond,
		maxDelay:              time.Duration(cfg.MaxMigrationDelayMS) * time.Millisecond,
		validationTimeout:     time.Duration(cfg.PathValidationTimeout) * time.Millisecond,
		maxValidationAttempts: cfg.MaxValidationAttempts,
		activeIdx:             -1,
		rng:                   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	g.scheduleNextRandomMigration()
	return g
}

// AddPath registers a new candidate path; the first path added becomes
// active immediately.
func (g *PathMigrationGovernor) AddPath(p *QuicPath) {
	g.paths = append(g.paths, p)
	if g.activeIdx == -1 {
		g.activeIdx = len(g.paths) - 1
	}
}

// Active returns the currently active path, or nil if none registered.
func (g *PathMigrationGovernor) Active() *QuicPath {
	if g.activeIdx < 0 || g.activeIdx >= len(g.paths) {
		return nil
	}
	return g.paths[g.activeIdx]
}

func (g *PathMigrationGovernor) scheduleNextRandomMigration() {
	if g.maxDelay <= g.minDelay {
		g.nextMigrateAt = time.Now().Add(g.minDelay)
		return
	}
	span := g.maxDelay - g.minDelay
	d := g.minDelay + time.Duration(g.rng.Int63n(int64(span)))
	g.nextMigrateAt = time.Now().Add(d)
}

// ShouldMigrate reports whether, given the current time and path RTT
// observations, the governor wants to migrate off the active path, and to
// which candidate index.
func (g *PathMigrationGovernor) ShouldMigrate(now time.Time) (target int, ok bool) {
	active := g.Active()
	if active == nil || len(g.paths) < 2 {
		return 0, false
	}

	switch g.strategy {
	case PathNone:
		return 0, false

	case PathRandom:
		if now.Before(g.nextMigrateAt) {
			return 0, false
		}
		g.scheduleNextRandomMigration()
		return g.pickOtherValidated(), true

	case PathLatencyOptimized:
		best := g.bestAlternativeIdx()
		if best < 0 {
			return 0, false
		}
		if active.RTT > time.Duration(1.3*float64(g.paths[best].RTT)) {
			active.rttSamples++
		} else {
			active.rttSamples = 0
		}
		if active.rttSamples >= 3 {
			active.rttSamples = 0
			return best, true
		}
		return 0, false

	case PathLoadBalanced:
		return g.weightedRoundRobin(), true

	default:
		return 0, false
	}
}

// Migrate switches the active path to idx after validation. Callers should
// only invoke this once the transport has confirmed PATH_CHALLENGE/
// PATH_RESPONSE for that path.
func (g *PathMigrationGovernor) Migrate(idx int) {
	if idx < 0 || idx >= len(g.paths) {
		return
	}
	g.paths[idx].LastUsed = time.Now()
	g.activeIdx = idx
}

// RecordValidationAttempt tracks one PATH_CHALLENGE attempt for path idx.
// Once MaxValidationAttempts is exhausted without success, the path is
// marked permanently unusable by removing it from the candidate set.
func (g *PathMigrationGovernor) RecordValidationAttempt(idx int, success bool) {
	if idx < 0 || idx >= len(g.paths) {
		return
	}
	p := g.paths[idx]
	if success {
		p.Validated = true
		p.validationAttempts = 0
		return
	}
	p.validationAttempts++
	if p.validationAttempts >= g.maxValidationAttempts {
		g.removePath(idx)
	}
}

func (g *PathMigrationGovernor) removePath(idx int) {
	g.paths = append(g.paths[:idx], g.paths[idx+1:]...)
	if g.activeIdx == idx {
		g.activeIdx = -1
	} else if g.activeIdx > idx {
		g.activeIdx--
	}
}

func (g *PathMigrationGovernor) pickOtherValidated() int {
	candidates := g.validatedIndices(g.activeIdx)
	if len(candidates) == 0 {
		return g.activeIdx
	}
	return candidates[g.rng.Intn(len(candidates))]
}

func (g *PathMigrationGovernor) bestAlternativeIdx() int {
	best := -1
	for i, p := range g.paths {
		if i == g.activeIdx || !p.Validated {
			continue
		}
		if best == -1 || p.RTT < g.paths[best].RTT {
			best = i
		}
	}
	return best
}

// weightedRoundRobin picks among validated paths weighted by inverse RTT:
// paths with lower latency receive proportionally more traffic.
func (g *PathMigrationGovernor) weightedRoundRobin() int {
	type weighted struct {
		idx    int
		weight float64
	}
	var candidates []weighted
	for i, p := range g.paths {
		if !p.Validated {
			continue
		}
		w := 1.0
		if p.RTT > 0 {
			w = 1.0 / float64(p.RTT)
		}
		candidates = append(candidates, weighted{i, w})
	}
	if len(candidates) == 0 {
		return g.activeIdx
	}
	var total float64
	for _, c := range candidates {
		total += c.weight
	}
	r := g.rng.Float64() * total
	for _, c := range candidates {
		if r < c.weight {
			return c.idx
		}
		r -= c.weight
	}
	return candidates[len(candidates)-1].idx
}

func (g *PathMigrationGovernor) validatedIndices(exclude int) []int {
	var out []int
	for i, p := range g.paths {
		if i != exclude && p.Validated {
			out = append(out, i)
		}
	}
	return out
}
