package telemetry

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/iml1s/xmrigminer/internal/model"
)

var (
	// miner    speed 10s/60s/15m 316.3 335.9 n/a H/s max 348.0 H/s
	speedRe = regexp.MustCompile(`speed\s+10s/60s/15m\s+([\d.]+|n/a)\s+([\d.]+|n/a)\s+([\d.]+|n/a)\s+(H|kH|MH)/s`)
	// cpu      accepted (12/1) diff 75000 (45 ms)
	sharesRe = regexp.MustCompile(`\b(accepted|rejected)\s+\((\d+)/(\d+)\)\s+diff\s+\d+`)
	diffRe   = regexp.MustCompile(`diff\s+(\d+)`)
)

// LogSource derives statistics from the worker's console output. It is fed
// by the process runner and works without the HTTP API.
type LogSource struct {
	mu      sync.Mutex
	session string
	seen    bool
	stats   model.MiningStats
}

func NewLogSource() *LogSource {
	return &LogSource{}
}

// Observe parses one output line of the worker running in session.
func (l *LogSource) Observe(session, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if session != l.session {
		l.session = session
		l.seen = false
		l.stats = model.MiningStats{}
	}
	if l.parse(line) {
		l.seen = true
	}
}

func (l *LogSource) parse(line string) bool {
	if m := sharesRe.FindStringSubmatch(line); m != nil {
		ok := l.shares(m)
		if ok && m[1] == "accepted" {
			l.difficulty(line)
		}
		return ok
	}
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "speed"):
		m := speedRe.FindStringSubmatch(line)
		if m == nil {
			return false
		}
		unit := 1.0
		switch m[4] {
		case "kH":
			unit = 1e3
		case "MH":
			unit = 1e6
		}
		l.stats.Hashrate10s = hashrate(m[1]) * unit
		l.stats.Hashrate60s = hashrate(m[2]) * unit
		l.stats.Hashrate15m = hashrate(m[3]) * unit
		l.stats.Hashrate = current(l.stats)
		return true
	case strings.Contains(lower, "job") && strings.Contains(lower, "diff"):
		return l.difficulty(line)
	}
	return false
}

// shares reads the "(accepted/rejected)" totals xmrig prints on each result.
func (l *LogSource) shares(m []string) bool {
	a, errA := strconv.ParseUint(m[2], 10, 64)
	r, errR := strconv.ParseUint(m[3], 10, 64)
	if errA != nil || errR != nil {
		return false
	}
	l.stats.SharesAccepted = max(l.stats.SharesAccepted, a)
	l.stats.SharesRejected = max(l.stats.SharesRejected, r)
	return true
}

func (l *LogSource) difficulty(line string) bool {
	m := diffRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	d, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return false
	}
	l.stats.Difficulty = d
	return true
}

func hashrate(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return sanitize(f)
}

// Fetch returns what the output of s has shown so far.
func (l *LogSource) Fetch(_ context.Context, s Session) (model.MiningStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session != s.ID || !l.seen {
		return model.MiningStats{}, ErrUnavailable
	}
	return l.stats, nil
}
