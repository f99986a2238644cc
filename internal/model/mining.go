package model

import (
	"strings"
)

// Unknown is the sentinel for text fields the host could not report.
const Unknown = "Unknown"

// MiningConfig is what a caller asks the worker to mine with.
type MiningConfig struct {
	PoolURL       string `json:"pool_url" yaml:"pool_url" validate:"required"`
	WalletAddress string `json:"wallet_address" yaml:"wallet_address" validate:"required"`
	WorkerName    string `json:"worker_name" yaml:"worker_name"`
	Threads       int    `json:"threads" yaml:"threads" validate:"gt=0"`
	CoinType      string `json:"coin_type" yaml:"coin_type"`
	Algorithm     string `json:"algorithm" yaml:"algorithm" validate:"required"`
	DonateLevel   *int   `json:"donate_level,omitempty" yaml:"donate_level,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// ValidatedConfig is a MiningConfig accepted by Validate. The zero value is
// never valid, so the supervisor only launches what went through Validate.
type ValidatedConfig struct {
	cfg MiningConfig
}

// Config returns a copy of the normalized configuration.
func (v ValidatedConfig) Config() MiningConfig {
	c := v.cfg
	if c.DonateLevel != nil {
		d := *c.DonateLevel
		c.DonateLevel = &d
	}
	return c
}

// IsZero reports whether v was not produced by Validate.
func (v ValidatedConfig) IsZero() bool {
	return v.cfg.PoolURL == ""
}

// MiningStats is the telemetry snapshot. The zero value is the snapshot of a
// stopped supervisor.
type MiningStats struct {
	Hashrate       float64 `json:"hashrate"`
	Hashrate10s    float64 `json:"hashrate_10s"`
	Hashrate60s    float64 `json:"hashrate_60s"`
	Hashrate15m    float64 `json:"hashrate_15m"`
	SharesAccepted uint64  `json:"shares_accepted"`
	SharesRejected uint64  `json:"shares_rejected"`
	Difficulty     uint64  `json:"difficulty"`
	Uptime         uint64  `json:"uptime"`
}

// IsZero reports whether s is the default snapshot.
func (s MiningStats) IsZero() bool {
	return s == MiningStats{}
}

// SuccessRate returns accepted shares as a percentage of all submitted ones.
func (s MiningStats) SuccessRate() float64 {
	total := s.SharesAccepted + s.SharesRejected
	if total == 0 {
		return 0
	}
	return float64(s.SharesAccepted) / float64(total) * 100
}

// SystemInfo describes the host. Text fields hold Unknown and memory fields
// hold 0 when the host did not answer.
type SystemInfo struct {
	CPUName         string `json:"cpu_name"`
	CPUCores        uint32 `json:"cpu_cores"`
	CPUThreads      uint32 `json:"cpu_threads"`
	MemoryTotal     uint64 `json:"memory_total"`
	MemoryAvailable uint64 `json:"memory_available"`
	OSName          string `json:"os_name"`
	OSVersion       string `json:"os_version"`
	Arch            string `json:"arch"`
}

// Coin is a cryptocurrency the worker knows how to mine.
type Coin struct {
	Name        string
	DisplayName string
	Algorithm   string
	// Aliases are other algorithm identifiers the worker accepts for the coin.
	Aliases []string
}

var coins = []Coin{
	{Name: "monero", DisplayName: "Monero (XMR)", Algorithm: "rx/0", Aliases: []string{"rx", "randomx"}},
	{Name: "wownero", DisplayName: "Wownero (WOW)", Algorithm: "rx/wow", Aliases: []string{"randomwow"}},
	{Name: "dero", DisplayName: "Dero (DERO)", Algorithm: "astrobwt/v3"},
}

// Coins lists the known coins.
func Coins() []Coin {
	return append([]Coin(nil), coins...)
}

// LookupCoin finds a coin by its case-insensitive name.
func LookupCoin(name string) (Coin, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range coins {
		if c.Name == name {
			return c, true
		}
	}
	return Coin{}, false
}

// Accepts reports whether algo is an identifier the coin is mined with.
func (c Coin) Accepts(algo string) bool {
	algo = strings.ToLower(strings.TrimSpace(algo))
	if algo == c.Algorithm {
		return true
	}
	for _, a := range c.Aliases {
		if algo == a {
			return true
		}
	}
	return false
}
