package telemetry

import (
	"math"

	"github.com/iml1s/xmrigminer/internal/model"
)

// Summary is the subset of XMRig's GET /2/summary the collector reads.
type Summary struct {
	ID       string `json:"id"`
	WorkerID string `json:"worker_id"`
	Uptime   uint64 `json:"uptime"`
	Algo     string `json:"algo"`
	Hashrate struct {
		// 10s, 60s, 15m; null while a window is not filled yet
		Total   []*float64 `json:"total"`
		Highest *float64   `json:"highest"`
	} `json:"hashrate"`
	Results struct {
		DiffCurrent uint64 `json:"diff_current"`
		SharesGood  uint64 `json:"shares_good"`
		SharesTotal uint64 `json:"shares_total"`
		AvgTime     uint64 `json:"avg_time"`
		HashesTotal uint64 `json:"hashes_total"`
	} `json:"results"`
	Connection struct {
		Pool     string `json:"pool"`
		Uptime   uint64 `json:"uptime"`
		Ping     uint64 `json:"ping"`
		Accepted uint64 `json:"accepted"`
		Rejected uint64 `json:"rejected"`
		Diff     uint64 `json:"diff"`
	} `json:"connection"`
}

// Stats maps the summary to MiningStats. Uptime is left to the owner of the
// session clock.
func (s Summary) Stats() model.MiningStats {
	window := func(i int) float64 {
		if i >= len(s.Hashrate.Total) || s.Hashrate.Total[i] == nil {
			return 0
		}
		return sanitize(*s.Hashrate.Total[i])
	}
	st := model.MiningStats{
		Hashrate10s:    window(0),
		Hashrate60s:    window(1),
		Hashrate15m:    window(2),
		SharesAccepted: s.Connection.Accepted,
		SharesRejected: s.Connection.Rejected,
		Difficulty:     s.Connection.Diff,
	}
	st.Hashrate = current(st)
	if st.SharesAccepted == 0 && s.Results.SharesGood > 0 {
		st.SharesAccepted = s.Results.SharesGood
		if s.Results.SharesTotal > s.Results.SharesGood {
			st.SharesRejected = s.Results.SharesTotal - s.Results.SharesGood
		}
	}
	if st.Difficulty == 0 {
		st.Difficulty = s.Results.DiffCurrent
	}
	return st
}

// current is the shortest window that has a reading.
func current(st model.MiningStats) float64 {
	for _, h := range []float64{st.Hashrate10s, st.Hashrate60s, st.Hashrate15m} {
		if h > 0 {
			return h
		}
	}
	return 0
}

func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
