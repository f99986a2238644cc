package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iml1s/xmrigminer/internal/model"
	"github.com/iml1s/xmrigminer/internal/telemetry"
)

func TestLogSource(t *testing.T) {
	t.Parallel()
	src := telemetry.NewLogSource()
	sess := telemetry.Session{ID: "s1"}

	_, err := src.Fetch(t.Context(), sess)
	require.ErrorIs(t, err, telemetry.ErrUnavailable)

	for _, line := range []string{
		"[2024-05-01 10:00:00.000]  net      use pool pool.example:3333  1.2.3.4",
		"[2024-05-01 10:00:00.100]  net      new job from pool.example:3333 diff 75000 algo rx/0 height 3100000",
		"[2024-05-01 10:00:10.000]  miner    speed 10s/60s/15m 316.3 n/a n/a H/s max 319.9 H/s",
		"[2024-05-01 10:00:12.000]  cpu      accepted (1/0) diff 75000 (45 ms)",
		"[2024-05-01 10:00:20.000]  cpu      accepted (2/0) diff 76680 (41 ms)",
		`[2024-05-01 10:00:30.000]  cpu      rejected (2/1) diff 76680 "Low difficulty share" (40 ms)`,
		"[2024-05-01 10:01:10.000]  miner    speed 10s/60s/15m 316.3 335.9 n/a H/s max 348.0 H/s",
	} {
		src.Observe("s1", line)
	}

	st, err := src.Fetch(t.Context(), sess)
	require.NoError(t, err)
	require.Equal(t, model.MiningStats{
		Hashrate:       316.3,
		Hashrate10s:    316.3,
		Hashrate60s:    335.9,
		SharesAccepted: 2,
		SharesRejected: 1,
		Difficulty:     76680,
	}, st)

	_, err = src.Fetch(t.Context(), telemetry.Session{ID: "other"})
	require.ErrorIs(t, err, telemetry.ErrUnavailable)
}

func TestLogSource_OnlyResults(t *testing.T) {
	t.Parallel()
	src := telemetry.NewLogSource()
	// mentions of accepted or rejected outside a result line are not shares
	for _, line := range []string{
		"[2024-05-01 10:00:00.000]  net      pool.example:3333 login accepted",
		"[2024-05-01 10:00:00.100]  config   option rejected: --cpu-priority",
		"share accepted diff 1000",
		"cpu accepted (x/0) diff 1000",
		"speed 10s/60s/15m 1.5 1.4 1.3 kH/s max 1.6 kH/s",
	} {
		src.Observe("s1", line)
	}

	st, err := src.Fetch(t.Context(), telemetry.Session{ID: "s1"})
	require.NoError(t, err)
	require.Zero(t, st.SharesAccepted)
	require.Zero(t, st.SharesRejected)
	require.Zero(t, st.Difficulty)
	require.InDelta(t, 1500, st.Hashrate10s, 1e-9)
	require.InDelta(t, 1300, st.Hashrate15m, 1e-9)

	src.Observe("s1", "[2024-05-01 10:00:12.000]  cpu      accepted (3/1) diff 2000 (45 ms)")
	st, err = src.Fetch(t.Context(), telemetry.Session{ID: "s1"})
	require.NoError(t, err)
	require.EqualValues(t, 3, st.SharesAccepted)
	require.EqualValues(t, 1, st.SharesRejected)
	require.EqualValues(t, 2000, st.Difficulty)
}

func TestLogSource_NewSession(t *testing.T) {
	t.Parallel()
	src := telemetry.NewLogSource()
	src.Observe("s1", "cpu accepted (9/0) diff 100")
	src.Observe("s2", "unrelated output")

	_, err := src.Fetch(t.Context(), telemetry.Session{ID: "s2"})
	require.ErrorIs(t, err, telemetry.ErrUnavailable)

	src.Observe("s2", "cpu accepted (1/0) diff 100")
	st, err := src.Fetch(t.Context(), telemetry.Session{ID: "s2"})
	require.NoError(t, err)
	require.EqualValues(t, 1, st.SharesAccepted)
}
