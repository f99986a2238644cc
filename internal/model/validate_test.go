package model_test

import (
	"errors"
	"testing"

	"github.com/iml1s/xmrigminer/internal/model"
	"github.com/stretchr/testify/require"
)

func validConfig() model.MiningConfig {
	return model.MiningConfig{
		PoolURL:       "pool.example:3333",
		WalletAddress: "4Ab...",
		WorkerName:    "w1",
		Threads:       4,
		Algorithm:     "rx/0",
	}
}

var host8 = model.SystemInfo{CPUThreads: 8, CPUCores: 4}

func TestValidate(t *testing.T) {
	t.Parallel()
	v, err := model.Validate(validConfig(), host8)
	require.NoError(t, err)
	require.False(t, v.IsZero())
	require.Equal(t, validConfig(), v.Config())
}

func TestValidate_Normalize(t *testing.T) {
	t.Parallel()
	cfg := model.MiningConfig{
		PoolURL:       "  pool.example:3333 ",
		WalletAddress: "\t4Ab...\n",
		Threads:       1,
		CoinType:      " Monero",
		Algorithm:     "RX/0",
	}
	v, err := model.Validate(cfg, host8)
	require.NoError(t, err)
	got := v.Config()
	require.Equal(t, "pool.example:3333", got.PoolURL)
	require.Equal(t, "4Ab...", got.WalletAddress)
	require.Equal(t, model.DefaultWorkerName, got.WorkerName)
	require.Equal(t, "monero", got.CoinType)
	require.Equal(t, "rx/0", got.Algorithm)
}

func TestValidate_Fail(t *testing.T) {
	t.Parallel()
	type then struct {
		field string
		err   error
	}
	cases := []struct {
		scenario string
		given    func(*model.MiningConfig)
		then     then
	}{
		{"empty pool", func(c *model.MiningConfig) { c.PoolURL = "" }, then{"pool_url", model.ErrEmptyField}},
		{"blank wallet", func(c *model.MiningConfig) { c.WalletAddress = "   " }, then{"wallet_address", model.ErrEmptyField}},
		{"blank algorithm", func(c *model.MiningConfig) { c.Algorithm = "\t" }, then{"algorithm", model.ErrEmptyField}},
		{"zero threads", func(c *model.MiningConfig) { c.Threads = 0 }, then{"threads", model.ErrThreadCountZero}},
		{"negative threads", func(c *model.MiningConfig) { c.Threads = -2 }, then{"threads", model.ErrThreadCountZero}},
		{"too many threads", func(c *model.MiningConfig) { c.Threads = 9 }, then{"threads", model.ErrThreadCountExceedsCapacity}},
		{"coin mismatch", func(c *model.MiningConfig) { c.CoinType = "wownero" }, then{"algorithm", model.ErrAlgorithmMismatch}},
		{"donate level", func(c *model.MiningConfig) { d := 101; c.DonateLevel = &d }, then{"donate_level", model.ErrDonateLevel}},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			cfg := validConfig()
			tc.given(&cfg)
			v, err := model.Validate(cfg, host8)
			require.Error(t, err)
			require.True(t, v.IsZero())
			require.ErrorIs(t, err, tc.then.err)

			var cerr *model.ConfigError
			require.ErrorAs(t, err, &cerr)
			require.Equal(t, tc.then.field, cerr.Field)
		})
	}
}

func TestValidate_ThreadLimits(t *testing.T) {
	t.Parallel()
	for logical := uint32(1); logical <= 64; logical++ {
		info := model.SystemInfo{CPUThreads: logical}

		cfg := validConfig()
		cfg.Threads = 0
		_, err := model.Validate(cfg, info)
		require.ErrorIs(t, err, model.ErrThreadCountZero)

		cfg.Threads = int(logical)
		_, err = model.Validate(cfg, info)
		require.NoError(t, err)

		cfg.Threads = int(logical) + 1
		_, err = model.Validate(cfg, info)
		require.ErrorIs(t, err, model.ErrThreadCountExceedsCapacity)
	}
}

func TestValidate_UnknownCapacity(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Threads = 1024
	_, err := model.Validate(cfg, model.SystemInfo{})
	require.NoError(t, err)
}

func TestValidate_Joined(t *testing.T) {
	t.Parallel()
	_, err := model.Validate(model.MiningConfig{}, host8)
	require.Error(t, err)
	require.ErrorIs(t, err, model.ErrEmptyField)
	require.ErrorIs(t, err, model.ErrThreadCountZero)

	var fields []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var cerr *model.ConfigError
		require.True(t, errors.As(e, &cerr))
		fields = append(fields, cerr.Field)
	}
	require.Equal(t, []string{"pool_url", "wallet_address", "threads", "algorithm"}, fields)
}

func TestLookupCoin(t *testing.T) {
	t.Parallel()
	coin, ok := model.LookupCoin("MONERO")
	require.True(t, ok)
	require.True(t, coin.Accepts("rx/0"))
	require.True(t, coin.Accepts("randomx"))
	require.False(t, coin.Accepts("rx/wow"))

	_, ok = model.LookupCoin("bitcoin")
	require.False(t, ok)
	require.Len(t, model.Coins(), 3)
}

func TestMiningStats(t *testing.T) {
	t.Parallel()
	var s model.MiningStats
	require.True(t, s.IsZero())
	require.Zero(t, s.SuccessRate())

	s.SharesAccepted = 3
	s.SharesRejected = 1
	require.False(t, s.IsZero())
	require.InDelta(t, 75.0, s.SuccessRate(), 0.001)
}
