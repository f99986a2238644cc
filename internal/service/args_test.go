package service_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iml1s/xmrigminer/internal/model"
	"github.com/iml1s/xmrigminer/internal/service"
)

func TestArgs(t *testing.T) {
	t.Parallel()
	donate := 1
	cfg := model.MiningConfig{
		PoolURL:       "pool.example:3333",
		WalletAddress: "4Ab",
		WorkerName:    "w1",
		Threads:       4,
		CoinType:      "monero",
		Algorithm:     "rx/0",
		DonateLevel:   &donate,
	}
	require.Equal(t, []string{
		"-o", "pool.example:3333",
		"-u", "4Ab",
		"-p", "w1",
		"-t", "4",
		"-a", "rx/0",
		"--coin", "monero",
		"--donate-level", "1",
		"--no-color",
		"--http-enabled",
		"--http-host=127.0.0.1",
		"--http-port=37420",
		"--http-access-token=tok",
	}, service.Args(cfg, 37420, "tok"))

	cfg.CoinType = "unknowncoin"
	cfg.DonateLevel = nil
	args := service.Args(cfg, 40000, "")
	require.NotContains(t, args, "--coin")
	require.NotContains(t, args, "--donate-level")
	require.Equal(t, "--http-port=40000", args[len(args)-1])
}
