package service

import (
	"strconv"

	"github.com/iml1s/xmrigminer/internal/model"
)

// StatusHost is the only address the worker's HTTP API may bind.
const StatusHost = "127.0.0.1"

// Args builds the xmrig command line for cfg. The status API is always
// enabled on loopback and guarded by token.
func Args(cfg model.MiningConfig, port uint16, token string) []string {
	args := []string{
		"-o", cfg.PoolURL,
		"-u", cfg.WalletAddress,
		"-p", cfg.WorkerName,
		"-t", strconv.Itoa(cfg.Threads),
		"-a", cfg.Algorithm,
	}
	if cfg.CoinType != "" {
		if _, ok := model.LookupCoin(cfg.CoinType); ok {
			args = append(args, "--coin", cfg.CoinType)
		}
	}
	if cfg.DonateLevel != nil {
		args = append(args, "--donate-level", strconv.Itoa(*cfg.DonateLevel))
	}
	args = append(args,
		"--no-color",
		"--http-enabled",
		"--http-host="+StatusHost,
		"--http-port="+strconv.Itoa(int(port)),
	)
	if token != "" {
		args = append(args, "--http-access-token="+token)
	}
	return args
}
