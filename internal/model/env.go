package model

import (
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "XMRIGMINER"

// NewEnv returns a viper instance reading XMRIGMINER_* variables, so
// the wallet does not have to be stored in the config file.
func NewEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyEnv overrides the mining section of cfg with values set in v.
func ApplyEnv(cfg Config, v *viper.Viper) Config {
	m := MiningConfig{}
	if cfg.Mining != nil {
		m = *cfg.Mining
	}
	changed := false
	set := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
			changed = true
		}
	}
	set("pool", &m.PoolURL)
	set("wallet", &m.WalletAddress)
	set("worker", &m.WorkerName)
	set("coin", &m.CoinType)
	set("algorithm", &m.Algorithm)
	if t := v.GetInt("threads"); t != 0 {
		m.Threads = t
		changed = true
	}
	if changed || cfg.Mining != nil {
		cfg.Mining = &m
	}
	return cfg
}
