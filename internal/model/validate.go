package model

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultWorkerName is the pool password XMRig uses when none is given.
const DefaultWorkerName = "x"

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// report fields by their json names, those are what callers send
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate normalizes cfg and checks it against the capabilities of the host.
// Every rejected field is reported as a *ConfigError, all of them joined
// together, so errors.Is matches each violated rule. It has no side effects.
func Validate(cfg MiningConfig, info SystemInfo) (ValidatedConfig, error) {
	cfg = normalize(cfg)

	var errs []error
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return ValidatedConfig{}, err
		}
		for _, fe := range verrs {
			errs = append(errs, &ConfigError{Field: fe.Field(), Err: fieldErr(fe)})
		}
	}

	// 0 logical threads is the probe saying it does not know
	if cfg.Threads > 0 && info.CPUThreads > 0 {
		limit := "lte=" + strconv.FormatUint(uint64(info.CPUThreads), 10)
		if err := validate.Var(cfg.Threads, limit); err != nil {
			errs = append(errs, &ConfigError{
				Field: "threads",
				Err:   fmt.Errorf("%w: %d > %d", ErrThreadCountExceedsCapacity, cfg.Threads, info.CPUThreads),
			})
		}
	}

	if coin, ok := LookupCoin(cfg.CoinType); ok && cfg.Algorithm != "" && !coin.Accepts(cfg.Algorithm) {
		errs = append(errs, &ConfigError{
			Field: "algorithm",
			Err:   fmt.Errorf("%w: %s mines %s, got %s", ErrAlgorithmMismatch, coin.Name, coin.Algorithm, cfg.Algorithm),
		})
	}

	if len(errs) > 0 {
		return ValidatedConfig{}, errors.Join(errs...)
	}
	return ValidatedConfig{cfg: cfg}, nil
}

func normalize(cfg MiningConfig) MiningConfig {
	cfg.PoolURL = strings.TrimSpace(cfg.PoolURL)
	cfg.WalletAddress = strings.TrimSpace(cfg.WalletAddress)
	cfg.WorkerName = strings.TrimSpace(cfg.WorkerName)
	if cfg.WorkerName == "" {
		cfg.WorkerName = DefaultWorkerName
	}
	cfg.CoinType = strings.ToLower(strings.TrimSpace(cfg.CoinType))
	cfg.Algorithm = strings.ToLower(strings.TrimSpace(cfg.Algorithm))
	if cfg.DonateLevel != nil {
		d := *cfg.DonateLevel
		cfg.DonateLevel = &d
	}
	return cfg
}

func fieldErr(fe validator.FieldError) error {
	switch {
	case fe.Field() == "donate_level":
		return ErrDonateLevel
	case fe.Tag() == "required":
		return ErrEmptyField
	case fe.Field() == "threads":
		return ErrThreadCountZero
	default:
		return fmt.Errorf("failed on %s", fe.Tag())
	}
}
