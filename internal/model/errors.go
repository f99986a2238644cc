package model

import (
	"errors"
)

var (
	ErrEmptyField                 = errors.New("field is empty")
	ErrThreadCountZero            = errors.New("thread count must be positive")
	ErrThreadCountExceedsCapacity = errors.New("thread count exceeds logical threads of the host")
	ErrAlgorithmMismatch          = errors.New("algorithm is not used by the coin")
	ErrDonateLevel                = errors.New("donate level out of range 0-100")
)

// ConfigError is a single rejected field of a MiningConfig.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
