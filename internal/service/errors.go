package service

import "errors"

var (
	ErrAlreadyRunning  = errors.New("mining is already running")
	ErrNotRunning      = errors.New("mining is not running")
	ErrSpawnFailed     = errors.New("failed to start miner")
	ErrTerminateFailed = errors.New("failed to terminate miner")
)
