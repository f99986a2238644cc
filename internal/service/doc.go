// Package service supervises the mining worker process.
//
// Overview
// The Supervisor owns the only worker process and a state machine
//
//	Stopped -> Starting -> Running{pid, started_at} -> Stopping -> Stopped
//
// guarded by a single mutex together with the process handle, the session
// and the stats snapshot. Start is allowed only from Stopped and returns
// ErrAlreadyRunning otherwise, Stop only from Running and returns
// ErrNotRunning otherwise. Neither is a silent no-op.
//
// Runner is a thin, opinionated wrapper around os/exec:
//   - starts the process with the environment of the host plus extras
//   - captures stdout and stderr line by line (one goroutine each)
//   - reaps the process once both streams are drained
//   - exposes Done, Wait and the Result
//
// Data flow:
//
//	Service              Supervisor               Runner{cmd}          telemetry.Collector
//	   |                     |                       |                        |
//	StartMining -> Validate  |                       |                        |
//	   | Start() ----------->| lock, check port ---->| os/exec.Start          |
//	   |                     | Running, Notify() ------------------------------>|
//	   |                     |<------------------------------------ Session() |
//	   |                     |                       |   fetch /2/summary (no lock)
//	   |                     |<------------------------------------ Publish() |
//	StopMining ------------->| lock, Terminate ----->| exit, reaped           |
//	   |                     | Stopped, zero stats, Notify() ---------------->| halt
//
// Invariants:
//   - At most one Runner at a time.
//   - Stats are all zero unless the state is Running.
//   - Readings of a finished session are never published.
//   - A failing transition always ends in a defined state, Start in Stopped
//     on ErrSpawnFailed, Stop in Stopped even on ErrTerminateFailed.
//   - A worker that exits on its own is only flagged in Status.Exited, there
//     is no automatic restart.
//
// internal/service/service_test.go is the best source about how to properly use
// the Service struct.
package service
