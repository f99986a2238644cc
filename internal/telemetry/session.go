// Package telemetry polls a running worker for its statistics and publishes
// them back to the supervisor.
package telemetry

import (
	"context"
	"time"

	"github.com/iml1s/xmrigminer/internal/model"
)

// Session identifies one run of the worker, from spawn until stop.
type Session struct {
	ID        string
	PID       int
	Port      uint16
	Token     string
	StartedAt time.Time
}

// Source fetches the current statistics of the worker running in s.
type Source interface {
	Fetch(ctx context.Context, s Session) (model.MiningStats, error)
}

// Target is the owner of the stats snapshot, usually the supervisor.
type Target interface {
	// Session returns the session currently running.
	Session() (Session, bool)
	// Publish stores stats if id is still the running session and returns
	// the snapshot as stored.
	Publish(id string, stats model.MiningStats) (model.MiningStats, bool)
}
