package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iml1s/xmrigminer/internal/host"
	"github.com/iml1s/xmrigminer/internal/log"
	"github.com/iml1s/xmrigminer/internal/model"
	"github.com/iml1s/xmrigminer/internal/netscan"
	"github.com/iml1s/xmrigminer/internal/telemetry"
)

type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is a snapshot of the supervisor.
type Status struct {
	State     State
	PID       int
	StartedAt time.Time
	Session   string
	// Exited is set when the worker ended without being stopped.
	Exited bool
}

type Options struct {
	// MinerPath is the worker executable, empty means the platform default below Dir.
	MinerPath   string
	Dir         string
	HTTPPort    uint16
	StopTimeout time.Duration
	Env         []string
}

// Supervisor owns the worker process and its stats snapshot. One mutex
// guards the state, the process handle, the session and the stats. Spawn
// runs inside it; the wait for a terminated worker runs outside, while the
// state is Stopping.
type Supervisor struct {
	mx      sync.Mutex
	state   State
	runner  *Runner
	session telemetry.Session
	stats   model.MiningStats
	exited  bool

	opts         Options
	env          host.Environment
	portCheck    func(context.Context, netip.AddrPort) error
	onLine       func(session, line string)
	onTransition func()
	now          func() time.Time
}

type SupervisorOption func(*Supervisor)

func WithEnvironment(env host.Environment) SupervisorOption {
	return func(s *Supervisor) {
		s.env = env
	}
}

// WithPortCheck replaces the pre-flight check of the status port.
func WithPortCheck(f func(context.Context, netip.AddrPort) error) SupervisorOption {
	return func(s *Supervisor) {
		s.portCheck = f
	}
}

// WithLineHandler receives every output line of the worker together with
// the session it belongs to.
func WithLineHandler(f func(session, line string)) SupervisorOption {
	return func(s *Supervisor) {
		s.onLine = f
	}
}

// WithTransitionHook is called, under the lock, after Start and Stop
// committed a new state. It must not block or call back into the Supervisor.
func WithTransitionHook(f func()) SupervisorOption {
	return func(s *Supervisor) {
		s.onTransition = f
	}
}

func NewSupervisor(opts Options, options ...SupervisorOption) *Supervisor {
	if opts.HTTPPort == 0 {
		opts.HTTPPort = model.DefaultHTTPPort
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}
	s := &Supervisor{
		opts:      opts,
		env:       host.Current(),
		portCheck: netscan.CheckFree,
		now:       time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// MinerPath returns the executable Start would spawn.
func (s *Supervisor) MinerPath() string {
	if s.opts.MinerPath != "" {
		return s.opts.MinerPath
	}
	return s.env.MinerPath(s.opts.Dir)
}

// Start spawns the worker from Stopped. It returns ErrAlreadyRunning in any
// other state, and ErrSpawnFailed, with the state back at Stopped, when the
// process could not be created.
func (s *Supervisor) Start(ctx context.Context, cfg model.ValidatedConfig) (telemetry.Session, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state != Stopped {
		return telemetry.Session{}, ErrAlreadyRunning
	}
	if cfg.IsZero() {
		return telemetry.Session{}, fmt.Errorf("%w: empty configuration", ErrSpawnFailed)
	}
	s.state = Starting

	sess, runner, err := s.spawn(ctx, cfg.Config())
	if err != nil {
		s.state = Stopped
		slog.ErrorContext(ctx, "miner start failed", "error", err)
		return telemetry.Session{}, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}

	s.runner = runner
	s.session = sess
	s.stats = model.MiningStats{}
	s.exited = false
	s.state = Running
	go s.watch(context.WithoutCancel(ctx), sess.ID, runner)
	s.transition()

	slog.InfoContext(ctx, "miner started", "session", sess.ID, "pid", sess.PID, "path", runner.Result().Path)
	return sess, nil
}

func (s *Supervisor) spawn(ctx context.Context, cfg model.MiningConfig) (telemetry.Session, *Runner, error) {
	if err := s.portCheck(ctx, netscan.Loopback(s.opts.HTTPPort)); err != nil {
		return telemetry.Session{}, nil, fmt.Errorf("status port: %w", err)
	}

	sess := telemetry.Session{
		ID:    uuid.NewString(),
		Port:  s.opts.HTTPPort,
		Token: uuid.NewString(),
	}
	ctx = log.ContextAttrs(ctx, slog.String("session", sess.ID))

	cmd := Command{
		Path: s.MinerPath(),
		Args: Args(cfg, sess.Port, sess.Token),
		Env:  s.opts.Env,
		Dir:  s.opts.Dir,
	}
	runner, err := StartRunner(context.WithoutCancel(ctx), cmd, s.lineFunc(ctx, sess.ID))
	if err != nil {
		return telemetry.Session{}, nil, err
	}
	sess.PID = runner.PID()
	sess.StartedAt = runner.Result().Started
	return sess, runner, nil
}

func (s *Supervisor) lineFunc(ctx context.Context, session string) LineFunc {
	ctx = context.WithoutCancel(ctx)
	return func(stream, line string) {
		slog.DebugContext(ctx, "miner output", "stream", stream, "line", line)
		if s.onLine != nil {
			s.onLine(session, line)
		}
	}
}

// watch flags a worker that ended on its own. The state is left alone until
// the next explicit Stop.
func (s *Supervisor) watch(ctx context.Context, session string, r *Runner) {
	<-r.Done()
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state != Running || s.session.ID != session {
		return
	}
	s.exited = true
	res := r.Result()
	slog.WarnContext(ctx, "miner exited on its own", "session", session, "state", res.State, "error", res.Err)
}

// Stop terminates the worker from Running. Session and stats are cleared
// right away and the lock is released while the worker is waited for, so
// readers see Stopping, never a blocked call. The state always ends at
// Stopped; a failed termination is still reported as ErrTerminateFailed.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mx.Lock()
	if s.state != Running {
		s.mx.Unlock()
		return ErrNotRunning
	}
	s.state = Stopping
	runner := s.runner
	ctx = log.ContextAttrs(ctx, slog.String("session", s.session.ID))
	s.runner = nil
	s.session = telemetry.Session{}
	s.stats = model.MiningStats{}
	s.exited = false
	s.transition()
	s.mx.Unlock()

	err := s.terminate(ctx, runner)

	s.mx.Lock()
	s.state = Stopped
	s.transition()
	s.mx.Unlock()

	if err != nil {
		slog.WarnContext(ctx, "miner stopped with error", "error", err)
		return fmt.Errorf("%w: %w", ErrTerminateFailed, err)
	}
	slog.InfoContext(ctx, "miner stopped")
	return nil
}

// terminate asks the process to exit and kills it after the stop timeout.
func (s *Supervisor) terminate(ctx context.Context, r *Runner) error {
	termErr := s.env.Terminate(r.Process())
	if _, ok := r.Wait(s.opts.StopTimeout); ok {
		return termErr
	}
	slog.WarnContext(ctx, "miner did not exit in time: killing", "timeout", s.opts.StopTimeout)
	if err := r.Process().Kill(); err != nil {
		return errors.Join(termErr, fmt.Errorf("kill: %w", err))
	}
	if _, ok := r.Wait(s.opts.StopTimeout); !ok {
		return errors.Join(termErr, fmt.Errorf("pid %d still alive after kill", r.PID()))
	}
	return termErr
}

// addTransitionHook chains f after the hooks already set.
func (s *Supervisor) addTransitionHook(f func()) {
	s.mx.Lock()
	defer s.mx.Unlock()
	prev := s.onTransition
	s.onTransition = func() {
		if prev != nil {
			prev()
		}
		f()
	}
}

func (s *Supervisor) transition() {
	if s.onTransition != nil {
		s.onTransition()
	}
}

// Close stops a running worker, it is a no-op otherwise.
func (s *Supervisor) Close(ctx context.Context) error {
	err := s.Stop(ctx)
	if errors.Is(err, ErrNotRunning) {
		return nil
	}
	return err
}

// IsRunning reports whether the state is Running. It never waits for I/O.
func (s *Supervisor) IsRunning() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state == Running
}

func (s *Supervisor) Status() Status {
	s.mx.Lock()
	defer s.mx.Unlock()
	return Status{
		State:     s.state,
		PID:       s.session.PID,
		StartedAt: s.session.StartedAt,
		Session:   s.session.ID,
		Exited:    s.exited,
	}
}

// Stats returns a copy of the snapshot, all zero unless Running.
func (s *Supervisor) Stats() model.MiningStats {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.snapshot()
}

func (s *Supervisor) snapshot() model.MiningStats {
	if s.state != Running {
		return model.MiningStats{}
	}
	st := s.stats
	if up := s.now().Sub(s.session.StartedAt); up > 0 {
		st.Uptime = uint64(up / time.Second)
	}
	return st
}

// Session implements telemetry.Target.
func (s *Supervisor) Session() (telemetry.Session, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state != Running {
		return telemetry.Session{}, false
	}
	return s.session, true
}

// Publish implements telemetry.Target. Readings of a session that is no
// longer running are dropped, share counters never go down within a session.
func (s *Supervisor) Publish(id string, stats model.MiningStats) (model.MiningStats, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state != Running || s.session.ID != id {
		return model.MiningStats{}, false
	}
	stats.SharesAccepted = max(stats.SharesAccepted, s.stats.SharesAccepted)
	stats.SharesRejected = max(stats.SharesRejected, s.stats.SharesRejected)
	stats.Uptime = 0
	s.stats = stats
	return s.snapshot(), true
}
