package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// LineFunc receives one line of the worker's output, stream is "stdout" or "stderr".
type LineFunc func(stream, line string)

type Command struct {
	Path string
	Args []string
	// Env is appended to the environment of the current process.
	Env []string
	Dir string
}

type Result struct {
	Path    string
	Args    []string
	Started time.Time
	Stopped time.Time
	State   *os.ProcessState
	Err     error
}

// Runner is one started worker process. Its output is captured line by line,
// never inherited by the host.
type Runner struct {
	mx     sync.RWMutex
	cmd    *exec.Cmd
	done   chan struct{}
	result Result
}

// StartRunner spawns proto and returns once the OS acknowledged the spawn.
// It does not wait for the command to finish, use Done or Wait for that.
// Note it spawns internal goroutines which drain the output and monitor the
// process; they end when the process does.
func StartRunner(ctx context.Context, proto Command, lineFunc LineFunc) (*Runner, error) {
	cmd := exec.Command(proto.Path, proto.Args...)
	cmd.Env = append(os.Environ(), proto.Env...)
	cmd.Dir = proto.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	r := &Runner{
		cmd:  cmd,
		done: make(chan struct{}),
		result: Result{
			Path:    proto.Path,
			Args:    append([]string(nil), proto.Args...),
			Started: time.Now().UTC(),
		},
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var streams sync.WaitGroup
	streams.Go(func() {
		r.drain(ctx, "stdout", stdout, lineFunc)
	})
	streams.Go(func() {
		r.drain(ctx, "stderr", stderr, lineFunc)
	})
	go r.wait(&streams)
	return r, nil
}

// maxLineLength caps a captured line, longer lines are skipped whole.
const maxLineLength = 64 << 10

func (r *Runner) drain(ctx context.Context, stream string, rd io.Reader, lineFunc LineFunc) {
	br := bufio.NewReader(rd)
	var line []byte
	var skip bool
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				slog.ErrorContext(ctx, "processing worker output", "stream", stream, "error", err)
			}
			break
		}
		if !skip {
			line = append(line, chunk...)
			if len(line) > maxLineLength {
				slog.WarnContext(ctx, "worker output line too long, skipped", "stream", stream, "limit", maxLineLength)
				skip = true
			}
		}
		if isPrefix {
			continue
		}
		if !skip && lineFunc != nil {
			lineFunc(stream, string(line))
		}
		line = line[:0]
		skip = false
	}
	// keep the pipe empty, a blocked write would stall the worker
	_, _ = io.Copy(io.Discard, rd)
}

// wait reaps the process. Wait closes the pipes, so it runs after both
// streams reached EOF.
func (r *Runner) wait(streams *sync.WaitGroup) {
	streams.Wait()
	err := r.cmd.Wait()
	stopped := time.Now().UTC()

	r.mx.Lock()
	r.result.Stopped = stopped
	r.result.State = r.cmd.ProcessState
	r.result.Err = err
	r.mx.Unlock()
	close(r.done)
}

func (r *Runner) PID() int {
	return r.cmd.Process.Pid
}

func (r *Runner) Process() *os.Process {
	return r.cmd.Process
}

// Done is closed once the process has exited and was reaped.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the process exits or timeout passes, ok reports which.
func (r *Runner) Wait(timeout time.Duration) (Result, bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-r.done:
		return r.Result(), true
	case <-t.C:
		return Result{}, false
	}
}

// Exited reports without blocking whether the process is gone.
func (r *Runner) Exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Result returns the command result, Stopped and State are zero while running.
func (r *Runner) Result() Result {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return r.result
}
