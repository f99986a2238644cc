package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iml1s/xmrigminer/internal/api"
	"github.com/iml1s/xmrigminer/internal/host"
	"github.com/iml1s/xmrigminer/internal/log"
	"github.com/iml1s/xmrigminer/internal/model"
	"github.com/iml1s/xmrigminer/internal/service"
)

var flagStartOnRun bool // value of run --start flag

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the mining service and its control API",
	RunE:  doRun,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start mining on a running service with the mining section of the config",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			ack, err := c.Start(ctx, config.Mining)
			if err != nil {
				logProblem(err)
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ack)
			return err
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "stop mining on a running service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			ack, err := c.Stop(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ack)
			return err
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print the latest mining statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			stats, err := c.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print whether the service is mining",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			running, err := c.Running(ctx)
			if err != nil {
				return err
			}
			status := "stopped"
			if running {
				status = "running"
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), status)
			return err
		})
	},
}

var sysinfoCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "print the hardware and OS facts of this host",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := host.NewProber().Probe(cmd.Context())
		return printJSON(cmd.OutOrStdout(), info)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "validate the mining section of the config against this host",
	RunE:  doCheck,
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attrs := slog.Group("xmrigminer",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := service.FromConfig(config, reg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", config.Service.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", config.Service.Listen, err)
	}

	handler := api.NewHandler(svc,
		api.WithDefaultMining(config.Mining),
		api.WithGatherer(reg),
		api.WithReadinessCheck("miner-binary", minerBinary(svc.Supervisor().MinerPath())),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Do(ctx)
	})
	g.Go(func() error {
		return api.Serve(ctx, ln, handler)
	})
	if flagStartOnRun {
		g.Go(func() error {
			if config.Mining == nil {
				return errors.New("--start: config has no mining section")
			}
			ack, err := svc.StartMining(ctx, *config.Mining)
			if err != nil {
				logProblem(err)
				return err
			}
			slog.InfoContext(ctx, ack)
			return nil
		})
	}
	return g.Wait()
}

func doCheck(cmd *cobra.Command, _ []string) error {
	if config.Mining == nil {
		return fmt.Errorf("%s has no mining section", configPath)
	}
	info := host.NewProber().Probe(cmd.Context())
	if _, err := model.Validate(*config.Mining, info); err != nil {
		logProblem(err)
		return fmt.Errorf("invalid mining section in %s", configPath)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", configPath)
	return err
}

func minerBinary(path string) func() error {
	return func() error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s is not a regular file", path)
		}
		return nil
	}
}

func withClient(cmd *cobra.Command, f func(context.Context, *api.Client) error) error {
	server := flagServer
	if server == "" {
		server = config.Service.Listen
	}
	client, err := api.NewClient(server)
	if err != nil {
		return err
	}
	return f(cmd.Context(), client)
}

// logProblem logs one record per offending field of a validation error.
func logProblem(err error) {
	var p *api.Problem
	if errors.As(err, &p) {
		for _, f := range p.Fields {
			slog.Error("invalid mining config", "field", f.Field, "error", f.Message)
		}
		return
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return
	}
	for _, e := range joined.Unwrap() {
		var ce *model.ConfigError
		if errors.As(e, &ce) {
			slog.Error("invalid mining config", "field", ce.Field, "error", ce.Err)
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
