package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/johnliu0/codematic-executor/api"
	"github.com/johnliu0/codematic-executor/internal/behave"
	"github.com/johnliu0/codematic-executor/internal/environment"
	"github.com/johnliu0/codematic-executor/internal/langconf"
	"github.com/johnliu0/codematic-executor/internal/pipeline"
	"github.com/johnliu0/codematic-executor/internal/progress"
	"github.com/johnliu0/codematic-executor/internal/progress/natsgath"
	"github.com/johnliu0/codematic-executor/internal/progress/sqsgath"
	"github.com/johnliu0/codematic-executor/internal/progress/wshub"
	"github.com/johnliu0/codematic-executor/internal/sandbox"
	"github.com/johnliu0/codematic-executor/internal/server"
	"github.com/johnliu0/codematic-executor/internal/submission"
	"github.com/johnliu0/codematic-executor/internal/workspace"
	"github.com/lmittmann/tint"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
)

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.TimeOnly,
	})))

	cmd := &cli.Command{
		Name:  "codematic-executor",
		Usage: "build and run code submissions in resource-capped containers",
		Commands: []*cli.Command{
			serveCommand(),
			runCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the HTTP submission server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := environment.ReadEnvConfig()

			hub := wshub.New()
			p, langs, cleanup, err := buildPipeline(ctx, cfg, hub)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := server.New(p, langs, hub, slog.Default())
			slog.Info("listening", "addr", cfg.ListenAddr)
			return http.ListenAndServe(cfg.ListenAddr, srv.Handler())
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run the scenarios in a TOML behaviour file",
		ArgsUsage: "<scenarios.toml>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print full responses as JSON instead of verdict lines",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one behaviour file argument")
			}

			cases, err := behave.Parse(cmd.Args().First())
			if err != nil {
				return err
			}

			cfg := environment.ReadEnvConfig()
			p, _, cleanup, err := buildPipeline(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			failures := 0
			for _, c := range cases {
				if err := runCase(ctx, p, c, cmd.Bool("json")); err != nil {
					slog.Error("scenario failed", "name", c.Name, "error", err)
					failures++
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failures, len(cases))
			}
			return nil
		},
	}
}

// buildPipeline wires the full production stack from the environment
// config. The returned cleanup releases the engine client and any sink
// connections.
func buildPipeline(ctx context.Context, cfg *environment.EnvConfig, hub *wshub.Hub) (*pipeline.Pipeline, *langconf.Registry, func(), error) {
	langs, err := loadLanguages(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	eng, err := sandbox.NewClient(ctx, slog.Default())
	if err != nil {
		return nil, nil, nil, err
	}
	closers := []func(){func() { eng.Close() }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	sink, closeSink, err := buildSink(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	if closeSink != nil {
		closers = append(closers, closeSink)
	}
	if hub != nil {
		sink = progress.MultiSink{sink, hub}
	}

	root := cfg.WorkspaceRoot
	if root == "" {
		root = workspace.DefaultRoot()
	}
	ws := workspace.NewManager(root, slog.Default())

	pcfg := pipeline.Config{
		TestCaseTimeout:         cfg.TestCaseTimeout,
		Limits:                  sandbox.Limits{MemoryMB: cfg.MemoryLimitMB, CPUs: cfg.CPULimit},
		ContainersPerSubmission: cfg.ContainersPerSubmission,
	}

	p := pipeline.New(ws, eng, langs, sink, pcfg, slog.Default())
	return p, langs, cleanup, nil
}

func loadLanguages(cfg *environment.EnvConfig) (*langconf.Registry, error) {
	if cfg.LangConfPath == "" {
		return langconf.Default(), nil
	}
	return langconf.Load(cfg.LangConfPath)
}

func buildSink(ctx context.Context, cfg *environment.EnvConfig) (progress.Sink, func(), error) {
	switch cfg.ProgressSink {
	case "", "slog":
		return progress.NewSlogSink(slog.Default()), nil, nil
	case "nats":
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		return natsgath.New(nc, cfg.NatsSubject), nc.Close, nil
	case "sqs":
		if cfg.SqsQueueURL == "" {
			return nil, nil, fmt.Errorf("EXECUTOR_SQS_QUEUE_URL is required for the sqs sink")
		}
		sink, err := sqsgath.New(ctx, cfg.SqsQueueURL)
		if err != nil {
			return nil, nil, err
		}
		return sink, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown progress sink: %s", cfg.ProgressSink)
	}
}

func runCase(ctx context.Context, p *pipeline.Pipeline, c behave.Case, asJSON bool) error {
	c.Request.DecodeEscapes()
	subm := submission.FromRequest(&c.Request)

	start := time.Now()
	res, runErr := p.Run(ctx, subm)
	resp := pipeline.BuildResponse(res, runErr, start, time.Now())

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		printVerdicts(c.Name, resp)
	}

	return runErr
}

var (
	passedColor = color.New(color.FgGreen, color.Bold)
	failedColor = color.New(color.FgRed, color.Bold)
	timedColor  = color.New(color.FgYellow, color.Bold)
)

func printVerdicts(name string, resp api.ExecResponse) {
	fmt.Printf("%s (%s, %dms)\n", name, resp.Status, resp.TotalTimeMs)
	for _, tr := range resp.TestResults {
		var c *color.Color
		switch submission.Status(tr.Status) {
		case submission.StatusPassed:
			c = passedColor
		case submission.StatusTimedOut:
			c = timedColor
		default:
			c = failedColor
		}
		fmt.Printf("  test case %d: %s\n", tr.TestCase, c.Sprint(tr.Status))
	}
	if resp.Status == api.BuildError && resp.BuildLog != "" {
		fmt.Println(failedColor.Sprint("build log:"))
		fmt.Println(resp.BuildLog)
	}
	if resp.ErrorMessage != nil {
		fmt.Printf("  error: %s\n", failedColor.Sprint(*resp.ErrorMessage))
	}
}
