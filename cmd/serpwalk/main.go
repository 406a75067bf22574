package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/serpwalk/app"
	"github.com/use-agent/serpwalk/config"
	"github.com/use-agent/serpwalk/pipeline"
	"github.com/use-agent/serpwalk/sink"
	"github.com/use-agent/serpwalk/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

// run returns 0 when the batch completes, failed queries included, and 1 when
// setup fails or the output cannot be written.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	// ── 1. Configuration ────────────────────────────────────────────
	cfg, input, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "serpwalk:", err)
		return 1
	}

	// ── 2. Logging (stderr keeps stdout clean) ──────────────────────
	app.InitLogger(cfg.Log, stderr)
	slog.Info("serpwalk starting",
		"input", input,
		"output", cfg.Sink.Path,
		"format", cfg.Sink.Format,
		"mode", cfg.Engine.Mode,
		"prefer", cfg.Search.Prefer,
		"strict", cfg.Search.Strict,
		"follow", cfg.Pipeline.Follow,
	)

	// ── 3. Queries ──────────────────────────────────────────────────
	queries, err := readQueryFile(input)
	if err != nil {
		slog.Error("failed to read queries", "error", err)
		return 1
	}

	// ── 4. Session and pipeline ─────────────────────────────────────
	rt, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to start session", "error", err)
		return 1
	}
	defer rt.Close()

	// ── 5. Output sink ──────────────────────────────────────────────
	// Opened after the session so a failed start leaves the file untouched.
	out, err := sink.Open(cfg.Sink.Format, cfg.Sink.Path)
	if err != nil {
		slog.Error("failed to open output", "error", err)
		return 1
	}
	defer func() {
		if err := out.Close(); err != nil {
			slog.Error("failed to close output", "error", err)
		}
	}()

	// ── 6. Batch ────────────────────────────────────────────────────
	summary, err := rt.Pipeline.Run(ctx, queries, out)
	if err != nil {
		slog.Error("batch aborted", "error", err)
		return 1
	}

	// ── 7. Notify ───────────────────────────────────────────────────
	if hook := webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret); hook != nil {
		sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := hook.Send(sendCtx, webhook.NewEvent(webhook.EventBatchCompleted, summary.RunID, summary)); err != nil {
			slog.Warn("batch webhook not delivered", "error", err)
		}
	}
	return 0
}

func readQueryFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pipeline.ReadQueries(f)
}

// parseArgs layers configuration: environment, then the optional YAML file,
// then explicitly set flags.
func parseArgs(args []string, stderr io.Writer) (*config.Config, string, error) {
	fs := flag.NewFlagSet("serpwalk", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath = fs.String("config", os.Getenv("SERPWALK_CONFIG"), "YAML config file")
		input      = fs.String("input", "", "file with one query per line (required)")
		output     = fs.String("output", "", "output file (default output.txt)")
		format     = fs.String("format", "", "output format: tsv, csv, jsonl or sqlite")
		headless   = fs.Bool("headless", true, "run the browser without a window")
		profileDir = fs.String("profile-dir", "", "persistent browser profile directory")
		prefer     = fs.String("prefer", "", "comma separated preferred result domains")
		strict     = fs.Bool("strict", true, "only accept results on preferred domains")
		follow     = fs.Bool("follow", true, "open the result and extract profile fields")
		delay      = fs.Duration("delay", 0, "minimum delay between queries")
		mode       = fs.String("mode", "", "fetch mode: browser, http or auto")
		dumpDir    = fs.String("dump-dir", "", "write snapshots of blocked and empty pages here")
		logLevel   = fs.String("log-level", "", "debug, info, warn or error")
	)
	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}

	cfg := config.Load()
	if *configPath != "" {
		if err := config.LoadFile(*configPath, cfg); err != nil {
			return nil, "", err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Sink.Path = *output
		case "format":
			cfg.Sink.Format = *format
		case "headless":
			cfg.Browser.Headless = *headless
		case "profile-dir":
			cfg.Browser.ProfileDir = *profileDir
		case "prefer":
			cfg.Search.Prefer = config.SplitList(*prefer)
		case "strict":
			cfg.Search.Strict = *strict
		case "follow":
			cfg.Pipeline.Follow = *follow
		case "delay":
			cfg.Pipeline.InterQueryDelay = *delay
		case "mode":
			cfg.Engine.Mode = *mode
		case "dump-dir":
			cfg.Pipeline.DumpDir = *dumpDir
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})

	if *input == "" {
		return nil, "", errors.New("-input is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, *input, nil
}
