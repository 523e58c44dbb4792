package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/diarisk/internal/loadgen"
	"github.com/okian/diarisk/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	cfg := loadgen.NewConfig()
	var (
		mix     = flag.String("mix", "low=4,medium=3,high=2,degenerate=1", "Profile mix as kind=weight pairs")
		logFmt  = flag.String("log-format", "text", "Log format: text or json")
		timeout = flag.Duration("run-timeout", defaultRunTimeout, "Upper bound for the whole run")
	)
	flag.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Base URL of the service")
	flag.IntVar(&cfg.Users, "users", cfg.Users, "Number of synthetic users")
	flag.IntVar(&cfg.SubmissionsPerUser, "per-user", cfg.SubmissionsPerUser, "Assessments submitted per user")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of concurrent workers")
	flag.IntVar(&cfg.HistoryLimit, "history-limit", cfg.HistoryLimit, "limit passed to the history endpoint")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	flag.Uint64Var(&cfg.Seed, "seed", 0, "Profile generator seed (0 picks one from the clock)")
	flag.StringVar(&cfg.OutputFile, "output", "", "Write the generated submissions to this JSON file")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Log every failed request and violation")
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*logFmt)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	m, err := loadgen.ParseMix(*mix)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	cfg.Mix = m

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if _, err := loadgen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
}
