package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/diarisk/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes a complete load run: health check, generation, concurrent
// submission and history verification. The returned stats are filled even
// when verification fails.
func Run(ctx context.Context, cfg *Config) (Stats, error) {
	stats := Stats{StartTime: time.Now()}
	if err := cfg.Validate(); err != nil {
		return stats, err
	}
	log := logger.Get().Named("loadgen")

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("submissionsPerUser", cfg.SubmissionsPerUser),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, err
	}

	subs := NewGenerator(cfg.Seed, cfg.Mix).Generate(cfg.Users, cfg.SubmissionsPerUser)
	stats.Generated = len(subs)
	if cfg.OutputFile != "" {
		if err := saveSubmissions(cfg.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		}
	}

	accepted := submitAll(ctx, client, cfg, subs, &stats)
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	violations := verifyAll(ctx, client, cfg, accepted, &stats)
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)

	if violations > 0 {
		return stats, fmt.Errorf("%w: %d violations", ErrVerification, violations)
	}
	log.Info(ctx, "load run completed")
	return stats, nil
}

// submitAll posts every submission through a worker pool and returns the
// accepted count per user.
func submitAll(ctx context.Context, client *Client, cfg *Config, subs []Submission, stats *Stats) map[string]int {
	log := logger.Get().Named("loadgen")
	var (
		submitted  int64
		successful int64
		duplicate  int64
		failed     int64
		mu         sync.Mutex
		accepted   = make(map[string]int, cfg.Users)
	)

	ch := make(chan Submission, cfg.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range ch {
				outcome, _, err := client.Submit(ctx, s)
				atomic.AddInt64(&submitted, 1)
				switch outcome {
				case OutcomeAccepted:
					atomic.AddInt64(&successful, 1)
					mu.Lock()
					accepted[s.UserID]++
					mu.Unlock()
				case OutcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
					if cfg.Verbose {
						log.Warn(ctx, "submission failed", logger.String("userID", s.UserID), logger.Error(err))
					}
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, s := range subs {
			select {
			case <-ctx.Done():
				return
			case ch <- s:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted)
	stats.Accepted = int(successful)
	stats.Duplicate = int(duplicate)
	stats.Failed = int(failed)
	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed))
	return accepted
}

// verifyAll fetches each user's history and counts invariant violations.
func verifyAll(ctx context.Context, client *Client, cfg *Config, accepted map[string]int, stats *Stats) int {
	log := logger.Get().Named("loadgen")
	var (
		verified   int64
		violations int64
	)

	users := make(chan string, cfg.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range users {
				items, err := client.History(ctx, userID, cfg.HistoryLimit)
				if err != nil {
					atomic.AddInt64(&violations, 1)
					log.Warn(ctx, "history fetch failed", logger.String("userID", userID), logger.Error(err))
					continue
				}
				want := min(accepted[userID], cfg.HistoryLimit)
				problems := VerifyHistory(userID, items, want)
				atomic.AddInt64(&verified, 1)
				atomic.AddInt64(&violations, int64(len(problems)))
				if cfg.Verbose {
					for _, p := range problems {
						log.Warn(ctx, "history violation", logger.String("detail", p))
					}
				}
			}
		}()
	}

	go func() {
		defer close(users)
		for userID := range accepted {
			select {
			case <-ctx.Done():
				return
			case users <- userID:
			}
		}
	}()
	wg.Wait()

	stats.UsersVerified = int(verified)
	stats.Violations = int(violations)
	return stats.Violations
}

func saveSubmissions(path string, subs []Submission) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal submissions: %w", err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("failed to write submissions: %w", err)
	}
	return nil
}

func logStats(ctx context.Context, log logger.Logger, stats Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("usersVerified", stats.UsersVerified),
		logger.Int("violations", stats.Violations),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", stats.SuccessRate()),
		logger.Float64("submissionsPerSecond", perSecond))
}
