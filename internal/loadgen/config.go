// Package loadgen drives synthetic traffic against a running diarisk service
// and checks the history it returns.
package loadgen

import (
	"fmt"
	"runtime"
	"time"
)

// Defaults for a load run.
const (
	DefaultBaseURL            = "http://localhost:9080"
	DefaultUsers              = 100
	DefaultSubmissionsPerUser = 10
	DefaultHistoryLimit       = 100
	DefaultTimeout            = 30 * time.Second
	workerChannelMultiplier   = 2
	percentageMultiplier      = 100
)

// Config holds the parameters of one load run.
type Config struct {
	BaseURL            string        // Base URL of the service
	Users              int           // Number of synthetic users
	SubmissionsPerUser int           // Assessments submitted per user
	Workers            int           // Number of concurrent workers
	HistoryLimit       int           // limit passed to the history endpoint
	Timeout            time.Duration // HTTP request timeout
	Seed               uint64        // Profile generator seed; zero picks one from the clock
	Mix                Mix           // Relative weights of the profile kinds
	OutputFile         string        // Optional JSON dump of the generated submissions
	Verbose            bool          // Log every violation and failed request
}

// NewConfig returns a config with defaults applied.
func NewConfig() *Config {
	return &Config{
		BaseURL:            DefaultBaseURL,
		Users:              DefaultUsers,
		SubmissionsPerUser: DefaultSubmissionsPerUser,
		Workers:            runtime.NumCPU() * workerChannelMultiplier,
		HistoryLimit:       DefaultHistoryLimit,
		Timeout:            DefaultTimeout,
		Mix:                DefaultMix(),
	}
}

// Validate rejects configs that cannot produce a run.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Users <= 0:
		return fmt.Errorf("%w: users must be positive", ErrInvalidConfig)
	case c.SubmissionsPerUser <= 0:
		return fmt.Errorf("%w: submissions per user must be positive", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.HistoryLimit <= 0:
		return fmt.Errorf("%w: history limit must be positive", ErrInvalidConfig)
	case c.Mix.total() <= 0:
		return fmt.Errorf("%w: profile mix must have a positive weight", ErrInvalidConfig)
	}
	return nil
}

// Stats holds the counters of one run.
type Stats struct {
	Generated     int
	Submitted     int
	Accepted      int
	Duplicate     int
	Failed        int
	UsersVerified int
	Violations    int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}

// SuccessRate is the share of submissions that were accepted, in percent.
func (s Stats) SuccessRate() float64 {
	if s.Submitted == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Submitted) * percentageMultiplier
}
