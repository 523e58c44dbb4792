package repository

import "time"

const (
	defaultBoltTimeout     = time.Second
	defaultMongoCollection = "predictions"
)

type config struct {
	now             func() time.Time
	boltTimeout     time.Duration
	mongoCollection string
}

func newConfig(opts []Option) config {
	c := config{
		now:             time.Now,
		boltTimeout:     defaultBoltTimeout,
		mongoCollection: defaultMongoCollection,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option applies a configuration option to a Store.
type Option func(*config)

// WithClock sets the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithBoltTimeout sets how long opening a locked bolt file may wait.
func WithBoltTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.boltTimeout = d
		}
	}
}

// WithMongoCollection overrides the collection holding assessments.
func WithMongoCollection(name string) Option {
	return func(c *config) {
		if name != "" {
			c.mongoCollection = name
		}
	}
}
