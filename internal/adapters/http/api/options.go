package api

// Defaults for request limits.
const (
	DefaultHistoryLimit = 20
	DefaultMaxLimit     = 100
	DefaultMaxBodyBytes = 5 << 20
)

type config struct {
	defaultLimit int
	maxLimit     int
	maxBodyBytes int64
}

func defaultConfig() config {
	return config{
		defaultLimit: DefaultHistoryLimit,
		maxLimit:     DefaultMaxLimit,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Option applies a configuration option to the Server.
type Option func(*config)

// WithMaxHistoryLimit caps the limit accepted by the history endpoint.
func WithMaxHistoryLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxLimit = n
			if c.defaultLimit > n {
				c.defaultLimit = n
			}
		}
	}
}

// WithMaxBodyBytes caps the size of dataset uploads.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}
