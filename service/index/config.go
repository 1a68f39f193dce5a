package index

// Config contains optional parameters for the index reader.
type Config struct {
	CacheSize int64
}

// DefaultConfig is the default configuration for the index reader.
var DefaultConfig = Config{
	CacheSize: 64 << 20,
}

// Option is an option to configure the index reader.
type Option func(*Config)

// WithCacheSize configures the amount of memory the transaction cache of the
// reader may use, in bytes. A size of zero disables the cache.
func WithCacheSize(size int64) Option {
	return func(cfg *Config) {
		cfg.CacheSize = size
	}
}
