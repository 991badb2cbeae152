package poolalloc

import "github.com/orizon-lang/poolalloc/internal/mem"

// Config controls optional allocator behavior. The zero value is not
// usable; obtain one through defaultConfig and the Option functions.
type Config struct {
	EnableDebug    bool
	EnableTracking bool
	Backend        mem.Backend
}

// Option mutates a Config during construction.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		EnableDebug:    false,
		EnableTracking: true,
		Backend:        mem.System(),
	}
}

// WithDebugChecks enables misuse detection: foreign pointers, double
// frees, and multi-slot requests panic. Without it, foreign pointers are
// ignored, double frees go undetected, multi-slot allocations return an
// error, and multi-slot frees are ignored.
func WithDebugChecks(enable bool) Option {
	return func(c *Config) { c.EnableDebug = enable }
}

// WithTracking toggles the allocation counters behind Stats.
func WithTracking(enable bool) Option {
	return func(c *Config) { c.EnableTracking = enable }
}

// WithBackend overrides the block storage backend. The default is the
// platform mapping backend; tests use mem.Heap.
func WithBackend(b mem.Backend) Option {
	return func(c *Config) {
		if b != nil {
			c.Backend = b
		}
	}
}
