package memory

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// envPrefix is the prefix of environment variables read by LoadConfig.
const envPrefix = "DEVMEM"

// Config holds allocator tunables.
type Config struct {
	// DefaultAllocator selects the policy used by callers that do not pick one.
	DefaultAllocator string `envconfig:"DEFAULT_ALLOCATOR" default:"pooled"`
	// PageSize is the granularity pooled allocations are rounded up to.
	PageSize uint64 `envconfig:"PAGE_SIZE" default:"4096"`
	// MaxPooledPerBucket caps cached buffers per (size, alignment) bucket.
	MaxPooledPerBucket int `envconfig:"MAX_POOLED_PER_BUCKET" default:"100"`
	// MmapThreshold is the host allocation size from which memory is mapped; 0 disables.
	MmapThreshold uint64 `envconfig:"MMAP_THRESHOLD" default:"1048576"`
	// LogLevel is the zap level of the logger installed by Logger.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DefaultAllocator:   "pooled",
		PageSize:           defaultPageSize,
		MaxPooledPerBucket: defaultMaxPooled,
		MmapThreshold:      1 << 20,
		LogLevel:           "info",
	}
}

// LoadConfig reads DEVMEM_* environment variables over the defaults.
func LoadConfig() (Config, error) {
	conf := DefaultConfig()
	if err := envconfig.Process(envPrefix, &conf); err != nil {
		return conf, fmt.Errorf("failed to process config env vars: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

// Validate checks the config for values the allocators cannot work with.
func (c Config) Validate() error {
	if c.PageSize == 0 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("config: page size %d is not a power of two", c.PageSize)
	}
	if c.MaxPooledPerBucket < 0 {
		return fmt.Errorf("config: max pooled per bucket %d is negative", c.MaxPooledPerBucket)
	}
	if _, err := c.DefaultType(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// DefaultType parses DefaultAllocator.
func (c Config) DefaultType() (AllocatorType, error) {
	return ParseAllocatorType(c.DefaultAllocator)
}

// Logger builds a production zap logger at LogLevel.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
