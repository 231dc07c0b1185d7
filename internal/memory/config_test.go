package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	conf, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), conf)

	typ, err := conf.DefaultType()
	require.NoError(t, err)
	assert.Equal(t, Pooled, typ)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DEVMEM_DEFAULT_ALLOCATOR", "naive")
	t.Setenv("DEVMEM_PAGE_SIZE", "65536")
	t.Setenv("DEVMEM_MAX_POOLED_PER_BUCKET", "8")
	t.Setenv("DEVMEM_MMAP_THRESHOLD", "0")
	t.Setenv("DEVMEM_LOG_LEVEL", "debug")

	conf, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "naive", conf.DefaultAllocator)
	assert.Equal(t, uint64(65536), conf.PageSize)
	assert.Equal(t, 8, conf.MaxPooledPerBucket)
	assert.Equal(t, uint64(0), conf.MmapThreshold)

	logger, err := conf.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"page size not power of two", "DEVMEM_PAGE_SIZE", "3000"},
		{"page size not a number", "DEVMEM_PAGE_SIZE", "big"},
		{"unknown allocator", "DEVMEM_DEFAULT_ALLOCATOR", "arena"},
		{"negative bucket cap", "DEVMEM_MAX_POOLED_PER_BUCKET", "-1"},
		{"bad log level", "DEVMEM_LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestParseAllocatorType(t *testing.T) {
	typ, err := ParseAllocatorType("Pooled")
	require.NoError(t, err)
	assert.Equal(t, Pooled, typ)

	_, err = ParseAllocatorType("slab")
	assert.ErrorIs(t, err, ErrUnknownAllocatorType)

	assert.Equal(t, "naive", Naive.String())
	assert.Equal(t, "AllocatorType(9)", AllocatorType(9).String())
}
