package memory

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/born-ml/devmem/internal/device"
	"github.com/born-ml/devmem/internal/tensor"
	"github.com/stretchr/testify/require"
)

// useMockDevice registers a fresh mock API for family typ for the duration of the test.
func useMockDevice(t *testing.T, typ tensor.DeviceType, scopes ...string) (*device.MockAPI, tensor.Device) {
	t.Helper()
	mock := device.NewMockAPI(scopes...)
	device.Register(typ, mock)
	t.Cleanup(func() { device.Unregister(typ) })
	return mock, tensor.Device{Type: typ}
}

// recoverError runs fn and returns the error it panicked with, or nil.
func recoverError(t *testing.T, fn func()) (err error) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e, ok := r.(error)
		require.True(t, ok, "panic value %v (%T) is not an error", r, r)
		err = e
	}()
	fn()
	return nil
}

// requirePanicsIs asserts that fn panics with an error matching target.
func requirePanicsIs(t *testing.T, target error, fn func()) error {
	t.Helper()
	err := recoverError(t, fn)
	require.Error(t, err, "expected panic with %v", target)
	require.True(t, errors.Is(err, target), "got %v, want %v", err, target)
	return err
}

// countingAllocator records Free calls made to the wrapped allocator.
type countingAllocator struct {
	Allocator
	frees atomic.Int32
	last  atomic.Pointer[Buffer]
}

func (c *countingAllocator) Free(buf Buffer) {
	c.frees.Add(1)
	c.last.Store(&buf)
	c.Allocator.Free(buf)
}
