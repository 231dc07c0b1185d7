package memory

import (
	"github.com/born-ml/devmem/internal/tensor"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

// UseLogger sets the logger used by allocators and the manager.
func UseLogger(zapLogger *zap.Logger) {
	logger = zapLogger.Named("memory")
}

func deviceField(dev tensor.Device) zap.Field {
	return zap.Stringer("device", dev)
}

func typeField(t AllocatorType) zap.Field {
	return zap.Stringer("allocator-type", t)
}
