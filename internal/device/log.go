package device

import (
	"github.com/born-ml/devmem/internal/tensor"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

// UseLogger sets the logger used by device APIs.
func UseLogger(zapLogger *zap.Logger) {
	logger = zapLogger.Named("device")
}

func zapDeviceType(t tensor.DeviceType) zap.Field {
	return zap.Stringer("device-type", t)
}
