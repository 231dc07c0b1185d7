// Package main provides the devmem CLI.
package main

import (
	"fmt"
	"os"

	"github.com/born-ml/devmem/device"
	"github.com/born-ml/devmem/internal/registry"
	"github.com/born-ml/devmem/memory"
	"github.com/born-ml/devmem/tensor"
	"go.uber.org/zap"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("devmem %s\n", version)
	case "config":
		os.Exit(showConfig())
	case "clear":
		os.Exit(clearAll())
	case "commands":
		for _, name := range registry.Names() {
			fmt.Println(name)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("devmem - device memory allocators for tensor buffers")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  config     Show the effective DEVMEM_* configuration")
	fmt.Println("  clear      Warm the host allocators and drop their caches")
	fmt.Println("  commands   List registered allocator factories and commands")
}

func showConfig() int {
	conf, err := memory.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	fmt.Printf("default allocator:      %s\n", conf.DefaultAllocator)
	fmt.Printf("page size:              %d\n", conf.PageSize)
	fmt.Printf("max pooled per bucket:  %d\n", conf.MaxPooledPerBucket)
	fmt.Printf("mmap threshold:         %d\n", conf.MmapThreshold)
	fmt.Printf("log level:              %s\n", conf.LogLevel)
	return 0
}

func clearAll() int {
	conf, err := memory.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}
	logger, err := conf.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	memory.UseLogger(logger)
	device.UseLogger(logger)

	dev := tensor.CPUDevice(0)
	alloc := memory.GetOrCreateAllocator(dev, memory.Pooled)
	x := memory.Empty(alloc, tensor.Shape{256, 256}, tensor.Float32, dev, "")
	x.Release()

	for _, info := range memory.Global().Allocators() {
		logger.Info("allocator",
			zap.Stringer("device", info.Device),
			zap.Stringer("type", info.Type),
			zap.Uint64("used-bytes", info.Allocator.UsedMemory()))
	}

	clearFn, ok := registry.Get(memory.ClearCommand).(func() error)
	if !ok {
		logger.Error("clear command not registered", zap.String("name", memory.ClearCommand))
		return 1
	}
	if err := clearFn(); err != nil {
		logger.Error("clear failed", zap.Error(err))
		return 1
	}

	if api, ok := device.Lookup(dev); ok {
		if host, ok := api.(*device.HostAPI); ok {
			stats := host.Stats()
			logger.Info("host memory after clear",
				zap.Int("live", stats.Live),
				zap.Uint64("live-bytes", stats.LiveBytes))
		}
	}
	return 0
}
