// Package registry is a process-wide table of named functions. Device families use it to
// publish allocator factories, and the memory package publishes its bulk clear command.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

var (
	mu    sync.RWMutex
	funcs = make(map[string]any)
)

// Register stores fn under name. Registering an existing name panics
// unless override is true.
func Register(name string, fn any, override bool) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := funcs[name]; exists && !override {
		panic(fmt.Sprintf("registry: %q is already registered", name))
	}
	funcs[name] = fn
}

// Get returns the function registered under name, or nil.
func Get(name string) any {
	mu.RLock()
	defer mu.RUnlock()
	return funcs[name]
}

// Remove deletes name from the registry and reports whether it was present.
func Remove(name string) bool {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := funcs[name]; !exists {
		return false
	}
	delete(funcs, name)
	return true
}

// Names returns the registered names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
