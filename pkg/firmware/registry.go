package firmware

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dougsko/nrfd/pkg/hardware"
)

// Factory builds a firmware instance.
type Factory func(cfg Config, hw hardware.Controller) (Firmware, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a firmware available by name. It panics if the name is
// taken or the factory is nil.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("firmware: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("firmware: Register called twice for " + name)
	}
	registry[name] = factory
}

// New constructs the firmware registered under name.
func New(name string, cfg Config, hw hardware.Controller) (Firmware, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown firmware %q (registered: %v)", name, Names())
	}
	if hw == nil {
		return nil, fmt.Errorf("firmware %s: hardware controller is nil", name)
	}
	return factory(cfg, hw)
}

// Names returns the registered firmware names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
