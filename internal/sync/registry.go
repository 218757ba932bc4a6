// Package sync implements the record synchronization pipeline: record-type
// dispatch, the multi-store upsert engine, the document mirror, and the
// reset/refresh admin operations.
package sync

import (
	"fmt"
	"sort"
	gosync "sync"
)

// TypeConfig maps a record type to its target resources. The mapping is
// static configuration registered at startup, never derived at runtime.
type TypeConfig struct {
	Key          string // record type name: "match"
	SnapshotName string // snapshot object name: "match.csv"
	RawPrefix    string // raw archive name prefix: "raw/match"
	Collection   string // document mirror collection: "match"
}

// RawName returns the archive object name for one record's raw payload.
func (c TypeConfig) RawName(key string) string {
	return c.RawPrefix + "/" + key + ".json"
}

var (
	registry   = make(map[string]TypeConfig)
	registryMu gosync.RWMutex
)

// Register adds a record type to the registry.
// Panics if the type is already registered or misconfigured.
func Register(cfg TypeConfig) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if cfg.Key == "" || cfg.SnapshotName == "" || cfg.RawPrefix == "" || cfg.Collection == "" {
		panic(fmt.Sprintf("incomplete record type config: %+v", cfg))
	}
	if _, exists := registry[cfg.Key]; exists {
		panic(fmt.Sprintf("record type already registered: %s", cfg.Key))
	}
	registry[cfg.Key] = cfg
}

// Lookup returns a record type's configuration.
// Returns false if the type is not registered.
func Lookup(key string) (TypeConfig, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	cfg, ok := registry[key]
	return cfg, ok
}

// All returns every registered record type, sorted by key.
func All() []TypeConfig {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TypeConfig, 0, len(registry))
	for _, cfg := range registry {
		result = append(result, cfg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// TypeCount returns the number of registered record types.
func TypeCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// ClearRegistry removes all registered types.
// Primarily useful for testing.
func ClearRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TypeConfig)
}
