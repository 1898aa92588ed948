package resource

import (
	"runtime"
	"sync"
)

// MemoryManager performs advisory soft-ceiling checks on process heap usage.
// It is consulted once per analysis cycle, not per allocation.
type MemoryManager struct {
	mu        sync.Mutex
	ceilingMB float64
	cleanups  int
	readStats func() float64 // heap usage in MB, replaceable for tests
}

// NewMemoryManager creates a manager with the given ceiling in MB
func NewMemoryManager(ceilingMB float64) *MemoryManager {
	return &MemoryManager{
		ceilingMB: ceilingMB,
		readStats: heapAllocMB,
	}
}

func heapAllocMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / (1024 * 1024)
}

// Check reports whether heap usage exceeds the ceiling and the current usage
func (mm *MemoryManager) Check() (overLimit bool, usedMB float64) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	used := mm.readStats()
	return used > mm.ceilingMB, used
}

// ForceCleanup triggers a collection pass and recounts
func (mm *MemoryManager) ForceCleanup() (usedMB float64) {
	runtime.GC()

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.cleanups++
	return mm.readStats()
}

// SetCeiling updates the soft ceiling
func (mm *MemoryManager) SetCeiling(ceilingMB float64) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.ceilingMB = ceilingMB
}

// Stats returns usage diagnostics
func (mm *MemoryManager) Stats() map[string]interface{} {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	return map[string]interface{}{
		"ceiling_mb": mm.ceilingMB,
		"used_mb":    mm.readStats(),
		"cleanups":   mm.cleanups,
	}
}

// SetReader overrides the usage reader for tests
func (mm *MemoryManager) SetReader(reader func() float64) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.readStats = reader
}
