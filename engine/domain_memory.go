package engine

import (
	"sync"
	"time"
)

type memoryEntry struct {
	engineName string
	expiresAt  time.Time
}

// DomainMemory remembers which engine last produced an accepted page for a
// host, so later queries against the same host skip engines that failed.
type DomainMemory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	stop    sync.Once
}

// NewDomainMemory creates a DomainMemory whose entries live for ttl and
// starts a goroutine pruning expired entries until Stop.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	dm := &DomainMemory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go dm.cleanupLoop()
	return dm
}

// Get returns the remembered engine for host, or "" if none or expired.
func (dm *DomainMemory) Get(host string) string {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	entry, ok := dm.entries[host]
	if !ok {
		return ""
	}
	if dm.now().After(entry.expiresAt) {
		delete(dm.entries, host)
		return ""
	}
	return entry.engineName
}

// Set records the engine that succeeded for host.
func (dm *DomainMemory) Set(host, engineName string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.entries[host] = memoryEntry{engineName: engineName, expiresAt: dm.now().Add(dm.ttl)}
}

// Delete forgets host.
func (dm *DomainMemory) Delete(host string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	delete(dm.entries, host)
}

// Stop terminates the cleanup goroutine. It is safe to call more than once.
func (dm *DomainMemory) Stop() {
	dm.stop.Do(func() { close(dm.done) })
}

func (dm *DomainMemory) prune() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	now := dm.now()
	for host, entry := range dm.entries {
		if now.After(entry.expiresAt) {
			delete(dm.entries, host)
		}
	}
}

func (dm *DomainMemory) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-dm.done:
			return
		case <-ticker.C:
			dm.prune()
		}
	}
}
