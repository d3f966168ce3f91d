package engine

import (
	"sync"
	"time"
)

// domainEntry stores the preferred engine for a host with its expiry.
type domainEntry struct {
	engineName string
	expiresAt  time.Time
}

// DomainMemory remembers which engine last produced an accepted page for
// each host, so later searches skip engines known to fail there.
type DomainMemory struct {
	mu      sync.Mutex
	entries map[string]domainEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewDomainMemory creates a DomainMemory whose entries live for ttl.
// Expired entries are dropped lazily on lookup.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{
		entries: make(map[string]domainEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the remembered engine for host, or "" if none or expired.
// A nil DomainMemory remembers nothing.
func (dm *DomainMemory) Get(host string) string {
	if dm == nil {
		return ""
	}
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

// Set records that engineName succeeded for host.
func (dm *DomainMemory) Set(host, engineName string) {
	if dm == nil {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.entries[host] = domainEntry{
		engineName: engineName,
		expiresAt:  dm.now().Add(dm.ttl),
	}
}

// Delete forgets host, e.g. after the remembered engine fails.
func (dm *DomainMemory) Delete(host string) {
	if dm == nil {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	delete(dm.entries, host)
}
