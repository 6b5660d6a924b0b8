package destination

import "sync"

// TkoTracker classifies destinations as knocked out based on recent failure
// history. A destination becomes a hard knockout on a connect-level failure
// and a soft knockout after failureLimit consecutive soft failures; any
// success clears it. The stats subsystem only consumes the query surface;
// the routing layer drives the recording side.
type TkoTracker struct {
	failureLimit uint32

	mu    sync.RWMutex
	hosts map[string]*tkoEntry
}

type tkoEntry struct {
	failures uint32
	hard     bool
}

// Suspect describes one knockout candidate for the suspect-servers report.
type Suspect struct {
	Hard     bool
	Failures uint32
}

// NewTkoTracker creates a tracker that soft-knocks a destination out after
// failureLimit consecutive failures.
func NewTkoTracker(failureLimit uint32) *TkoTracker {
	if failureLimit == 0 {
		failureLimit = 3
	}
	return &TkoTracker{
		failureLimit: failureLimit,
		hosts:        make(map[string]*tkoEntry),
	}
}

// RecordSuccess clears any knockout state for the destination.
func (t *TkoTracker) RecordSuccess(key string) {
	t.mu.Lock()
	delete(t.hosts, key)
	t.mu.Unlock()
}

// RecordSoftFailure counts one failed reply against the destination.
func (t *TkoTracker) RecordSoftFailure(key string) {
	t.mu.Lock()
	e := t.hosts[key]
	if e == nil {
		e = &tkoEntry{}
		t.hosts[key] = e
	}
	e.failures++
	t.mu.Unlock()
}

// RecordHardFailure marks the destination unreachable immediately.
func (t *TkoTracker) RecordHardFailure(key string) {
	t.mu.Lock()
	e := t.hosts[key]
	if e == nil {
		e = &tkoEntry{}
		t.hosts[key] = e
	}
	e.failures++
	e.hard = true
	t.mu.Unlock()
}

// IsHardTko reports whether the destination is a hard knockout.
func (t *TkoTracker) IsHardTko(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e := t.hosts[key]
	return e != nil && e.hard
}

// IsSoftTko reports whether the destination has crossed the soft failure
// limit without being hard knocked out.
func (t *TkoTracker) IsSoftTko(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e := t.hosts[key]
	return e != nil && !e.hard && e.failures >= t.failureLimit
}

// SuspectServers returns every destination with recorded failures, with its
// classification and failure count.
func (t *TkoTracker) SuspectServers() map[string]Suspect {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Suspect, len(t.hosts))
	for key, e := range t.hosts {
		out[key] = Suspect{
			Hard:     e.hard || e.failures >= t.failureLimit,
			Failures: e.failures,
		}
	}
	return out
}

// SuspectCount returns the number of destinations with recorded failures.
func (t *TkoTracker) SuspectCount() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint64(len(t.hosts))
}
