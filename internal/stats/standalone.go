package stats

import "sync/atomic"

// gStandaloneArgs holds the startup command line, set exactly once before
// the first stats query and read without synchronization thereafter.
var gStandaloneArgs atomic.Pointer[string]

// SetStandaloneArgs records the process arguments for the commandargs stat.
// Calling it twice is a programming error.
func SetStandaloneArgs(args string) {
	if !gStandaloneArgs.CompareAndSwap(nil, &args) {
		panic("stats: standalone args already set")
	}
}

// StandaloneArgs returns the recorded startup arguments, or "" before
// SetStandaloneArgs runs.
func StandaloneArgs() string {
	if p := gStandaloneArgs.Load(); p != nil {
		return *p
	}
	return ""
}

// resetStandaloneArgs exists for tests only.
func resetStandaloneArgs() {
	gStandaloneArgs.Store(nil)
}
