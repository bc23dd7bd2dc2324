// Package monitoring carries the shared diagnostic logger for the
// voxelization pipeline. Components log through Logf with a bracketed
// prefix naming the component, e.g. "[GridDB] ..." or "[Batch] ...".
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be swapped out with SetLogger to mute or capture output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil argument installs a no-op
// logger rather than leaving Logf nil.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
