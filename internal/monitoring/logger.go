package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// verbose gates Verbosef. Topology and voxelization progress logging is noisy
// at scale, so it is off unless a caller opts in.
var verbose bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose enables or disables Verbosef output.
func SetVerbose(v bool) {
	verbose = v
}

// Verbose reports whether verbose diagnostics are enabled.
func Verbose() bool {
	return verbose
}

// Verbosef logs through Logf only when verbose diagnostics are enabled.
func Verbosef(format string, v ...interface{}) {
	if verbose {
		Logf(format, v...)
	}
}
