// Package invariant panics on conditions that spec.md §7 classifies as
// programming errors rather than runtime conditions — invalid frame
// identifiers, corrupt page-table state, and the like. These are
// abort-class failures: the caller asked the core to do something the
// core's own bookkeeping says is impossible, and recovering silently
// would paper over the bug instead of surfacing it.
//
// Grounded on Blackdeer1524-GraphDB's pkg/assert package (referenced
// throughout src/txns as assert.Assert(cond, msg)), reproduced here
// since the pack's retrieval filter didn't carry that package's own
// source alongside its call sites.
package invariant

import "fmt"

// Check panics with msg if cond is false.
func Check(cond bool, msg string) {
	if !cond {
		panic("invariant violated: " + msg)
	}
}

// Checkf panics with a formatted message if cond is false.
func Checkf(cond bool, format string, args ...any) {
	if !cond {
		panic("invariant violated: " + fmt.Sprintf(format, args...))
	}
}
