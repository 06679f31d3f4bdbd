// Package shutdown runs named cleanup hooks, newest first, once a
// termination signal arrives or the caller's context ends.
package shutdown
