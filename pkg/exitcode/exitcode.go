// Package exitcode provides standardized exit codes for tplsync
package exitcode

// Exit codes for the tplsync CLI.
//
// The contract with CI callers: 0 means nothing to do or a clean apply,
// 1 means conflicts or per-file errors need human action, 2 means the run
// could not proceed at all (corrupt lockfile, unresolvable template ref).
const (
	Success   = 0
	Conflicts = 1
	Fatal     = 2
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case Conflicts:
		return "Conflicts or errors require human action"
	case Fatal:
		return "Fatal error"
	default:
		return "Unknown error"
	}
}
