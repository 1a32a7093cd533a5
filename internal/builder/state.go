package builder

// State is a step of one build-or-reuse-then-run invocation
type State int

const (
	StateInit State = iota
	StateIdentityComputed
	StateCacheFresh
	StateCacheStale
	StateAssemble
	StateCompile
	StateCommit
	StateRun
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIdentityComputed:
		return "identity-computed"
	case StateCacheFresh:
		return "cache-fresh"
	case StateCacheStale:
		return "cache-stale"
	case StateAssemble:
		return "assemble"
	case StateCompile:
		return "compile"
	case StateCommit:
		return "commit"
	case StateRun:
		return "run"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
