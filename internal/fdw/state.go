package fdw

// State is the scan lifecycle position of an Adapter.
type State int

// Scan states. Failed and Exhausted return to Unstarted only through EndScan.
const (
	StateUnstarted State = iota
	StateFetching
	StateReady
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
