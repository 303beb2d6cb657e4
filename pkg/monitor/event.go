package monitor

// Event is a change in whether an entry's process is running.
type Event int

const (
	// NoChange means the process is in the same state as on the previous
	// poll.
	NoChange Event = iota

	// Started means the process wasn't running on the previous poll, and now
	// is.
	Started

	// Stopped means the process was running on the previous poll, and now
	// isn't.
	Stopped
)

func (e Event) String() string {
	switch e {
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	default:
		return "no change"
	}
}

// DeriveEvent compares the PID seen on the previous poll with the current
// one. A PID of 0 means the process wasn't running. A process that restarts
// between two polls under a new PID is reported as NoChange.
func DeriveEvent(prev, curr int32) Event {
	switch {
	case prev == 0 && curr != 0:
		return Started
	case prev != 0 && curr == 0:
		return Stopped
	default:
		return NoChange
	}
}

// Observe looks up `processName` in `snap`, and returns its current PID
// along with how it changed since `prev`.
func Observe(prev int32, snap Snapshot, processName string) (int32, Event) {
	curr := snap[processName]
	return curr, DeriveEvent(prev, curr)
}
