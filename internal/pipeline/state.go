package pipeline

import "sync/atomic"

// State is the lifecycle of a run:
//
//	Idle → Running → Draining → Completed | Failed
//
// Draining starts when the source stops producing. Completed is only
// reached after a successful flush; any stage error ends in Failed.
type State int32

const (
	Idle State = iota
	Running
	Draining
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Completed || s == Failed }

type stateBox struct{ v atomic.Int32 }

func (b *stateBox) load() State { return State(b.v.Load()) }

// advance moves from -> to and reports whether the transition happened.
func (b *stateBox) advance(from, to State) bool {
	return b.v.CompareAndSwap(int32(from), int32(to))
}

// finish moves any non-terminal state to Completed or Failed.
func (b *stateBox) finish(err error) State {
	to := Completed
	if err != nil {
		to = Failed
	}
	for {
		cur := b.load()
		if cur.Terminal() {
			return cur
		}
		if b.advance(cur, to) {
			return to
		}
	}
}
