package cort

// lifecycleState represents the Thread lifecycle API's current phase.
//
// State Machine:
//
//	Awake (0) → Running (3)        [Init() succeeds]
//	Running (3) → Sleeping (2)     [about to block in the multiplexer]
//	Sleeping (2) → Running (3)     [multiplexer returned]
//	Running/Sleeping → Terminating (4) [Destroy() called]
//	Terminating (4) → Terminated (1) [teardown complete]
//
// Unlike a concurrently-submittable loop, a Core runs on exactly one
// goroutine with no cross-thread mutation (§5: "per-thread state is
// never locked"), so transitions are plain field assignments — there is
// no CAS here, and there should never need to be one.
type lifecycleState uint8

const (
	stateAwake lifecycleState = iota
	stateTerminated
	stateSleeping
	stateRunning
	stateTerminating
)

func (s lifecycleState) String() string {
	switch s {
	case stateAwake:
		return "Awake"
	case stateRunning:
		return "Running"
	case stateSleeping:
		return "Sleeping"
	case stateTerminating:
		return "Terminating"
	case stateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}
