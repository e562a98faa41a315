package tryon

// State is the position of a session in its frame loop.
type State int32

const (
	// StateAwaitingFrame is the state while the session blocks on the camera.
	StateAwaitingFrame State = iota
	// StatePoseDetected is entered when the current frame has a usable pose.
	StatePoseDetected
	// StateNoPose is entered when the current frame has no usable pose.
	StateNoPose
	// StateRendered is entered once the output frame is complete.
	StateRendered
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAwaitingFrame:
		return "awaiting_frame"
	case StatePoseDetected:
		return "pose_detected"
	case StateNoPose:
		return "no_pose"
	case StateRendered:
		return "rendered"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
