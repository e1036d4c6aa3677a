package motion

// State is the top-level execution state.
type State int

const (
	// StateNormal executes queued trajectories.
	StateNormal State = iota
	// StateRampDown brings the robot to rest.
	StateRampDown
	// StateStaticGoal follows static position or velocity goals.
	StateStaticGoal
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateRampDown:
		return "ramp_down"
	case StateStaticGoal:
		return "static_goal"
	default:
		return "unknown"
	}
}

// SubState is the progress within a State. StateNormal has no sub-state.
type SubState int

const (
	// SubStateNone is the sub-state of StateNormal.
	SubStateNone SubState = iota
	// SubStateRunning is set while the state's goal is being interpolated.
	SubStateRunning
	// SubStateFinished is set once the goal's duration has elapsed.
	SubStateFinished
)

func (s SubState) String() string {
	switch s {
	case SubStateNone:
		return "none"
	case SubStateRunning:
		return "running"
	case SubStateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// ExecutionState is a valid (State, SubState) pair.
type ExecutionState int

const (
	// Normal executes queued trajectory points.
	Normal ExecutionState = iota
	// RampDownRunning brings the robot to rest.
	RampDownRunning
	// RampDownFinished holds the robot at rest until resumed.
	RampDownFinished
	// StaticGoalRunning moves toward a static position or velocity goal.
	StaticGoalRunning
	// StaticGoalFinished holds the static goal.
	StaticGoalFinished
)

// State returns the top-level state.
func (e ExecutionState) State() State {
	switch e {
	case RampDownRunning, RampDownFinished:
		return StateRampDown
	case StaticGoalRunning, StaticGoalFinished:
		return StateStaticGoal
	default:
		return StateNormal
	}
}

// SubState returns the progress within the state.
func (e ExecutionState) SubState() SubState {
	switch e {
	case RampDownRunning, StaticGoalRunning:
		return SubStateRunning
	case RampDownFinished, StaticGoalFinished:
		return SubStateFinished
	default:
		return SubStateNone
	}
}

func (e ExecutionState) String() string {
	if e == Normal {
		return e.State().String()
	}
	return e.State().String() + "/" + e.SubState().String()
}
