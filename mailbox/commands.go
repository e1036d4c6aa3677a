package mailbox

import (
	"fmt"

	"egm_trajectory/types"
)

// Command is one supervisory request for the control cycle.
type Command interface {
	fmt.Stringer
	apply(p *PendingCommands)
}

// Stop ramps the robot down, optionally discarding all queued trajectories.
type Stop struct {
	Discard bool
}

func (c Stop) String() string { return fmt.Sprintf("stop(discard=%t)", c.Discard) }

func (c Stop) apply(p *PendingCommands) {
	p.Stop = true
	p.Discard = p.Discard || c.Discard
}

// Resume continues trajectory execution after a stop.
type Resume struct{}

func (Resume) String() string { return "resume" }

func (Resume) apply(p *PendingCommands) { p.Resume = true }

// RampDown brings the current motion to rest at the current reference without braking ahead.
type RampDown struct{}

func (RampDown) String() string { return "ramp_down" }

func (RampDown) apply(p *PendingCommands) { p.RampDown = true }

// UpdateDurationFactor scales the duration of the goal in flight and all later goals.
type UpdateDurationFactor struct {
	Factor float64
}

func (c UpdateDurationFactor) String() string { return fmt.Sprintf("duration_factor(%.3f)", c.Factor) }

func (c UpdateDurationFactor) apply(p *PendingCommands) {
	p.DurationFactorUpdate = true
	p.DurationFactor = c.Factor
}

// StartStaticGoal switches from trajectory execution to static goals.
type StartStaticGoal struct {
	Discard bool
}

func (c StartStaticGoal) String() string { return fmt.Sprintf("start_static_goal(discard=%t)", c.Discard) }

func (c StartStaticGoal) apply(p *PendingCommands) {
	p.StaticGoalStart = true
	p.Discard = p.Discard || c.Discard
}

// SetStaticPositionGoal replaces the static goal with a position target.
type SetStaticPositionGoal struct {
	Goal types.StaticPositionGoal
	Fast bool
}

func (c SetStaticPositionGoal) String() string {
	return fmt.Sprintf("static_position_goal(fast=%t)", c.Fast)
}

func (c SetStaticPositionGoal) apply(p *PendingCommands) {
	p.StaticPositionGoalUpdate = true
	p.StaticVelocityGoalUpdate = false
	p.StaticPositionGoal = c.Goal.Clone()
	p.StaticGoalFastUpdate = c.Fast
}

// SetStaticVelocityGoal replaces the static goal with a velocity target.
type SetStaticVelocityGoal struct {
	Goal types.StaticVelocityGoal
	Fast bool
}

func (c SetStaticVelocityGoal) String() string {
	return fmt.Sprintf("static_velocity_goal(fast=%t)", c.Fast)
}

func (c SetStaticVelocityGoal) apply(p *PendingCommands) {
	p.StaticVelocityGoalUpdate = true
	p.StaticPositionGoalUpdate = false
	p.StaticVelocityGoal = c.Goal.Clone()
	p.StaticGoalFastUpdate = c.Fast
}

// FinishStaticGoal ramps static motion down, optionally resuming trajectory execution afterwards.
type FinishStaticGoal struct {
	Resume bool
}

func (c FinishStaticGoal) String() string { return fmt.Sprintf("finish_static_goal(resume=%t)", c.Resume) }

func (c FinishStaticGoal) apply(p *PendingCommands) {
	p.StaticGoalFinish = true
	p.RampDown = true
	p.Resume = p.Resume || c.Resume
}
