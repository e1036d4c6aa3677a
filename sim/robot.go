// Package sim provides a simulated robot controller for exercising the trajectory engine
// without hardware.
package sim

import (
	"sync"

	"github.com/golang/geo/r3"

	"egm_trajectory/types"
)

// Robot tracks each reference it is given. With a tracking gain below 1 it lags behind the
// reference like a first-order system.
type Robot struct {
	mu         sync.Mutex
	mode       types.Mode
	state      types.RobotState
	time       float64
	sampleTime float64
	gain       float64
}

// Home is the tool pose of the simulated robot with all joints at zero: in front of the base,
// pointing down.
var Home = types.NewPoseFromEuler(r3.Vector{X: 500, Z: 600}, types.Euler{Roll: 180})

// NewRobot returns a robot at rest with all joints at zero.
func NewRobot(mode types.Mode, sampleTime float64) *Robot {
	home := types.RobotState{
		Joints:    types.JointState{Position: make(types.Joints, 6), Velocity: make(types.Joints, 6)},
		Cartesian: types.CartesianState{Pose: Home},
	}
	return &Robot{mode: mode, state: home, sampleTime: sampleTime, gain: 1}
}

// SetTrackingGain sets how much of the reference error is closed each cycle, in (0, 1].
func (r *Robot) SetTrackingGain(gain float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gain <= 0 || gain > 1 {
		gain = 1
	}
	r.gain = gain
}

// Feedback samples the robot.
func (r *Robot) Feedback() types.Feedback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.Feedback{Mode: r.mode, Time: r.time, Robot: r.state.Clone()}
}

// Apply moves the robot toward out and advances the clock by one sample.
func (r *Robot) Apply(out types.Output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.time += r.sampleTime
	if r.gain == 1 {
		r.state = out.Robot.Clone()
		return
	}
	r.state.Joints = trackJoints(r.state.Joints, out.Robot.Joints, r.gain)
	r.state.External = trackJoints(r.state.External, out.Robot.External, r.gain)

	pose := r.state.Cartesian.Pose
	target := out.Robot.Cartesian.Pose
	pose.Position = pose.Position.Add(target.Position.Sub(pose.Position).Mul(r.gain))
	r.state.Cartesian.Pose = types.NewPoseFromQuaternion(pose.Position, target.Quaternion)
	r.state.Cartesian.Velocity = out.Robot.Cartesian.Velocity
}

func trackJoints(current, target types.JointState, gain float64) types.JointState {
	out := target.Clone()
	for i := range out.Position {
		if i < len(current.Position) {
			out.Position[i] = current.Position[i] + gain*(target.Position[i]-current.Position[i])
		}
	}
	return out
}
