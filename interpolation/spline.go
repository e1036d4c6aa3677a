// Package interpolation generates smooth references between two robot states.
package interpolation

import (
	"github.com/golang/geo/r3"

	"egm_trajectory/types"
)

// Conditions describe how a segment is to be interpolated.
type Conditions struct {
	// Duration in seconds.
	Duration float64
	Method   Method
	Rotation types.Rotation
}

// Interpolator produces references between a start and goal state.
type Interpolator interface {
	// Update plans a new segment. Slices in goal shorter than in start leave the tail at rest.
	Update(start, goal types.RobotState, c Conditions)
	// Evaluate returns the reference t seconds into the segment. Past the end it holds the goal.
	Evaluate(t float64) types.RobotState
	// Duration of the planned segment.
	Duration() float64
}

// Spline interpolates every channel of a robot state independently.
type Spline struct {
	conditions Conditions
	joints     []segment
	external   []segment
	position   [3]segment
	euler      [3]segment
	quaternion quaternionSegment
}

// NewSpline returns a spline holding the zero state.
func NewSpline() *Spline {
	return &Spline{}
}

// Duration implements Interpolator.
func (s *Spline) Duration() float64 {
	return s.conditions.Duration
}

// Update implements Interpolator.
func (s *Spline) Update(start, goal types.RobotState, c Conditions) {
	s.conditions = c
	T := c.Duration

	s.joints = planJoints(c.Method, start.Joints, goal.Joints, T)
	s.external = planJoints(c.Method, start.External, goal.External, T)

	sp, gp := start.Cartesian.Pose.Normalized(), goal.Cartesian.Pose.Normalized()
	sv, gv := start.Cartesian.Velocity, goal.Cartesian.Velocity
	s.position = [3]segment{
		newSegment(c.Method, sp.Position.X, sv.Linear.X, gp.Position.X, gv.Linear.X, T),
		newSegment(c.Method, sp.Position.Y, sv.Linear.Y, gp.Position.Y, gv.Linear.Y, T),
		newSegment(c.Method, sp.Position.Z, sv.Linear.Z, gp.Position.Z, gv.Linear.Z, T),
	}

	if c.Rotation == types.RotationEuler {
		ge := UnwrapEuler(sp.Euler, gp.Euler)
		s.euler = [3]segment{
			newSegment(c.Method, sp.Euler.Roll, sv.Angular.X, ge.Roll, gv.Angular.X, T),
			newSegment(c.Method, sp.Euler.Pitch, sv.Angular.Y, ge.Pitch, gv.Angular.Y, T),
			newSegment(c.Method, sp.Euler.Yaw, sv.Angular.Z, ge.Yaw, gv.Angular.Z, T),
		}
		return
	}
	s.quaternion = newQuaternionSegment(c.Method, sp.Quaternion, gp.Quaternion, sv.Angular, gv.Angular, T)
}

func planJoints(method Method, start, goal types.JointState, T float64) []segment {
	out := make([]segment, len(start.Position))
	for i, p0 := range start.Position {
		p1, v1 := p0, 0.0
		if i < len(goal.Position) {
			p1 = goal.Position[i]
		}
		if i < len(goal.Velocity) {
			v1 = goal.Velocity[i]
		}
		out[i] = newSegment(method, p0, valueAt(start.Velocity, i), p1, v1, T)
	}
	return out
}

func valueAt(j types.Joints, i int) float64 {
	if i < len(j) {
		return j[i]
	}
	return 0
}

// Evaluate implements Interpolator.
func (s *Spline) Evaluate(t float64) types.RobotState {
	var out types.RobotState
	out.Joints = evaluateJoints(s.joints, t)
	out.External = evaluateJoints(s.external, t)

	var pos, lin r3.Vector
	pos.X, lin.X = s.position[0].at(t)
	pos.Y, lin.Y = s.position[1].at(t)
	pos.Z, lin.Z = s.position[2].at(t)
	out.Cartesian.Velocity.Linear = lin

	if s.conditions.Rotation == types.RotationEuler {
		var e types.Euler
		var ang r3.Vector
		e.Roll, ang.X = s.euler[0].at(t)
		e.Pitch, ang.Y = s.euler[1].at(t)
		e.Yaw, ang.Z = s.euler[2].at(t)
		out.Cartesian.Pose = types.NewPoseFromEuler(pos, e)
		out.Cartesian.Velocity.Angular = ang
		return out
	}
	q, ang := s.quaternion.at(t)
	out.Cartesian.Pose = types.NewPoseFromQuaternion(pos, q)
	out.Cartesian.Velocity.Angular = ang
	return out
}

func evaluateJoints(segments []segment, t float64) types.JointState {
	js := types.JointState{
		Position: make(types.Joints, len(segments)),
		Velocity: make(types.Joints, len(segments)),
	}
	for i, seg := range segments {
		js.Position[i], js.Velocity[i] = seg.at(t)
	}
	return js
}
