package interpolation

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/num/quat"

	"egm_trajectory/types"
)

func jointState(pos ...float64) types.RobotState {
	return types.RobotState{
		Joints: types.JointState{Position: pos, Velocity: make(types.Joints, len(pos))},
		Cartesian: types.CartesianState{
			Pose: types.NewPoseFromEuler(r3.Vector{}, types.Euler{}),
		},
	}
}

func TestSegmentEndpoints(t *testing.T) {
	for _, method := range []Method{Linear, Cubic, Quintic} {
		t.Run(method.String(), func(t *testing.T) {
			seg := newSegment(method, 10, 0, 30, 0, 2)

			p, _ := seg.at(0)
			assert.InDelta(t, 10, p, 1e-9)

			p, v := seg.at(2)
			assert.InDelta(t, 30, p, 1e-9)
			assert.InDelta(t, 0, v, 1e-9)

			p, _ = seg.at(1)
			assert.InDelta(t, 20, p, 1e-9, "symmetric profile passes the midpoint at half time")

			p, v = seg.at(5)
			assert.Equal(t, 30.0, p)
			assert.Equal(t, 0.0, v)
		})
	}
}

func TestSegmentMatchesEndpointVelocities(t *testing.T) {
	for _, method := range []Method{Cubic, Quintic} {
		t.Run(method.String(), func(t *testing.T) {
			seg := newSegment(method, 0, 5, 10, -3, 1)
			_, v0 := seg.at(0)
			assert.InDelta(t, 5, v0, 1e-9)
			_, v1 := seg.at(1 - 1e-9)
			assert.InDelta(t, -3, v1, 1e-6)
		})
	}
}

func TestZeroDurationJumpsToGoal(t *testing.T) {
	seg := newSegment(Cubic, 0, 0, 7, 1, 0)
	p, v := seg.at(0)
	assert.Equal(t, 7.0, p)
	assert.Equal(t, 1.0, v)
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"linear", Linear, false},
		{"cubic", Cubic, false},
		{"", Cubic, false},
		{"quintic", Quintic, false},
		{"bezier", Linear, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplineShorterGoalHoldsTail(t *testing.T) {
	s := NewSpline()
	start := jointState(1, 2, 3)
	goal := jointState(10)
	s.Update(start, goal, Conditions{Duration: 1, Method: Cubic})

	end := s.Evaluate(1)
	assert.Equal(t, types.Joints{10, 2, 3}, end.Joints.Position)
	assert.Len(t, end.Joints.Velocity, 3)
}

func TestSplineQuaternionStaysUnit(t *testing.T) {
	start := jointState()
	start.Cartesian.Pose = types.NewPoseFromEuler(r3.Vector{X: 100}, types.Euler{Yaw: -170})
	goal := jointState()
	goal.Cartesian.Pose = types.NewPoseFromEuler(r3.Vector{X: 200, Z: 50}, types.Euler{Roll: 30, Yaw: 170})

	s := NewSpline()
	s.Update(start, goal, Conditions{Duration: 0.5, Method: Quintic, Rotation: types.RotationQuaternion})
	for ts := 0.0; ts <= 0.6; ts += 0.004 {
		out := s.Evaluate(ts)
		assert.InDelta(t, 1, quat.Abs(out.Cartesian.Pose.Quaternion), 1e-9)
	}
	end := s.Evaluate(0.5)
	assert.InDelta(t, 0, AngleBetween(end.Cartesian.Pose.Quaternion, goal.Cartesian.Pose.Quaternion), 1e-4)
	assert.InDelta(t, 200, end.Cartesian.Pose.Position.X, 1e-9)
}

func TestSplineEulerTakesShortestArc(t *testing.T) {
	start := jointState()
	start.Cartesian.Pose = types.NewPoseFromEuler(r3.Vector{}, types.Euler{Yaw: 170})
	goal := jointState()
	goal.Cartesian.Pose = types.NewPoseFromEuler(r3.Vector{}, types.Euler{Yaw: -170})

	s := NewSpline()
	s.Update(start, goal, Conditions{Duration: 1, Method: Linear, Rotation: types.RotationEuler})
	mid := s.Evaluate(0.5)
	// 20 degrees through 180, not 340 degrees through 0.
	assert.InDelta(t, 180, math.Abs(WrapDegrees(mid.Cartesian.Pose.Euler.Yaw)), 1e-6)
	assert.InDelta(t, 20, mid.Cartesian.Velocity.Angular.Z, 1e-9)
}

func TestSlerp(t *testing.T) {
	q0 := types.Euler{}.Quaternion()
	q1 := types.Euler{Yaw: 90}.Quaternion()

	mid := Slerp(q0, q1, 0.5)
	assert.InDelta(t, 45, AngleBetween(q0, mid), 1e-6)
	assert.InDelta(t, 1, quat.Abs(mid), 1e-12)

	// Antipodal representation of the same rotation interpolates the same way.
	flipped := Slerp(q0, quat.Scale(-1, q1), 0.5)
	assert.InDelta(t, 0, AngleBetween(mid, flipped), 1e-4)
}

func TestRotate(t *testing.T) {
	q := Rotate(types.Euler{}.Quaternion(), r3.Vector{Z: 90}, 1)
	e := types.EulerFromQuaternion(q)
	assert.InDelta(t, 90, e.Yaw, 1e-6)
	assert.InDelta(t, 0, e.Roll, 1e-6)
}

func TestWrapDegrees(t *testing.T) {
	assert.InDelta(t, 180, WrapDegrees(180), 1e-12)
	assert.InDelta(t, 180, WrapDegrees(-180), 1e-12)
	assert.InDelta(t, -90, WrapDegrees(270), 1e-12)
	assert.InDelta(t, 10, WrapDegrees(730), 1e-12)
}
