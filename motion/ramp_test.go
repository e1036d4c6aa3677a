package motion

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/num/quat"

	"egm_trajectory/interpolation"
	"egm_trajectory/types"
)

func movingStep(settings Settings) *MotionStep {
	fb := restFeedback(types.ModePose, 10)
	s := NewMotionStep(settings, nil)
	s.Reset(fb)
	s.SetProcessData(fb, LowestSampleTime)
	s.Interpolation.Joints.Velocity[0] = 20
	s.Interpolation.Cartesian.Velocity = types.CartesianVelocity{Linear: r3.Vector{Y: 50}, Angular: r3.Vector{X: 30}}
	return s
}

func TestRampStartsFromCapturedReference(t *testing.T) {
	settings := DefaultSettings()
	s := movingStep(settings)
	r := NewRampController()

	s.PrepareStaticPositionGoal(types.StaticPositionGoal{Joints: types.Joints{-40}}, false)
	r.Update(StateStaticGoal, s, settings)
	s.UpdateInterpolator()
	assert.True(t, r.Active())

	s.EvaluateInterpolator()
	out := r.Calculate(s)
	assert.InDelta(t, 10+20*LowestSampleTime, out.Robot.Joints.Position[0], 1e-3)
	assert.InDelta(t, 20, out.Robot.Joints.Velocity[0], 0.1)
	assert.InDelta(t, 50*LowestSampleTime, out.Robot.Cartesian.Pose.Position.Y, 1e-3)
	assert.Equal(t, out.Robot.Joints.Position, s.Interpolation.Joints.Position, "output is written back")
}

func TestRampPassesThroughInNormalState(t *testing.T) {
	settings := DefaultSettings()
	s := movingStep(settings)
	r := NewRampController()

	s.PrepareNormalGoal(types.PointGoal{
		Robot:    types.RobotGoal{Joints: &types.JointGoal{Position: types.Joints{30}}},
		Duration: 1,
	}, true)
	r.Update(StateNormal, s, settings)
	s.UpdateInterpolator()
	assert.False(t, r.Active())

	s.EvaluateInterpolator()
	ref := s.Interpolation.Clone()
	out := r.Calculate(s)
	assert.Equal(t, ref, out.Robot)
}

func TestRampEndsOnReference(t *testing.T) {
	for _, rotation := range []types.Rotation{types.RotationQuaternion, types.RotationEuler} {
		t.Run(rotation.String(), func(t *testing.T) {
			settings := DefaultSettings()
			settings.Rotation = rotation
			s := movingStep(settings)
			r := NewRampController()

			s.PrepareRampDownGoal(true)
			r.Update(StateRampDown, s, settings)
			s.UpdateInterpolator()

			var out types.Output
			for i := 0; i < 260; i++ {
				s.EvaluateInterpolator()
				out = r.Calculate(s)
				assert.InDelta(t, 1, quat.Abs(out.Robot.Cartesian.Pose.Quaternion), 1e-9)
			}
			assert.False(t, r.Active())
			assert.InDelta(t, 20, out.Robot.Joints.Position[0], 1e-9)
			assert.InDelta(t, 0, out.Robot.Joints.Velocity[0], 1e-9)
			assert.InDelta(t, 25, out.Robot.Cartesian.Pose.Position.Y, 1e-9)
			assert.InDelta(t, 0, out.Robot.Cartesian.Velocity.Angular.Norm(), 1e-9)
			assert.InDelta(t, 0, interpolation.AngleBetween(s.InternalGoal.Cartesian.Pose.Quaternion, out.Robot.Cartesian.Pose.Quaternion), 1e-4)
		})
	}
}

func TestRampFeedbackCorrection(t *testing.T) {
	settings := DefaultSettings()
	settings.RampGain = 2
	s := movingStep(settings)
	r := NewRampController()

	s.PrepareRampDownGoal(false)
	r.Update(StateRampDown, s, settings)
	s.UpdateInterpolator()

	lagging := restFeedback(types.ModePose, 9)
	s.SetProcessData(lagging, LowestSampleTime)
	s.EvaluateInterpolator()
	withGain := r.Calculate(s).Robot.Joints.Velocity[0]

	s2 := movingStep(DefaultSettings())
	r2 := NewRampController()
	s2.PrepareRampDownGoal(false)
	r2.Update(StateRampDown, s2, DefaultSettings())
	s2.UpdateInterpolator()
	s2.SetProcessData(lagging, LowestSampleTime)
	s2.EvaluateInterpolator()
	withoutGain := r2.Calculate(s2).Robot.Joints.Velocity[0]

	assert.Greater(t, withGain, withoutGain, "a lagging robot is pushed toward the reference")
}
