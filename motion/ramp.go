package motion

import (
	"math"

	"github.com/golang/geo/r3"

	"egm_trajectory/interpolation"
	"egm_trajectory/types"
)

// RampController blends the reference captured at a goal transition into the new interpolation,
// so that positions and velocities stay continuous across the transition.
//
// While armed, with ratio = elapsed/window, a = (1+cos(pi*ratio))/2 and b = 1-a:
//
//	position = a*(start + startVelocity*elapsed) + b*reference
//	velocity = a*startVelocity + b*referenceVelocity + gain*(position - feedback)
//
// The ramp is armed for every transition outside StateNormal and for every transition
// when the spline method is linear.
type RampController struct {
	rotation     types.Rotation
	initial      types.RobotState
	velocityGoal bool
	active       bool
	window       float64
	elapsed      float64
	gain         float64
	a, b         float64
}

// NewRampController returns a disarmed controller that passes the reference through.
func NewRampController() *RampController {
	return &RampController{b: 1}
}

// Reset disarms the ramp.
func (r *RampController) Reset() {
	r.active = false
	r.a, r.b = 0, 1
}

// Active reports whether a blend is in progress.
func (r *RampController) Active() bool {
	return r.active
}

// Update captures the current reference as the blend start for a newly activated goal.
func (r *RampController) Update(state State, step *MotionStep, settings Settings) {
	isNormalState := state == StateNormal
	isLinear := settings.Method == interpolation.Linear
	r.rotation = settings.Rotation
	r.velocityGoal = step.IsVelocityGoal()
	r.initial = step.Interpolation.Clone()
	r.window = step.Duration()
	r.elapsed = 0
	r.gain = settings.RampGain
	r.active = (!isNormalState || isLinear) && r.window > 0
	if !r.active {
		r.a, r.b = 0, 1
	}
}

// Calculate shapes the step's interpolation into the cycle output and writes the result back
// into the step so the next transition starts from what was actually commanded.
func (r *RampController) Calculate(step *MotionStep) types.Output {
	if !r.active {
		return types.Output{Mode: step.Data.Mode, Robot: step.Interpolation.Clone()}
	}

	r.elapsed += step.Data.SampleTime
	ratio := math.Min(r.elapsed/r.window, 1)
	r.a = 0.5 * (1 + math.Cos(math.Pi*ratio))
	r.b = 1 - r.a

	ref := step.Interpolation
	fdb := step.Data.Feedback.Robot
	out := types.RobotState{
		Joints:    r.blendJoints(r.initial.Joints, ref.Joints, fdb.Joints),
		Cartesian: r.blendCartesian(r.initial.Cartesian, ref.Cartesian, fdb.Cartesian),
		External:  r.blendJoints(r.initial.External, ref.External, fdb.External),
	}
	if ratio >= 1 {
		r.active = false
	}
	step.Interpolation = out.Clone()
	return types.Output{Mode: step.Data.Mode, Robot: out}
}

func (r *RampController) blendJoints(start, ref, fdb types.JointState) types.JointState {
	t := r.elapsed
	n := len(ref.Position)
	out := types.JointState{Position: make(types.Joints, n), Velocity: make(types.Joints, n)}
	for i := 0; i < n; i++ {
		p0, v0 := ref.Position[i], 0.0
		if i < len(start.Position) {
			p0 = start.Position[i]
		}
		if i < len(start.Velocity) {
			v0 = start.Velocity[i]
		}
		vref := 0.0
		if i < len(ref.Velocity) {
			vref = ref.Velocity[i]
		}

		if r.velocityGoal {
			out.Position[i] = ref.Position[i]
		} else {
			out.Position[i] = r.a*(p0+v0*t) + r.b*ref.Position[i]
		}
		out.Velocity[i] = r.a*v0 + r.b*vref
		if i < len(fdb.Position) {
			out.Velocity[i] += r.gain * (out.Position[i] - fdb.Position[i])
		}
	}
	return out
}

func (r *RampController) blendCartesian(start, ref, fdb types.CartesianState) types.CartesianState {
	t := r.elapsed
	var out types.CartesianState

	pos := ref.Pose.Position
	if !r.velocityGoal {
		extrapolated := start.Pose.Position.Add(start.Velocity.Linear.Mul(t))
		pos = extrapolated.Mul(r.a).Add(ref.Pose.Position.Mul(r.b))
	}
	out.Velocity.Linear = start.Velocity.Linear.Mul(r.a).Add(ref.Velocity.Linear.Mul(r.b)).
		Add(pos.Sub(fdb.Pose.Position).Mul(r.gain))
	out.Velocity.Angular = start.Velocity.Angular.Mul(r.a).Add(ref.Velocity.Angular.Mul(r.b))

	switch {
	case r.velocityGoal:
		out.Pose = ref.Pose
		out.Pose.Position = pos
	case r.rotation == types.RotationEuler:
		out.Pose = types.NewPoseFromEuler(pos, blendEuler(start.Pose.Euler, start.Velocity.Angular, ref.Pose.Euler, t, r.b))
	default:
		from := interpolation.Rotate(start.Pose.Quaternion, start.Velocity.Angular, t)
		out.Pose = types.NewPoseFromQuaternion(pos, interpolation.Slerp(from, ref.Pose.Quaternion, r.b))
	}
	return out
}

// blendEuler moves from the extrapolated start toward ref by weight b on the shortest arc.
func blendEuler(start types.Euler, rate r3.Vector, ref types.Euler, t, b float64) types.Euler {
	from := types.Euler{
		Roll:  start.Roll + rate.X*t,
		Pitch: start.Pitch + rate.Y*t,
		Yaw:   start.Yaw + rate.Z*t,
	}
	to := interpolation.UnwrapEuler(from, ref)
	return types.Euler{
		Roll:  from.Roll + b*(to.Roll-from.Roll),
		Pitch: from.Pitch + b*(to.Pitch-from.Pitch),
		Yaw:   from.Yaw + b*(to.Yaw-from.Yaw),
	}
}
