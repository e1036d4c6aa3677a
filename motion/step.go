package motion

import (
	"math"

	"egm_trajectory/interpolation"
	"egm_trajectory/types"
)

const (
	// DefaultCondition is the position tolerance in mm or degrees used when none is configured.
	DefaultCondition = 0.005
	// RampDownStopDuration is the time allowed to bring the robot to rest, in seconds.
	RampDownStopDuration = 1.0
	// StaticGoalDuration is the time to reach a static goal, in seconds.
	StaticGoalDuration = 5.0
	// StaticGoalDurationShort is the time to reach a static goal sent as a fast update.
	StaticGoalDurationShort = 0.1
	// LowestSampleTime is the shortest controller cycle, in seconds.
	LowestSampleTime = 0.004

	MinDurationFactor = 1.0
	MaxDurationFactor = 5.0
)

type goalKind int

const (
	goalIdle goalKind = iota
	goalNormal
	goalRampDown
	goalStaticPosition
	goalStaticVelocity
)

// ProcessData is the per-cycle input and bookkeeping of a MotionStep.
type ProcessData struct {
	Mode types.Mode
	// SampleTime is the estimated controller cycle in seconds.
	SampleTime float64
	// TimePassed since the active goal was activated, in seconds.
	TimePassed     float64
	DurationFactor float64
	Feedback       types.Feedback
}

// MotionStep turns one goal at a time into per-cycle references.
type MotionStep struct {
	Data ProcessData
	// ExternalGoal is the goal as handed in by a caller.
	ExternalGoal types.PointGoal
	// InternalGoal is the goal normalized against the current reference.
	InternalGoal types.RobotState
	// Interpolation is the reference of the current cycle. The ramp controller writes
	// its shaped output back here.
	Interpolation types.RobotState

	settings     Settings
	interpolator interpolation.Interpolator
	conditions   interpolation.Conditions
	kind         goalKind
	reach        bool
}

// NewMotionStep returns a step with no goal. A nil interpolator selects a Spline.
func NewMotionStep(settings Settings, interpolator interpolation.Interpolator) *MotionStep {
	if interpolator == nil {
		interpolator = interpolation.NewSpline()
	}
	return &MotionStep{
		Data:         ProcessData{DurationFactor: 1, SampleTime: LowestSampleTime},
		settings:     settings,
		interpolator: interpolator,
	}
}

// UpdateSettings takes effect with the next goal.
func (s *MotionStep) UpdateSettings(settings Settings) {
	s.settings = settings
}

// Reset drops any goal and holds the feedback position at rest.
func (s *MotionStep) Reset(fb types.Feedback) {
	s.Data.Feedback = fb.Clone()
	s.Data.Mode = fb.Mode
	s.Data.TimePassed = 0
	s.Interpolation = fb.Robot.AtRest()
	s.Interpolation.Cartesian.Pose = s.Interpolation.Cartesian.Pose.Normalized()
	s.InternalGoal = s.Interpolation.Clone()
	s.ExternalGoal = types.PointGoal{}
	s.kind = goalIdle
	s.reach = false
	s.conditions = interpolation.Conditions{Method: s.settings.Method, Rotation: s.settings.Rotation}
	s.interpolator.Update(s.Interpolation, s.InternalGoal, s.conditions)
}

// SetProcessData records the feedback and sample time of the current cycle.
func (s *MotionStep) SetProcessData(fb types.Feedback, sampleTime float64) {
	s.Data.Feedback = fb.Clone()
	s.Data.Mode = fb.Mode
	s.Data.SampleTime = math.Max(sampleTime, LowestSampleTime)
}

// Duration returns the planned duration of the active goal.
func (s *MotionStep) Duration() float64 {
	return s.conditions.Duration
}

// IsVelocityGoal reports whether a static velocity goal is active.
func (s *MotionStep) IsVelocityGoal() bool {
	return s.kind == goalStaticVelocity
}

// Reach reports whether the active goal has to satisfy ConditionMet before it counts as done.
func (s *MotionStep) Reach() bool {
	return s.reach
}

// PrepareNormalGoal loads a trajectory point as the next target.
func (s *MotionStep) PrepareNormalGoal(goal types.PointGoal, isLastPoint bool) {
	s.ExternalGoal = goal.Clone()
	target := s.Interpolation.AtRest()
	if j := goal.Robot.Joints; j != nil {
		copy(target.Joints.Position, j.Position)
		if !isLastPoint {
			copy(target.Joints.Velocity, j.Velocity)
		}
	}
	if c := goal.Robot.Cartesian; c != nil {
		target.Cartesian.Pose = c.Pose.Normalized()
		if !isLastPoint && c.Velocity != nil {
			target.Cartesian.Velocity = *c.Velocity
		}
	}
	if e := goal.External; e != nil {
		copy(target.External.Position, e.Position)
		if !isLastPoint {
			copy(target.External.Velocity, e.Velocity)
		}
	}
	s.InternalGoal = target

	d := goal.Duration
	if d <= 0 {
		d = s.estimateDuration()
	}
	s.conditions = interpolation.Conditions{
		Duration: d * s.Data.DurationFactor,
		Method:   s.settings.Method,
		Rotation: s.settings.Rotation,
	}
	s.kind = goalNormal
	s.reach = goal.Reach || isLastPoint
}

// PrepareRampDownGoal targets rest. With doStop the target is where the current
// velocity brings the robot when decelerated evenly; otherwise the current reference is held.
func (s *MotionStep) PrepareRampDownGoal(doStop bool) {
	const T = RampDownStopDuration
	ref := s.Interpolation
	target := ref.AtRest()
	if doStop {
		extrapolate(target.Joints.Position, ref.Joints.Velocity, T/2)
		extrapolate(target.External.Position, ref.External.Velocity, T/2)
		pose := ref.Cartesian.Pose
		pos := pose.Position.Add(ref.Cartesian.Velocity.Linear.Mul(T / 2))
		ang := ref.Cartesian.Velocity.Angular
		if s.settings.Rotation == types.RotationEuler {
			e := types.Euler{
				Roll:  pose.Euler.Roll + ang.X*T/2,
				Pitch: pose.Euler.Pitch + ang.Y*T/2,
				Yaw:   pose.Euler.Yaw + ang.Z*T/2,
			}
			target.Cartesian.Pose = types.NewPoseFromEuler(pos, e)
		} else {
			target.Cartesian.Pose = types.NewPoseFromQuaternion(pos, interpolation.Rotate(pose.Quaternion, ang, T/2))
		}
	}
	s.ExternalGoal = types.PointGoal{}
	s.InternalGoal = target
	s.conditions = interpolation.Conditions{Duration: T, Method: s.restMethod(), Rotation: s.settings.Rotation}
	s.kind = goalRampDown
	s.reach = false
}

// PrepareStaticPositionGoal targets a static position. Fast updates use the short duration.
func (s *MotionStep) PrepareStaticPositionGoal(goal types.StaticPositionGoal, fast bool) {
	target := s.Interpolation.AtRest()
	copy(target.Joints.Position, goal.Joints)
	if goal.Pose != nil {
		target.Cartesian.Pose = goal.Pose.Normalized()
	}
	copy(target.External.Position, goal.External)

	s.ExternalGoal = types.PointGoal{}
	s.InternalGoal = target
	s.conditions = interpolation.Conditions{Duration: staticDuration(fast), Method: s.restMethod(), Rotation: s.settings.Rotation}
	s.kind = goalStaticPosition
	s.reach = true
}

// PrepareStaticVelocityGoal targets a static velocity, reached within the static duration.
func (s *MotionStep) PrepareStaticVelocityGoal(goal types.StaticVelocityGoal, fast bool) {
	target := s.Interpolation.AtRest()
	copy(target.Joints.Velocity, goal.Joints)
	if goal.Cartesian != nil {
		target.Cartesian.Velocity = *goal.Cartesian
	}
	copy(target.External.Velocity, goal.External)

	s.ExternalGoal = types.PointGoal{}
	s.InternalGoal = target
	s.conditions = interpolation.Conditions{Duration: staticDuration(fast), Method: s.settings.Method, Rotation: s.settings.Rotation}
	s.kind = goalStaticVelocity
	s.reach = false
}

// UpdateInterpolator restarts the clock for a newly activated goal.
func (s *MotionStep) UpdateInterpolator() {
	s.Data.TimePassed = 0
	if s.kind == goalStaticVelocity {
		return
	}
	s.interpolator.Update(s.Interpolation, s.InternalGoal, s.conditions)
}

// EvaluateInterpolator advances the clock by one sample and updates Interpolation.
func (s *MotionStep) EvaluateInterpolator() {
	s.Data.TimePassed += s.Data.SampleTime
	if s.kind == goalStaticVelocity {
		s.integrate(s.Data.SampleTime)
		return
	}
	s.Interpolation = s.interpolator.Evaluate(s.Data.TimePassed)
}

// integrate moves the reference by its current velocity and then sets the target velocity.
func (s *MotionStep) integrate(dt float64) {
	ref := &s.Interpolation
	extrapolate(ref.Joints.Position, ref.Joints.Velocity, dt)
	extrapolate(ref.External.Position, ref.External.Velocity, dt)
	ref.Joints.Velocity = s.InternalGoal.Joints.Velocity.Clone()
	ref.External.Velocity = s.InternalGoal.External.Velocity.Clone()

	pose := ref.Cartesian.Pose
	v := ref.Cartesian.Velocity
	pos := pose.Position.Add(v.Linear.Mul(dt))
	if s.settings.Rotation == types.RotationEuler {
		e := types.Euler{
			Roll:  pose.Euler.Roll + v.Angular.X*dt,
			Pitch: pose.Euler.Pitch + v.Angular.Y*dt,
			Yaw:   pose.Euler.Yaw + v.Angular.Z*dt,
		}
		ref.Cartesian.Pose = types.NewPoseFromEuler(pos, e)
	} else {
		ref.Cartesian.Pose = types.NewPoseFromQuaternion(pos, interpolation.Rotate(pose.Quaternion, v.Angular, dt))
	}
	ref.Cartesian.Velocity = s.InternalGoal.Cartesian.Velocity
}

// InterpolationDurationReached reports whether the active goal's planned time has elapsed.
func (s *MotionStep) InterpolationDurationReached() bool {
	return s.conditions.Duration-s.Data.TimePassed < 0.5*LowestSampleTime
}

// ConditionMet reports whether feedback is within tolerance of the active goal.
func (s *MotionStep) ConditionMet() bool {
	fb := s.Data.Feedback.Robot
	goal := s.InternalGoal
	if s.kind == goalStaticVelocity {
		return within(goal.Joints.Velocity, fb.Joints.Velocity, s.settings.AngleTolerance) &&
			within(goal.External.Velocity, fb.External.Velocity, s.settings.AngleTolerance)
	}

	met := within(goal.External.Position, fb.External.Position, s.settings.AngleTolerance)
	switch s.Data.Mode {
	case types.ModePose:
		d := goal.Cartesian.Pose.Position.Sub(fb.Cartesian.Pose.Position)
		tol := s.settings.PositionTolerance
		met = met && math.Abs(d.X) <= tol && math.Abs(d.Y) <= tol && math.Abs(d.Z) <= tol
		angle := interpolation.AngleBetween(goal.Cartesian.Pose.Quaternion, fb.Cartesian.Pose.Normalized().Quaternion)
		met = met && angle <= s.settings.AngleTolerance
	default:
		met = met && within(goal.Joints.Position, fb.Joints.Position, s.settings.AngleTolerance)
	}
	return met
}

// ScaleDuration sets the duration factor. Factors outside [MinDurationFactor, MaxDurationFactor]
// are ignored and reported as false. A trajectory point in flight is re-planned so that its
// remaining time scales by the ratio of the new to the old factor.
func (s *MotionStep) ScaleDuration(factor float64) bool {
	if math.IsNaN(factor) || factor < MinDurationFactor || factor > MaxDurationFactor {
		return false
	}
	old := s.Data.DurationFactor
	s.Data.DurationFactor = factor
	if s.kind != goalNormal || old == factor {
		return true
	}
	remaining := s.conditions.Duration - s.Data.TimePassed
	if remaining <= 0 {
		return true
	}
	s.conditions.Duration = remaining * factor / old
	s.Data.TimePassed = 0
	s.interpolator.Update(s.Interpolation, s.InternalGoal, s.conditions)
	return true
}

func (s *MotionStep) estimateDuration() float64 {
	fb := s.Data.Feedback.Robot
	goal := s.InternalGoal
	var d float64
	switch s.Data.Mode {
	case types.ModePose:
		dist := goal.Cartesian.Pose.Position.Distance(fb.Cartesian.Pose.Position)
		d = dist / rate(s.settings.LinearSpeed, fb.Cartesian.Velocity.Linear.Norm())
		angle := interpolation.AngleBetween(goal.Cartesian.Pose.Quaternion, fb.Cartesian.Pose.Normalized().Quaternion)
		d = math.Max(d, angle/rate(s.settings.AngularSpeed, fb.Cartesian.Velocity.Angular.Norm()))
	default:
		d = jointsDuration(goal.Joints.Position, fb.Joints, s.settings.JointSpeed)
	}
	d = math.Max(d, jointsDuration(goal.External.Position, fb.External, s.settings.JointSpeed))
	return math.Max(d, LowestSampleTime)
}

// restMethod is the method used for goals ending at rest; a linear profile cannot end at zero velocity.
func (s *MotionStep) restMethod() interpolation.Method {
	if s.settings.Method == interpolation.Linear {
		return interpolation.Cubic
	}
	return s.settings.Method
}

func staticDuration(fast bool) float64 {
	if fast {
		return StaticGoalDurationShort
	}
	return StaticGoalDuration
}

func rate(limit, observed float64) float64 {
	r := math.Max(limit, observed)
	if r <= 0 {
		return 1
	}
	return r
}

func jointsDuration(target types.Joints, fb types.JointState, limit float64) float64 {
	var d float64
	for i := 0; i < len(target) && i < len(fb.Position); i++ {
		observed := 0.0
		if i < len(fb.Velocity) {
			observed = math.Abs(fb.Velocity[i])
		}
		d = math.Max(d, math.Abs(target[i]-fb.Position[i])/rate(limit, observed))
	}
	return d
}

func extrapolate(pos, vel types.Joints, dt float64) {
	for i := 0; i < len(pos) && i < len(vel); i++ {
		pos[i] += vel[i] * dt
	}
}

func within(target, actual types.Joints, tol float64) bool {
	for i := 0; i < len(target) && i < len(actual); i++ {
		if math.Abs(target[i]-actual[i]) > tol {
			return false
		}
	}
	return true
}
