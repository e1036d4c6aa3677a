// Package types holds the motion data exchanged between the trajectory engine, its supervisory
// callers and the transport collaborator.
//
// Units follow the robot controller: joint values in degrees (degrees/s for velocities),
// Cartesian positions in mm (mm/s), orientations in degrees (degrees/s).
package types

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/rdk/utils"
	"gonum.org/v1/gonum/num/quat"
)

// Mode is the motion mode the robot controller assumes is active.
type Mode int

const (
	// ModeJoint streams joint references.
	ModeJoint Mode = iota
	// ModePose streams Cartesian pose references.
	ModePose
)

func (m Mode) String() string {
	switch m {
	case ModeJoint:
		return "joint"
	case ModePose:
		return "pose"
	default:
		return "unknown"
	}
}

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "joint", "":
		return ModeJoint, nil
	case "pose":
		return ModePose, nil
	default:
		return ModeJoint, fmt.Errorf("unknown motion mode %q", s)
	}
}

// Rotation selects which orientation representation drives interpolation and blending.
type Rotation int

const (
	// RotationQuaternion interpolates and blends orientations as unit quaternions.
	RotationQuaternion Rotation = iota
	// RotationEuler interpolates and blends orientations as Euler angles on the shortest arc.
	RotationEuler
)

func (r Rotation) String() string {
	if r == RotationEuler {
		return "euler"
	}
	return "quaternion"
}

// ParseRotation converts a configuration string to a Rotation.
func ParseRotation(s string) (Rotation, error) {
	switch s {
	case "quaternion", "":
		return RotationQuaternion, nil
	case "euler":
		return RotationEuler, nil
	default:
		return RotationQuaternion, fmt.Errorf("unknown orientation representation %q", s)
	}
}

// Joints holds one value per joint.
type Joints []float64

// Clone returns a copy that shares no memory with j.
func (j Joints) Clone() Joints {
	if j == nil {
		return nil
	}
	out := make(Joints, len(j))
	copy(out, j)
	return out
}

// Euler angles in degrees: roll about X, pitch about Y, yaw about Z.
type Euler struct {
	Roll  float64 `json:"roll" yaml:"roll"`
	Pitch float64 `json:"pitch" yaml:"pitch"`
	Yaw   float64 `json:"yaw" yaml:"yaw"`
}

// Quaternion converts the angles to a unit quaternion.
func (e Euler) Quaternion() quat.Number {
	ea := &spatialmath.EulerAngles{
		Roll:  utils.DegToRad(e.Roll),
		Pitch: utils.DegToRad(e.Pitch),
		Yaw:   utils.DegToRad(e.Yaw),
	}
	return ea.Quaternion()
}

// EulerFromQuaternion converts a unit quaternion to Euler angles in degrees.
func EulerFromQuaternion(q quat.Number) Euler {
	ea := spatialmath.QuatToEulerAngles(q)
	return Euler{
		Roll:  utils.RadToDeg(ea.Roll),
		Pitch: utils.RadToDeg(ea.Pitch),
		Yaw:   utils.RadToDeg(ea.Yaw),
	}
}

// Pose is a Cartesian position with an orientation kept in both representations.
// A non-zero Quaternion is authoritative; a zero Quaternion is derived from Euler.
type Pose struct {
	Position   r3.Vector   `json:"position" yaml:"position"`
	Euler      Euler       `json:"euler" yaml:"euler"`
	Quaternion quat.Number `json:"quaternion" yaml:"quaternion"`
}

// NewPoseFromEuler builds a pose whose quaternion is derived from e.
func NewPoseFromEuler(position r3.Vector, e Euler) Pose {
	return Pose{Position: position, Euler: e, Quaternion: e.Quaternion()}
}

// NewPoseFromQuaternion builds a pose whose Euler angles are derived from q.
func NewPoseFromQuaternion(position r3.Vector, q quat.Number) Pose {
	q = NormalizeQuaternion(q)
	return Pose{Position: position, Euler: EulerFromQuaternion(q), Quaternion: q}
}

// Normalized returns the pose with both orientation representations in agreement.
func (p Pose) Normalized() Pose {
	if quat.Abs(p.Quaternion) == 0 {
		return NewPoseFromEuler(p.Position, p.Euler)
	}
	return NewPoseFromQuaternion(p.Position, p.Quaternion)
}

// NormalizeQuaternion scales q to unit norm. The zero quaternion maps to identity.
func NormalizeQuaternion(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// CartesianVelocity is a linear (mm/s) and angular (degrees/s) velocity pair.
type CartesianVelocity struct {
	Linear  r3.Vector `json:"linear" yaml:"linear"`
	Angular r3.Vector `json:"angular" yaml:"angular"`
}

// JointState is a joint position and velocity sample.
type JointState struct {
	Position Joints `json:"position" yaml:"position"`
	Velocity Joints `json:"velocity" yaml:"velocity"`
}

// Clone returns a deep copy.
func (s JointState) Clone() JointState {
	return JointState{Position: s.Position.Clone(), Velocity: s.Velocity.Clone()}
}

// CartesianState is a pose and velocity sample.
type CartesianState struct {
	Pose     Pose              `json:"pose" yaml:"pose"`
	Velocity CartesianVelocity `json:"velocity" yaml:"velocity"`
}

// RobotState is a full sample of robot and external axes, used for feedback, references and outputs.
type RobotState struct {
	Joints    JointState     `json:"joints" yaml:"joints"`
	Cartesian CartesianState `json:"cartesian" yaml:"cartesian"`
	External  JointState     `json:"external" yaml:"external"`
}

// Clone returns a deep copy.
func (s RobotState) Clone() RobotState {
	return RobotState{
		Joints:    s.Joints.Clone(),
		Cartesian: s.Cartesian,
		External:  s.External.Clone(),
	}
}

// AtRest returns a copy with every velocity zeroed and velocity slices sized to the positions.
func (s RobotState) AtRest() RobotState {
	out := s.Clone()
	out.Joints.Velocity = make(Joints, len(out.Joints.Position))
	out.External.Velocity = make(Joints, len(out.External.Position))
	out.Cartesian.Velocity = CartesianVelocity{}
	return out
}

// Feedback is one periodic sample delivered by the robot controller.
type Feedback struct {
	Mode Mode `json:"mode" yaml:"mode"`
	// Time is the controller timestamp in seconds.
	Time  float64    `json:"time" yaml:"time"`
	Robot RobotState `json:"robot" yaml:"robot"`
}

// Clone returns a deep copy.
func (f Feedback) Clone() Feedback {
	f.Robot = f.Robot.Clone()
	return f
}

// Inputs is what the transport hands to the per-cycle entry point.
type Inputs struct {
	Feedback Feedback
	// FirstMessage is set on the first sample of a new session.
	FirstMessage bool
}

// Output is the shaped reference for the current cycle.
type Output struct {
	Mode  Mode       `json:"mode" yaml:"mode"`
	Robot RobotState `json:"robot" yaml:"robot"`
}

// Clone returns a deep copy.
func (o Output) Clone() Output {
	o.Robot = o.Robot.Clone()
	return o
}
