package motion

import (
	"egm_trajectory/interpolation"
	"egm_trajectory/types"
)

// Settings tune the motion step and ramp controller.
type Settings struct {
	Method   interpolation.Method
	Rotation types.Rotation

	// PositionTolerance in mm for Cartesian positions.
	PositionTolerance float64
	// AngleTolerance in degrees for joints and orientations.
	AngleTolerance float64

	// Rate limits used to estimate goal durations.
	JointSpeed   float64
	LinearSpeed  float64
	AngularSpeed float64

	// RampGain weights the feedback correction applied while a ramp is active.
	RampGain float64
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Method:            interpolation.Cubic,
		Rotation:          types.RotationQuaternion,
		PositionTolerance: DefaultCondition,
		AngleTolerance:    DefaultCondition,
		JointSpeed:        30,
		LinearSpeed:       250,
		AngularSpeed:      30,
		RampGain:          0,
	}
}
