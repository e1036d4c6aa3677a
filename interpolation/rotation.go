package interpolation

import (
	"math"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/utils"
	"gonum.org/v1/gonum/num/quat"

	"egm_trajectory/types"
)

func dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// Slerp interpolates between unit quaternions along the shortest arc. The result has unit norm.
func Slerp(q0, q1 quat.Number, s float64) quat.Number {
	q0 = types.NormalizeQuaternion(q0)
	q1 = types.NormalizeQuaternion(q1)
	d := dot(q0, q1)
	if d < 0 {
		q1 = quat.Scale(-1, q1)
		d = -d
	}
	if d > 0.9995 {
		return types.NormalizeQuaternion(quat.Add(q0, quat.Scale(s, quat.Sub(q1, q0))))
	}
	theta := math.Acos(d)
	sin := math.Sin(theta)
	w0 := math.Sin((1-s)*theta) / sin
	w1 := math.Sin(s*theta) / sin
	return types.NormalizeQuaternion(quat.Add(quat.Scale(w0, q0), quat.Scale(w1, q1)))
}

// AngleBetween returns the rotation angle in degrees separating two orientations.
func AngleBetween(q0, q1 quat.Number) float64 {
	d := math.Abs(dot(types.NormalizeQuaternion(q0), types.NormalizeQuaternion(q1)))
	if d > 1 {
		d = 1
	}
	return utils.RadToDeg(2 * math.Acos(d))
}

// rotationAxis returns the unit world-frame axis rotating q0 onto q1, or the zero vector.
func rotationAxis(q0, q1 quat.Number) r3.Vector {
	if dot(q0, q1) < 0 {
		q1 = quat.Scale(-1, q1)
	}
	delta := quat.Mul(q1, quat.Conj(q0))
	axis := r3.Vector{X: delta.Imag, Y: delta.Jmag, Z: delta.Kmag}
	if axis.Norm() < 1e-12 {
		return r3.Vector{}
	}
	return axis.Normalize()
}

// Rotate applies an angular velocity (degrees/s, world frame) to q for dt seconds.
func Rotate(q quat.Number, angular r3.Vector, dt float64) quat.Number {
	rate := angular.Norm()
	if rate == 0 || dt == 0 {
		return types.NormalizeQuaternion(q)
	}
	half := utils.DegToRad(rate*dt) / 2
	axis := angular.Mul(1 / rate)
	sin := math.Sin(half)
	step := quat.Number{Real: math.Cos(half), Imag: axis.X * sin, Jmag: axis.Y * sin, Kmag: axis.Z * sin}
	return types.NormalizeQuaternion(quat.Mul(step, q))
}

// UnwrapEuler returns target expressed on the shortest arc from start, component by component.
func UnwrapEuler(start, target types.Euler) types.Euler {
	return types.Euler{
		Roll:  start.Roll + WrapDegrees(target.Roll-start.Roll),
		Pitch: start.Pitch + WrapDegrees(target.Pitch-start.Pitch),
		Yaw:   start.Yaw + WrapDegrees(target.Yaw-start.Yaw),
	}
}

// quaternionSegment moves along a slerp path with a scalar progress profile.
type quaternionSegment struct {
	q0, q1   quat.Number
	axis     r3.Vector
	angle    float64
	progress segment
}

func newQuaternionSegment(method Method, q0, q1 quat.Number, w0, w1 r3.Vector, T float64) quaternionSegment {
	q0 = types.NormalizeQuaternion(q0)
	q1 = types.NormalizeQuaternion(q1)
	qs := quaternionSegment{q0: q0, q1: q1, axis: rotationAxis(q0, q1), angle: AngleBetween(q0, q1)}
	var s0, s1 float64
	if qs.angle > 1e-9 {
		s0 = w0.Dot(qs.axis) / qs.angle
		s1 = w1.Dot(qs.axis) / qs.angle
	}
	qs.progress = newSegment(method, 0, s0, 1, s1, T)
	return qs
}

func (qs quaternionSegment) at(t float64) (quat.Number, r3.Vector) {
	s, ds := qs.progress.at(t)
	if qs.angle <= 1e-9 {
		return qs.q1, r3.Vector{}
	}
	return Slerp(qs.q0, qs.q1, s), qs.axis.Mul(qs.angle * ds)
}
