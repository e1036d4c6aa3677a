package interpolation

import (
	"fmt"
	"math"
)

// Method selects the scalar interpolation used for every channel of a segment.
type Method int

const (
	// Linear moves at constant velocity between endpoints.
	Linear Method = iota
	// Cubic is a cubic Hermite spline matching endpoint positions and velocities.
	Cubic
	// Quintic is a quintic spline matching endpoint positions and velocities with zero endpoint acceleration.
	Quintic
)

func (m Method) String() string {
	switch m {
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	case Quintic:
		return "quintic"
	default:
		return "unknown"
	}
}

// ParseMethod converts a configuration string to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "linear":
		return Linear, nil
	case "cubic", "":
		return Cubic, nil
	case "quintic":
		return Quintic, nil
	default:
		return Linear, fmt.Errorf("unknown spline method %q", s)
	}
}

// segment interpolates one scalar channel from (p0, v0) to (p1, v1) over T seconds.
type segment struct {
	method Method
	p0, v0 float64
	p1, v1 float64
	T      float64
	c      [6]float64
}

func newSegment(method Method, p0, v0, p1, v1, T float64) segment {
	s := segment{method: method, p0: p0, v0: v0, p1: p1, v1: v1, T: T}
	if method == Quintic && T > 0 {
		h := p1 - p0
		T2 := T * T
		T3 := T2 * T
		s.c = [6]float64{
			p0,
			v0,
			0,
			(20*h - (8*v1+12*v0)*T) / (2 * T3),
			(-30*h + (14*v1+16*v0)*T) / (2 * T3 * T),
			(12*h - 6*(v1+v0)*T) / (2 * T3 * T2),
		}
	}
	return s
}

// at returns position and velocity t seconds into the segment. Past the end it holds (p1, v1).
func (s segment) at(t float64) (float64, float64) {
	if s.T <= 0 || t >= s.T {
		return s.p1, s.v1
	}
	if t < 0 {
		t = 0
	}
	switch s.method {
	case Cubic:
		u := t / s.T
		u2 := u * u
		u3 := u2 * u
		h00 := 2*u3 - 3*u2 + 1
		h10 := u3 - 2*u2 + u
		h01 := -2*u3 + 3*u2
		h11 := u3 - u2
		p := h00*s.p0 + h10*s.T*s.v0 + h01*s.p1 + h11*s.T*s.v1
		v := (6*u2-6*u)/s.T*s.p0 + (3*u2-4*u+1)*s.v0 + (-6*u2+6*u)/s.T*s.p1 + (3*u2-2*u)*s.v1
		return p, v
	case Quintic:
		p := 0.0
		v := 0.0
		tp := 1.0
		for i := 0; i < 6; i++ {
			p += s.c[i] * tp
			if i < 5 {
				v += float64(i+1) * s.c[i+1] * tp
			}
			tp *= t
		}
		return p, v
	default:
		v := (s.p1 - s.p0) / s.T
		return s.p0 + v*t, v
	}
}

// WrapDegrees maps an angle to (-180, 180].
func WrapDegrees(a float64) float64 {
	a = math.Mod(a+180, 360)
	if a <= 0 {
		a += 360
	}
	return a - 180
}
