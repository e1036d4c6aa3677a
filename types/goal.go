package types

// JointGoal is a joint position target with an optional velocity target.
type JointGoal struct {
	Position Joints `json:"position" yaml:"position"`
	Velocity Joints `json:"velocity,omitempty" yaml:"velocity,omitempty"`
}

// Clone returns a deep copy.
func (g *JointGoal) Clone() *JointGoal {
	if g == nil {
		return nil
	}
	return &JointGoal{Position: g.Position.Clone(), Velocity: g.Velocity.Clone()}
}

// CartesianGoal is a pose target with an optional velocity target.
type CartesianGoal struct {
	Pose     Pose               `json:"pose" yaml:"pose"`
	Velocity *CartesianVelocity `json:"velocity,omitempty" yaml:"velocity,omitempty"`
}

// Clone returns a deep copy.
func (g *CartesianGoal) Clone() *CartesianGoal {
	if g == nil {
		return nil
	}
	out := &CartesianGoal{Pose: g.Pose}
	if g.Velocity != nil {
		v := *g.Velocity
		out.Velocity = &v
	}
	return out
}

// RobotGoal targets the robot in joint space, Cartesian space, or both.
// The part matching the active Mode is followed; the other is carried along.
type RobotGoal struct {
	Joints    *JointGoal     `json:"joints,omitempty" yaml:"joints,omitempty"`
	Cartesian *CartesianGoal `json:"cartesian,omitempty" yaml:"cartesian,omitempty"`
}

// PointGoal is one waypoint of a trajectory.
type PointGoal struct {
	Robot    RobotGoal  `json:"robot" yaml:"robot"`
	External *JointGoal `json:"external,omitempty" yaml:"external,omitempty"`
	// Duration in seconds. Zero means the duration is estimated.
	Duration float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	// Reach requires the position condition before the point counts as done.
	// The last point of a trajectory always has to be reached.
	Reach bool `json:"reach,omitempty" yaml:"reach,omitempty"`
}

// Clone returns a deep copy.
func (p PointGoal) Clone() PointGoal {
	return PointGoal{
		Robot: RobotGoal{
			Joints:    p.Robot.Joints.Clone(),
			Cartesian: p.Robot.Cartesian.Clone(),
		},
		External: p.External.Clone(),
		Duration: p.Duration,
		Reach:    p.Reach,
	}
}

// TrajectoryGoal is an ordered list of points as handed in by a caller.
type TrajectoryGoal struct {
	Points []PointGoal `json:"points" yaml:"points"`
}

// Clone returns a deep copy.
func (t TrajectoryGoal) Clone() TrajectoryGoal {
	out := TrajectoryGoal{Points: make([]PointGoal, len(t.Points))}
	for i, p := range t.Points {
		out.Points[i] = p.Clone()
	}
	return out
}

// StaticPositionGoal is a single position target that is held until released.
type StaticPositionGoal struct {
	Joints   Joints `json:"joints,omitempty" yaml:"joints,omitempty"`
	Pose     *Pose  `json:"pose,omitempty" yaml:"pose,omitempty"`
	External Joints `json:"external,omitempty" yaml:"external,omitempty"`
}

// Clone returns a deep copy.
func (g StaticPositionGoal) Clone() StaticPositionGoal {
	out := StaticPositionGoal{Joints: g.Joints.Clone(), External: g.External.Clone()}
	if g.Pose != nil {
		p := *g.Pose
		out.Pose = &p
	}
	return out
}

// StaticVelocityGoal is a single velocity target that is held until released.
type StaticVelocityGoal struct {
	Joints    Joints             `json:"joints,omitempty" yaml:"joints,omitempty"`
	Cartesian *CartesianVelocity `json:"cartesian,omitempty" yaml:"cartesian,omitempty"`
	External  Joints             `json:"external,omitempty" yaml:"external,omitempty"`
}

// Clone returns a deep copy.
func (g StaticVelocityGoal) Clone() StaticVelocityGoal {
	out := StaticVelocityGoal{Joints: g.Joints.Clone(), External: g.External.Clone()}
	if g.Cartesian != nil {
		v := *g.Cartesian
		out.Cartesian = &v
	}
	return out
}
