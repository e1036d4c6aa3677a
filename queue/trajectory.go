package queue

import (
	"github.com/google/uuid"

	"egm_trajectory/types"
)

// Trajectory is an identified, mutable sequence of points consumed from the front.
type Trajectory struct {
	id       uuid.UUID
	points   []types.PointGoal
	consumed int
}

// NewTrajectory copies goal into a new trajectory with a fresh identity.
func NewTrajectory(goal types.TrajectoryGoal) *Trajectory {
	return &Trajectory{id: uuid.New(), points: goal.Clone().Points}
}

// ID returns the trajectory identity.
func (t *Trajectory) ID() uuid.UUID {
	return t.id
}

// Len returns the number of points not yet consumed.
func (t *Trajectory) Len() int {
	return len(t.points)
}

// Consumed returns how many points have been popped and not pushed back.
func (t *Trajectory) Consumed() int {
	return t.consumed
}

// PushBack appends a point.
func (t *Trajectory) PushBack(p types.PointGoal) {
	t.points = append(t.points, p.Clone())
}

// PushFront returns a point to the head.
func (t *Trajectory) PushFront(p types.PointGoal) {
	t.points = append([]types.PointGoal{p.Clone()}, t.points...)
	if t.consumed > 0 {
		t.consumed--
	}
}

// PopFront removes and returns the head point.
func (t *Trajectory) PopFront() (types.PointGoal, bool) {
	if len(t.points) == 0 {
		return types.PointGoal{}, false
	}
	p := t.points[0]
	t.points[0] = types.PointGoal{}
	t.points = t.points[1:]
	t.consumed++
	return p, true
}

// CopyOut returns the remaining points as a caller-owned goal.
func (t *Trajectory) CopyOut() types.TrajectoryGoal {
	return types.TrajectoryGoal{Points: t.points}.Clone()
}

// Clone returns a deep copy keeping the identity.
func (t *Trajectory) Clone() *Trajectory {
	return &Trajectory{id: t.id, points: t.CopyOut().Points, consumed: t.consumed}
}
