// Package queue holds trajectories waiting to be executed, shared between supervisory callers
// and the control cycle.
package queue

import (
	"sync"

	"github.com/google/uuid"

	"egm_trajectory/types"
)

// Point is one goal handed to the control cycle along with where it came from.
type Point struct {
	Goal         types.PointGoal
	TrajectoryID uuid.UUID
	// Index of the point within its trajectory as originally enqueued.
	Index int
	// Last is set when no points remain in the trajectory after this one.
	Last bool
}

// Depths summarizes the queue contents.
type Depths struct {
	Pending      int
	Parked       int
	HasActive    bool
	ActiveID     uuid.UUID
	ActivePoints int
}

// Snapshot is a caller-owned copy of the queue contents.
type Snapshot struct {
	Active  *types.TrajectoryGoal
	Pending []types.TrajectoryGoal
	Parked  []types.TrajectoryGoal
}

// GoalQueue is a FIFO of trajectories. It is safe for concurrent use.
//
// Trajectories enqueued while a discard is pending are parked and only become
// eligible once the discard has been carried out.
type GoalQueue struct {
	mu             sync.Mutex
	primary        []*Trajectory
	temporary      []*Trajectory
	active         *Trajectory
	discardPending bool
	generation     uint64
}

// NewGoalQueue returns an empty queue.
func NewGoalQueue() *GoalQueue {
	return &GoalQueue{}
}

// Enqueue appends t. With override every queued and active trajectory is dropped first; while
// a discard is pending the overriding trajectory is parked so the discard promotes it.
func (q *GoalQueue) Enqueue(t *Trajectory, override bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if override {
		q.active = nil
		if q.discardPending {
			q.primary = nil
			q.temporary = []*Trajectory{t}
		} else {
			q.primary = []*Trajectory{t}
			q.temporary = nil
		}
		q.generation++
		return
	}
	if q.discardPending {
		q.temporary = append(q.temporary, t)
		return
	}
	q.primary = append(q.primary, t)
}

// MarkDiscard parks later enqueues until DiscardAll runs.
func (q *GoalQueue) MarkDiscard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.discardPending = true
}

// DiscardAll drops the active and queued trajectories and promotes parked ones.
func (q *GoalQueue) DiscardAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.active = nil
	q.primary = q.temporary
	q.temporary = nil
	q.discardPending = false
	q.generation++
}

// PopNextTrajectory makes the next queued trajectory active and returns a copy of it.
func (q *GoalQueue) PopNextTrajectory() (*Trajectory, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.advanceLocked() {
		return nil, false
	}
	return q.active.Clone(), true
}

func (q *GoalQueue) advanceLocked() bool {
	if len(q.primary) == 0 {
		q.active = nil
		return false
	}
	q.active = q.primary[0]
	q.primary[0] = nil
	q.primary = q.primary[1:]
	return true
}

// PopNextPoint consumes the next point, moving on to the next trajectory when the active one is spent.
func (q *GoalQueue) PopNextPoint() (Point, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.active == nil || q.active.Len() == 0 {
		if !q.advanceLocked() {
			return Point{}, false
		}
	}
	goal, _ := q.active.PopFront()
	return Point{
		Goal:         goal,
		TrajectoryID: q.active.ID(),
		Index:        q.active.Consumed() - 1,
		Last:         q.active.Len() == 0,
	}, true
}

// PushFront returns a consumed point to the active trajectory. It reports false when the
// trajectory is no longer active, for example after an override.
func (q *GoalQueue) PushFront(id uuid.UUID, goal types.PointGoal) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active == nil || q.active.ID() != id {
		return false
	}
	q.active.PushFront(goal)
	return true
}

// Size returns the number of trajectories waiting behind the active one.
func (q *GoalQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.primary) + len(q.temporary)
}

// Generation increments whenever queued work is dropped.
func (q *GoalQueue) Generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generation
}

// Depths reports queue sizes.
func (q *GoalQueue) Depths() Depths {
	q.mu.Lock()
	defer q.mu.Unlock()
	d := Depths{Pending: len(q.primary), Parked: len(q.temporary)}
	if q.active != nil {
		d.HasActive = true
		d.ActiveID = q.active.ID()
		d.ActivePoints = q.active.Len()
	}
	return d
}

// Snapshot copies the queue contents out.
func (q *GoalQueue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Snapshot
	if q.active != nil {
		g := q.active.CopyOut()
		s.Active = &g
	}
	for _, t := range q.primary {
		s.Pending = append(s.Pending, t.CopyOut())
	}
	for _, t := range q.temporary {
		s.Parked = append(s.Parked, t.CopyOut())
	}
	return s
}
