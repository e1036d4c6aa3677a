package motion

import (
	"sync"

	"github.com/google/uuid"

	"egm_trajectory/types"
)

// ExecutionProgress is a snapshot of the control cycle, published once per cycle.
type ExecutionProgress struct {
	Cycle uint64
	State ExecutionState

	HasActiveGoal    bool
	ActiveTrajectory uuid.UUID
	ActivePointIndex int
	ActiveGoal       types.PointGoal
	// RemainingPoints in the active trajectory, not counting the point in flight.
	RemainingPoints     int
	PendingTrajectories int

	DurationFactor float64
	GoalDuration   float64
	TimePassed     float64
	SampleTime     float64

	Feedback types.Feedback
	Output   types.Output
}

// Clone returns a deep copy.
func (p ExecutionProgress) Clone() ExecutionProgress {
	p.ActiveGoal = p.ActiveGoal.Clone()
	p.Feedback = p.Feedback.Clone()
	p.Output = p.Output.Clone()
	return p
}

// ProgressCell hands the latest snapshot from the control cycle to supervisory readers.
type ProgressCell struct {
	mu       sync.Mutex
	progress ExecutionProgress
	fresh    bool
}

// NewProgressCell returns an empty cell.
func NewProgressCell() *ProgressCell {
	return &ProgressCell{}
}

// Publish replaces the snapshot.
func (c *ProgressCell) Publish(p ExecutionProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = p.Clone()
	c.fresh = true
}

// Retrieve returns a copy of the latest snapshot and whether it was published since the last call.
func (c *ProgressCell) Retrieve() (ExecutionProgress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fresh := c.fresh
	c.fresh = false
	return c.progress.Clone(), fresh
}
