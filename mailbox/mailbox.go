// Package mailbox carries supervisory commands to the control cycle without blocking it.
package mailbox

import (
	"sync"

	"egm_trajectory/types"
)

// DefaultCapacity is the number of commands buffered before the oldest are folded together.
const DefaultCapacity = 64

// PendingCommands is the accumulated intent of every command since the last drain.
// Boolean intents are OR-ed; payloads are last write wins, and a static position
// payload and a static velocity payload supersede each other.
type PendingCommands struct {
	Stop    bool
	Discard bool
	Resume  bool
	// RampDown asks for the current motion to be brought to rest.
	RampDown bool

	DurationFactorUpdate bool
	DurationFactor       float64

	StaticGoalStart  bool
	StaticGoalFinish bool

	StaticPositionGoalUpdate bool
	StaticPositionGoal       types.StaticPositionGoal
	StaticVelocityGoalUpdate bool
	StaticVelocityGoal       types.StaticVelocityGoal
	StaticGoalFastUpdate     bool
}

// Any reports whether any intent is set.
func (p PendingCommands) Any() bool {
	return p.Stop || p.Discard || p.Resume || p.RampDown || p.DurationFactorUpdate ||
		p.StaticGoalStart || p.StaticGoalFinish || p.StaticPositionGoalUpdate || p.StaticVelocityGoalUpdate
}

// Merge folds later intents in other into p.
func (p *PendingCommands) Merge(other PendingCommands) {
	p.Stop = p.Stop || other.Stop
	p.Discard = p.Discard || other.Discard
	p.Resume = p.Resume || other.Resume
	p.RampDown = p.RampDown || other.RampDown
	p.StaticGoalStart = p.StaticGoalStart || other.StaticGoalStart
	p.StaticGoalFinish = p.StaticGoalFinish || other.StaticGoalFinish
	if other.DurationFactorUpdate {
		p.DurationFactorUpdate = true
		p.DurationFactor = other.DurationFactor
	}
	switch {
	case other.StaticPositionGoalUpdate:
		SetStaticPositionGoal{Goal: other.StaticPositionGoal, Fast: other.StaticGoalFastUpdate}.apply(p)
	case other.StaticVelocityGoalUpdate:
		SetStaticVelocityGoal{Goal: other.StaticVelocityGoal, Fast: other.StaticGoalFastUpdate}.apply(p)
	}
}

// Mailbox is a bounded multi-producer, single-consumer command buffer.
// Posting never blocks; on overflow the oldest command is folded into an accumulator.
type Mailbox struct {
	mu       sync.Mutex
	commands []Command
	capacity int
	folded   PendingCommands
}

// New returns a mailbox buffering up to capacity commands.
func New(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Mailbox{capacity: capacity, commands: make([]Command, 0, capacity)}
}

// Post queues c for the next drain.
func (m *Mailbox) Post(c Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commands) == m.capacity {
		m.commands[0].apply(&m.folded)
		copy(m.commands, m.commands[1:])
		m.commands = m.commands[:len(m.commands)-1]
	}
	m.commands = append(m.commands, c)
}

// Drain folds every posted command, in order, and empties the mailbox.
func (m *Mailbox) Drain() PendingCommands {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.folded
	for i, c := range m.commands {
		c.apply(&p)
		m.commands[i] = nil
	}
	m.commands = m.commands[:0]
	m.folded = PendingCommands{}
	return p
}

// Len returns the number of buffered commands, not counting folded ones.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commands)
}
