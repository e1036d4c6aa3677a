package motion

import (
	"github.com/google/uuid"
	"go.viam.com/rdk/logging"

	"egm_trajectory/mailbox"
	"egm_trajectory/queue"
	"egm_trajectory/types"
)

// GoalSource is the control cycle's view of the goal queue.
type GoalSource interface {
	PopNextPoint() (queue.Point, bool)
	PushFront(id uuid.UUID, goal types.PointGoal) bool
	DiscardAll()
	Generation() uint64
	Depths() queue.Depths
}

// CommandSource yields the commands posted since the previous cycle.
type CommandSource interface {
	Drain() mailbox.PendingCommands
}

// ProgressSink receives one snapshot per cycle.
type ProgressSink interface {
	Publish(ExecutionProgress)
}

type decisionData struct {
	pending       mailbox.PendingCommands
	hasNewGoal    bool
	hasActiveGoal bool
	active        queue.Point
	generation    uint64
}

// Machine runs one control cycle per feedback sample: it applies supervisory commands,
// picks the goal to follow and produces the shaped reference.
//
// Machine is not safe for concurrent use; all calls come from the control cycle.
type Machine struct {
	logger   logging.Logger
	goals    GoalSource
	commands CommandSource
	progress ProgressSink

	settings    Settings
	step        *MotionStep
	ramp        *RampController
	state       ExecutionState
	decision    decisionData
	initialized bool
	cycle       uint64
}

// NewMachine returns a machine in StateNormal with no active goal.
func NewMachine(settings Settings, goals GoalSource, commands CommandSource, progress ProgressSink, logger logging.Logger) *Machine {
	return &Machine{
		logger:   logger,
		goals:    goals,
		commands: commands,
		progress: progress,
		settings: settings,
		step:     NewMotionStep(settings, nil),
		ramp:     NewRampController(),
		state:    Normal,
	}
}

// UpdateSettings applies new settings from the next goal on.
func (m *Machine) UpdateSettings(settings Settings) {
	m.settings = settings
	m.step.UpdateSettings(settings)
}

// State returns the current execution state.
func (m *Machine) State() ExecutionState {
	return m.state
}

// Step exposes the motion step.
func (m *Machine) Step() *MotionStep {
	return m.step
}

// Process runs one cycle.
func (m *Machine) Process(in types.Inputs, sampleTime float64) types.Output {
	m.cycle++
	if in.FirstMessage || !m.initialized {
		m.resetSession(in.Feedback)
	}
	m.step.SetProcessData(in.Feedback, sampleTime)
	m.decision.hasNewGoal = false

	m.prepareDecisionData()
	switch m.state.State() {
	case StateRampDown:
		m.processRampDownState()
	case StateStaticGoal:
		m.processStaticGoalState()
	default:
		m.processNormalState()
	}

	if m.decision.hasNewGoal {
		m.ramp.Update(m.state.State(), m.step, m.settings)
		m.step.UpdateInterpolator()
	}
	m.step.EvaluateInterpolator()
	out := m.ramp.Calculate(m.step)
	m.publish(out)
	return out
}

// resetSession returns to StateNormal holding the feedback position. A point in flight is
// handed back to its trajectory so it runs again in the new session.
func (m *Machine) resetSession(fb types.Feedback) {
	if m.initialized {
		m.logger.Infof("New session, resetting from %s", m.state)
	}
	if m.state == Normal && m.decision.hasActiveGoal {
		m.unconsume()
	}
	m.initialized = true
	m.state = Normal
	m.decision.hasActiveGoal = false
	m.decision.generation = m.goals.Generation()
	m.step.Reset(fb)
	m.ramp.Reset()
}

func (m *Machine) unconsume() {
	a := m.decision.active
	if !m.goals.PushFront(a.TrajectoryID, a.Goal) {
		m.logger.Debugf("Trajectory %s no longer active, dropping point %d", a.TrajectoryID, a.Index)
	}
}

// prepareDecisionData folds new commands into the carried ones and applies state transitions.
func (m *Machine) prepareDecisionData() {
	m.decision.pending.Merge(m.commands.Drain())
	p := &m.decision.pending

	if p.DurationFactorUpdate {
		planned := m.step.Duration()
		switch {
		case !m.step.ScaleDuration(p.DurationFactor):
			m.logger.Warnf("Ignoring duration factor %.3f outside [%.0f, %.0f]",
				p.DurationFactor, MinDurationFactor, MaxDurationFactor)
		case m.ramp.Active() && m.step.Duration() != planned:
			// The re-planned goal starts from the blended reference; blend over its new duration.
			m.ramp.Update(m.state.State(), m.step, m.settings)
		}
		p.DurationFactorUpdate = false
	}

	if gen := m.goals.Generation(); gen != m.decision.generation {
		m.decision.generation = gen
		if m.state == Normal && m.decision.hasActiveGoal {
			m.logger.Debugf("Trajectory %s overridden, abandoning point %d", m.decision.active.TrajectoryID, m.decision.active.Index)
			m.decision.hasActiveGoal = false
		}
	}

	if p.Stop {
		switch m.state.State() {
		case StateNormal, StateStaticGoal:
			m.leaveNormal(p.Discard)
			m.enter(RampDownRunning)
			m.step.PrepareRampDownGoal(true)
		case StateRampDown:
			m.discard(p.Discard)
		}
		p.Stop = false
		p.Discard = false
	}

	if p.StaticGoalStart {
		if m.state.State() != StateStaticGoal {
			m.leaveNormal(p.Discard)
			m.enter(StaticGoalRunning)
			if !p.StaticPositionGoalUpdate && !p.StaticVelocityGoalUpdate {
				m.step.PrepareRampDownGoal(true)
			}
		} else {
			m.discard(p.Discard)
		}
		p.StaticGoalStart = false
		p.Discard = false
	}

	if m.state.State() == StateStaticGoal {
		switch {
		case p.StaticPositionGoalUpdate:
			m.step.PrepareStaticPositionGoal(p.StaticPositionGoal, p.StaticGoalFastUpdate)
			m.enter(StaticGoalRunning)
		case p.StaticVelocityGoalUpdate:
			m.step.PrepareStaticVelocityGoal(p.StaticVelocityGoal, p.StaticGoalFastUpdate)
			m.enter(StaticGoalRunning)
		}
		p.StaticPositionGoalUpdate = false
		p.StaticVelocityGoalUpdate = false
		p.StaticGoalFastUpdate = false
	}

	if p.StaticGoalFinish {
		if m.state.State() == StateStaticGoal {
			// A velocity goal has to be braked; a position goal is already settling.
			doStop := m.step.IsVelocityGoal()
			m.enter(RampDownRunning)
			m.step.PrepareRampDownGoal(doStop)
		}
		p.StaticGoalFinish = false
		p.RampDown = false
	}

	if p.RampDown {
		if m.state.State() != StateRampDown {
			m.leaveNormal(false)
			m.enter(RampDownRunning)
			m.step.PrepareRampDownGoal(false)
		}
		p.RampDown = false
	}

	if p.Resume {
		switch m.state {
		case RampDownFinished:
			m.logger.Info("Resuming trajectory execution")
			m.state = Normal
			m.decision.hasActiveGoal = false
			p.Resume = false
		case RampDownRunning:
			// Carried until the ramp down has finished.
		default:
			p.Resume = false
		}
	}
}

// leaveNormal gives back the point in flight and optionally discards all queued trajectories.
func (m *Machine) leaveNormal(discard bool) {
	if m.state == Normal && m.decision.hasActiveGoal {
		m.unconsume()
	}
	m.decision.hasActiveGoal = false
	m.discard(discard)
}

func (m *Machine) discard(discard bool) {
	if !discard {
		return
	}
	m.goals.DiscardAll()
	m.decision.generation = m.goals.Generation()
	m.logger.Info("Discarded all queued trajectories")
}

func (m *Machine) enter(state ExecutionState) {
	if m.state != state {
		m.logger.Debugf("Execution state %s -> %s", m.state, state)
	}
	m.state = state
	m.decision.hasNewGoal = true
}

func (m *Machine) processNormalState() {
	if m.decision.hasActiveGoal {
		if !m.step.InterpolationDurationReached() {
			return
		}
		if m.step.Reach() && !m.step.ConditionMet() {
			return
		}
	}

	pt, ok := m.goals.PopNextPoint()
	if !ok {
		if m.decision.hasActiveGoal {
			m.logger.Debugf("Trajectory %s finished", m.decision.active.TrajectoryID)
		}
		m.decision.hasActiveGoal = false
		return
	}
	if pt.Index == 0 {
		m.logger.Debugf("Starting trajectory %s", pt.TrajectoryID)
	}
	m.step.PrepareNormalGoal(pt.Goal, pt.Last)
	m.decision.active = pt
	m.decision.hasActiveGoal = true
	m.decision.hasNewGoal = true
}

func (m *Machine) processRampDownState() {
	if m.state == RampDownRunning && !m.decision.hasNewGoal && m.step.InterpolationDurationReached() {
		m.logger.Debug("Ramp down finished")
		m.state = RampDownFinished
	}
}

func (m *Machine) processStaticGoalState() {
	if m.state == StaticGoalRunning && !m.decision.hasNewGoal && m.step.InterpolationDurationReached() {
		m.state = StaticGoalFinished
	}
}

func (m *Machine) publish(out types.Output) {
	d := m.goals.Depths()
	p := ExecutionProgress{
		Cycle:               m.cycle,
		State:               m.state,
		HasActiveGoal:       m.decision.hasActiveGoal,
		PendingTrajectories: d.Pending + d.Parked,
		DurationFactor:      m.step.Data.DurationFactor,
		GoalDuration:        m.step.Duration(),
		TimePassed:          m.step.Data.TimePassed,
		SampleTime:          m.step.Data.SampleTime,
		Feedback:            m.step.Data.Feedback,
		Output:              out,
	}
	if m.decision.hasActiveGoal {
		p.ActiveTrajectory = m.decision.active.TrajectoryID
		p.ActivePointIndex = m.decision.active.Index
		p.ActiveGoal = m.decision.active.Goal
		if d.HasActive && d.ActiveID == m.decision.active.TrajectoryID {
			p.RemainingPoints = d.ActivePoints
		}
	}
	m.progress.Publish(p)
}
