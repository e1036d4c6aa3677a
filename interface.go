// Package egm_trajectory drives a robot's motion reference stream: supervisory callers queue
// trajectories and issue stop, resume and static-goal commands from any goroutine, while the
// transport calls Callback once per feedback sample to obtain the next reference.
package egm_trajectory

import (
	"github.com/google/uuid"
	"go.viam.com/rdk/logging"

	"egm_trajectory/mailbox"
	"egm_trajectory/motion"
	"egm_trajectory/queue"
	"egm_trajectory/types"
)

// TrajectoryInterface is the public face of the motion engine.
//
// All methods except Callback are safe to call from any goroutine and never block on the
// control cycle. Callback must only be called from the single control goroutine.
type TrajectoryInterface struct {
	logger logging.Logger

	config   *ConfigurationCell
	goals    *queue.GoalQueue
	commands *mailbox.Mailbox
	progress *motion.ProgressCell

	// Owned by the control goroutine.
	machine    *motion.Machine
	sampleTime *sampleTimeEstimator
}

// NewTrajectoryInterface validates cfg and builds an idle engine.
func NewTrajectoryInterface(cfg TrajectoryConfiguration, logger logging.Logger) (*TrajectoryInterface, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}

	ti := &TrajectoryInterface{
		logger:     logger,
		config:     NewConfigurationCell(cfg),
		goals:      queue.NewGoalQueue(),
		commands:   mailbox.New(cfg.MailboxCapacity),
		progress:   motion.NewProgressCell(),
		sampleTime: newSampleTimeEstimator(cfg),
	}
	ti.machine = motion.NewMachine(cfg.MotionSettings(), ti.goals, ti.commands, ti.progress, logger)

	logger.Debugf("Trajectory engine ready: spline=%s orientation=%s sample_time=%s/%.3fs",
		cfg.SplineMethod, cfg.Orientation, cfg.SampleTimePolicy, cfg.SampleTimeS)
	return ti, nil
}

// Configuration returns the most recently set configuration, which may not be active yet.
func (ti *TrajectoryInterface) Configuration() TrajectoryConfiguration {
	return ti.config.Get()
}

// SetConfiguration stages cfg for the next session. An invalid configuration is ignored.
func (ti *TrajectoryInterface) SetConfiguration(cfg TrajectoryConfiguration) {
	if err := cfg.Validate(""); err != nil {
		ti.logger.Warnf("Ignoring configuration update: %v", err)
		return
	}
	ti.config.Set(cfg)
	ti.logger.Debug("Configuration staged for the next session")
}

// AddTrajectory queues goal and returns the identity it will be reported under. With override
// set, everything queued or executing is replaced.
func (ti *TrajectoryInterface) AddTrajectory(goal types.TrajectoryGoal, override bool) uuid.UUID {
	tr := queue.NewTrajectory(goal)
	if tr.Len() == 0 {
		ti.logger.Warnf("Trajectory %s has no points", tr.ID())
	}
	ti.goals.Enqueue(tr, override)
	ti.logger.Debugf("Queued trajectory %s with %d points (override=%t)", tr.ID(), tr.Len(), override)
	return tr.ID()
}

// Stop ramps the robot down. With discard set, all queued trajectories are dropped; trajectories
// added after Stop returns survive the discard.
func (ti *TrajectoryInterface) Stop(discard bool) {
	if discard {
		ti.goals.MarkDiscard()
	}
	ti.post(mailbox.Stop{Discard: discard})
}

// Resume continues trajectory execution once a stop has ramped down.
func (ti *TrajectoryInterface) Resume() {
	ti.post(mailbox.Resume{})
}

// UpdateDurationFactor stretches goal durations by factor, which must lie in [1, 5].
func (ti *TrajectoryInterface) UpdateDurationFactor(factor float64) {
	ti.post(mailbox.UpdateDurationFactor{Factor: factor})
}

// StartStaticGoal leaves trajectory execution and holds position until a static goal arrives.
func (ti *TrajectoryInterface) StartStaticGoal(discard bool) {
	if discard {
		ti.goals.MarkDiscard()
	}
	ti.post(mailbox.StartStaticGoal{Discard: discard})
}

// SetStaticPositionGoal targets a position while in static goal mode. Fast goals are reached
// within the short static duration.
func (ti *TrajectoryInterface) SetStaticPositionGoal(goal types.StaticPositionGoal, fast bool) {
	ti.post(mailbox.SetStaticPositionGoal{Goal: goal, Fast: fast})
}

// SetStaticVelocityGoal targets a velocity while in static goal mode.
func (ti *TrajectoryInterface) SetStaticVelocityGoal(goal types.StaticVelocityGoal, fast bool) {
	ti.post(mailbox.SetStaticVelocityGoal{Goal: goal, Fast: fast})
}

// FinishStaticGoal ramps static motion down, then resumes trajectories if resume is set.
func (ti *TrajectoryInterface) FinishStaticGoal(resume bool) {
	ti.post(mailbox.FinishStaticGoal{Resume: resume})
}

// RetrieveExecutionProgress returns the latest cycle snapshot and whether it is new since the
// previous call.
func (ti *TrajectoryInterface) RetrieveExecutionProgress() (motion.ExecutionProgress, bool) {
	return ti.progress.Retrieve()
}

// QueuedTrajectories returns a copy of what is queued and executing.
func (ti *TrajectoryInterface) QueuedTrajectories() queue.Snapshot {
	return ti.goals.Snapshot()
}

func (ti *TrajectoryInterface) post(c mailbox.Command) {
	ti.logger.Debugf("Posting %s", c)
	ti.commands.Post(c)
}

// Callback runs one control cycle for a feedback sample and returns the reference to send.
func (ti *TrajectoryInterface) Callback(in types.Inputs) types.Output {
	if in.FirstMessage {
		if cfg, applied := ti.config.ApplyPending(); applied {
			ti.machine.UpdateSettings(cfg.MotionSettings())
			ti.sampleTime.configure(cfg)
			ti.logger.Infof("Applied new configuration: spline=%s orientation=%s", cfg.SplineMethod, cfg.Orientation)
		}
		ti.sampleTime.reset()
	}
	dt := ti.sampleTime.update(in.Feedback.Time)
	return ti.machine.Process(in, dt)
}
