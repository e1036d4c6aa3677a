package egm_trajectory

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"

	"egm_trajectory/motion"
	"egm_trajectory/types"
)

// loop feeds the interface its own output back as feedback, like a robot that tracks perfectly.
type loop struct {
	t     *testing.T
	ti    *TrajectoryInterface
	fb    types.Feedback
	first bool
	out   types.Output
}

func newLoop(t *testing.T, cfg TrajectoryConfiguration) *loop {
	t.Helper()
	ti, err := NewTrajectoryInterface(cfg, logging.NewTestLogger(t))
	require.NoError(t, err)
	return &loop{
		t:     t,
		ti:    ti,
		first: true,
		fb: types.Feedback{
			Mode: types.ModeJoint,
			Robot: types.RobotState{
				Joints:    types.JointState{Position: make(types.Joints, 6), Velocity: make(types.Joints, 6)},
				Cartesian: types.CartesianState{Pose: types.NewPoseFromEuler(r3.Vector{X: 400, Z: 600}, types.Euler{})},
			},
		},
	}
}

func (l *loop) step() motion.ExecutionProgress {
	l.out = l.ti.Callback(types.Inputs{Feedback: l.fb, FirstMessage: l.first})
	l.first = false
	l.fb.Robot = l.out.Robot.Clone()
	l.fb.Time += 0.004
	p, fresh := l.ti.RetrieveExecutionProgress()
	require.True(l.t, fresh)
	return p
}

func (l *loop) until(done func(motion.ExecutionProgress) bool, limit int) motion.ExecutionProgress {
	l.t.Helper()
	for i := 0; i < limit; i++ {
		if p := l.step(); done(p) {
			return p
		}
	}
	l.t.Fatalf("condition not reached within %d cycles", limit)
	return motion.ExecutionProgress{}
}

func joints(v float64) *types.JointGoal {
	return &types.JointGoal{Position: types.Joints{v, v / 2, 0, 0, 0, 0}}
}

func TestNewTrajectoryInterfaceRejectsInvalidConfiguration(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.SplineMethod = "bezier"
	_, err := NewTrajectoryInterface(cfg, logging.NewTestLogger(t))
	assert.Error(t, err)
}

func TestTrajectoryInterfaceRunsTrajectory(t *testing.T) {
	l := newLoop(t, DefaultConfiguration())
	id := l.ti.AddTrajectory(types.TrajectoryGoal{Points: []types.PointGoal{
		{Robot: types.RobotGoal{Joints: joints(10)}, Duration: 0.2},
		{Robot: types.RobotGoal{Joints: joints(-10)}},
	}}, false)

	p := l.step()
	assert.Equal(t, id, p.ActiveTrajectory)
	assert.Equal(t, 1, p.RemainingPoints)

	l.until(func(p motion.ExecutionProgress) bool { return !p.HasActiveGoal }, 2000)
	assert.InDelta(t, -10, l.out.Robot.Joints.Position[0], 1e-9)
	assert.InDelta(t, -5, l.out.Robot.Joints.Position[1], 1e-9)

	_, fresh := l.ti.RetrieveExecutionProgress()
	assert.False(t, fresh, "no cycle ran since the last retrieval")
}

func TestTrajectoryInterfaceStopDiscardKeepsLaterTrajectories(t *testing.T) {
	l := newLoop(t, DefaultConfiguration())
	l.ti.AddTrajectory(types.TrajectoryGoal{Points: []types.PointGoal{{Robot: types.RobotGoal{Joints: joints(30)}, Duration: 1}}}, false)
	l.step()

	l.ti.Stop(true)
	later := l.ti.AddTrajectory(types.TrajectoryGoal{Points: []types.PointGoal{{Robot: types.RobotGoal{Joints: joints(5)}, Duration: 0.2}}}, false)

	p := l.step()
	assert.Equal(t, motion.RampDownRunning, p.State)
	assert.Equal(t, 1, p.PendingTrajectories)

	l.until(func(p motion.ExecutionProgress) bool { return p.State == motion.RampDownFinished }, 500)
	l.ti.Resume()
	p = l.step()
	assert.Equal(t, motion.Normal, p.State)
	assert.Equal(t, later, p.ActiveTrajectory)
}

func TestTrajectoryInterfaceOverrideAfterStopDiscard(t *testing.T) {
	l := newLoop(t, DefaultConfiguration())
	l.ti.AddTrajectory(types.TrajectoryGoal{Points: []types.PointGoal{{Robot: types.RobotGoal{Joints: joints(30)}, Duration: 1}}}, false)
	l.step()

	l.ti.Stop(true)
	replacement := l.ti.AddTrajectory(types.TrajectoryGoal{Points: []types.PointGoal{{Robot: types.RobotGoal{Joints: joints(5)}, Duration: 0.2}}}, true)

	p := l.step()
	assert.Equal(t, motion.RampDownRunning, p.State)
	assert.Equal(t, 1, p.PendingTrajectories)

	l.until(func(p motion.ExecutionProgress) bool { return p.State == motion.RampDownFinished }, 500)
	l.ti.Resume()
	p = l.step()
	assert.Equal(t, replacement, p.ActiveTrajectory)
	l.until(func(p motion.ExecutionProgress) bool { return !p.HasActiveGoal }, 500)
	assert.InDelta(t, 5, l.out.Robot.Joints.Position[0], 1e-9)
}

func TestTrajectoryInterfaceStartStaticGoalDiscardsWhileStatic(t *testing.T) {
	l := newLoop(t, DefaultConfiguration())
	discarded := l.ti.AddTrajectory(types.TrajectoryGoal{Points: []types.PointGoal{{Robot: types.RobotGoal{Joints: joints(30)}, Duration: 1}}}, false)
	l.step()

	l.ti.StartStaticGoal(false)
	p := l.step()
	require.Equal(t, motion.StaticGoalRunning, p.State)

	l.ti.StartStaticGoal(true)
	l.step()
	snap := l.ti.QueuedTrajectories()
	assert.Nil(t, snap.Active)
	assert.Empty(t, snap.Pending)

	later := l.ti.AddTrajectory(types.TrajectoryGoal{Points: []types.PointGoal{{Robot: types.RobotGoal{Joints: joints(5)}, Duration: 0.2}}}, false)
	assert.Empty(t, l.ti.QueuedTrajectories().Parked)

	l.ti.FinishStaticGoal(true)
	p = l.until(func(p motion.ExecutionProgress) bool { return p.State == motion.Normal && p.HasActiveGoal }, 1000)
	assert.Equal(t, later, p.ActiveTrajectory)
	assert.NotEqual(t, discarded, p.ActiveTrajectory)

	l.until(func(p motion.ExecutionProgress) bool { return !p.HasActiveGoal }, 500)
	assert.InDelta(t, 5, l.out.Robot.Joints.Position[0], 1e-9)
	assert.Empty(t, l.ti.QueuedTrajectories().Parked)
}

func TestTrajectoryInterfaceStaticGoal(t *testing.T) {
	l := newLoop(t, DefaultConfiguration())
	l.step()

	l.ti.StartStaticGoal(false)
	l.ti.SetStaticPositionGoal(types.StaticPositionGoal{Joints: types.Joints{3, 0, 0, 0, 0, 0}}, true)
	p := l.step()
	assert.Equal(t, motion.StaticGoalRunning, p.State)
	assert.Equal(t, motion.StaticGoalDurationShort, p.GoalDuration)

	l.until(func(p motion.ExecutionProgress) bool { return p.State == motion.StaticGoalFinished }, 100)
	assert.InDelta(t, 3, l.out.Robot.Joints.Position[0], 1e-9)

	l.ti.FinishStaticGoal(true)
	l.until(func(p motion.ExecutionProgress) bool { return p.State == motion.Normal }, 500)
}

func TestTrajectoryInterfaceConfigurationAppliesAtSessionStart(t *testing.T) {
	l := newLoop(t, DefaultConfiguration())
	l.step()

	update := DefaultConfiguration()
	update.SampleTimeS = 0.012
	l.ti.SetConfiguration(update)
	assert.Equal(t, 0.012, l.ti.Configuration().SampleTimeS)

	p := l.step()
	assert.Equal(t, motion.LowestSampleTime, p.SampleTime, "the running session keeps its configuration")

	l.first = true
	p = l.step()
	assert.Equal(t, 0.012, p.SampleTime)

	bad := DefaultConfiguration()
	bad.RampGain = -1
	l.ti.SetConfiguration(bad)
	assert.Equal(t, 0.012, l.ti.Configuration().SampleTimeS, "invalid updates are ignored")
}

func TestTrajectoryInterfaceDurationFactor(t *testing.T) {
	l := newLoop(t, DefaultConfiguration())
	l.ti.UpdateDurationFactor(2)
	l.ti.AddTrajectory(types.TrajectoryGoal{Points: []types.PointGoal{{Robot: types.RobotGoal{Joints: joints(1)}, Duration: 0.5}}}, false)
	p := l.step()
	assert.Equal(t, 2.0, p.DurationFactor)
	assert.InDelta(t, 1.0, p.GoalDuration, 1e-12)
}

func TestTrajectoryInterfaceConcurrentCallers(t *testing.T) {
	l := newLoop(t, DefaultConfiguration())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				l.ti.AddTrajectory(types.TrajectoryGoal{Points: []types.PointGoal{{Robot: types.RobotGoal{Joints: joints(float64(i))}, Duration: 0.008}}}, false)
				l.ti.UpdateDurationFactor(1)
				l.ti.RetrieveExecutionProgress()
			}
		}(i)
	}
	for i := 0; i < 200; i++ {
		l.out = l.ti.Callback(types.Inputs{Feedback: l.fb, FirstMessage: i == 0})
		l.fb.Robot = l.out.Robot.Clone()
	}
	wg.Wait()
	l.first = false
	l.until(func(p motion.ExecutionProgress) bool { return !p.HasActiveGoal && p.PendingTrajectories == 0 }, 5000)
}

func TestLoadTrajectoryFile(t *testing.T) {
	t.Run("round trips yaml", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "pick.yaml")
		goal := types.TrajectoryGoal{Points: []types.PointGoal{
			{Robot: types.RobotGoal{Joints: joints(10)}, Duration: 1, Reach: true},
			{Robot: types.RobotGoal{Cartesian: &types.CartesianGoal{Pose: types.NewPoseFromEuler(r3.Vector{X: 1, Y: 2, Z: 3}, types.Euler{Yaw: 45})}}},
		}}
		require.NoError(t, SaveTrajectoryFile(file, goal))

		loaded, err := LoadTrajectoryFile(file)
		require.NoError(t, err)
		assert.Equal(t, goal, loaded)
	})

	t.Run("reads hand written json", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "wave.json")
		content := `{"points": [{"robot": {"joints": {"position": [0, 10, 20, 0, 0, 0]}}, "duration": 0.5}]}`
		require.NoError(t, os.WriteFile(file, []byte(content), 0644))

		loaded, err := LoadTrajectoryFile(file)
		require.NoError(t, err)
		require.Len(t, loaded.Points, 1)
		assert.Equal(t, types.Joints{0, 10, 20, 0, 0, 0}, loaded.Points[0].Robot.Joints.Position)
	})

	t.Run("rejects points without a target", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "empty.json")
		require.NoError(t, os.WriteFile(file, []byte(`{"points": [{"duration": 1}]}`), 0644))
		_, err := LoadTrajectoryFile(file)
		assert.Error(t, err)
	})

	t.Run("rejects missing files", func(t *testing.T) {
		_, err := LoadTrajectoryFile("/nonexistent/trajectory.json")
		assert.Error(t, err)
	})
}
