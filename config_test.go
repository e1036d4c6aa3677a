package egm_trajectory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"

	"egm_trajectory/interpolation"
	"egm_trajectory/types"
)

func TestLoadConfigurationFromFile(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("returns fromFile=true when json file exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		file := filepath.Join(tmpDir, "trajectory.json")
		want := DefaultConfiguration()
		want.SplineMethod = "quintic"
		want.RampGain = 1.5
		require.NoError(t, SaveConfigurationFile(file, want))

		cfg, fromFile := LoadConfiguration(file, logger)
		assert.True(t, fromFile)
		assert.Equal(t, want, cfg)
	})

	t.Run("returns fromFile=true when yaml file exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		file := filepath.Join(tmpDir, "trajectory.yaml")
		content := "spline_method: linear\norientation: euler\nsample_time_policy: measured\n"
		require.NoError(t, os.WriteFile(file, []byte(content), 0644))

		cfg, fromFile := LoadConfiguration(file, logger)
		assert.True(t, fromFile)
		assert.Equal(t, "linear", cfg.SplineMethod)
		assert.Equal(t, SampleTimeMeasured, cfg.SampleTimePolicy)
		assert.Equal(t, DefaultConfiguration().JointSpeedDegsPerSec, cfg.JointSpeedDegsPerSec, "missing options get defaults")
	})

	t.Run("resolves relative paths against the data directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv(DataDirEnv, tmpDir)
		require.NoError(t, SaveConfigurationFile(filepath.Join(tmpDir, "relative.yml"), DefaultConfiguration()))

		_, fromFile := LoadConfiguration("relative.yml", logger)
		assert.True(t, fromFile)
	})

	t.Run("returns fromFile=false when no file configured", func(t *testing.T) {
		cfg, fromFile := LoadConfiguration("", logger)
		assert.False(t, fromFile)
		assert.Equal(t, DefaultConfiguration(), cfg)
	})

	t.Run("returns fromFile=false when file doesn't exist", func(t *testing.T) {
		cfg, fromFile := LoadConfiguration("/nonexistent/path/trajectory.json", logger)
		assert.False(t, fromFile)
		assert.Equal(t, DefaultConfiguration(), cfg)
	})

	t.Run("returns fromFile=false when file is invalid", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(file, []byte(`{"spline_method": "bezier"}`), 0644))

		cfg, fromFile := LoadConfiguration(file, logger)
		assert.False(t, fromFile)
		assert.Equal(t, DefaultConfiguration(), cfg)
	})
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := TrajectoryConfiguration{
		SplineMethod:        "bezier",
		SampleTimePolicy:    "guess",
		SampleTimeS:         0.001,
		PositionToleranceMM: -1,
		RampGain:            -2,
	}
	err := cfg.Validate("robot.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "robot.yaml")
	assert.Len(t, multierr.Errors(errors.Cause(err)), 5)
}

func TestMotionSettings(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.SplineMethod = "linear"
	cfg.Orientation = "euler"
	cfg.LinearSpeedMMPerSec = 100
	require.NoError(t, cfg.Validate(""))

	s := cfg.MotionSettings()
	assert.Equal(t, interpolation.Linear, s.Method)
	assert.Equal(t, types.RotationEuler, s.Rotation)
	assert.Equal(t, 100.0, s.LinearSpeed)
}

func TestConfigurationCell(t *testing.T) {
	initial := DefaultConfiguration()
	c := NewConfigurationCell(initial)

	_, applied := c.ApplyPending()
	assert.False(t, applied)

	update := DefaultConfiguration()
	update.RampGain = 3
	c.Set(update)
	assert.Equal(t, update, c.Get(), "readers see the latest update")
	assert.Equal(t, initial, c.Active(), "the running configuration is untouched")

	active, applied := c.ApplyPending()
	assert.True(t, applied)
	assert.Equal(t, update, active)
	assert.Equal(t, update, c.Active())
}
