package egm_trajectory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"gopkg.in/yaml.v3"

	"egm_trajectory/interpolation"
	"egm_trajectory/mailbox"
	"egm_trajectory/motion"
	"egm_trajectory/types"
)

// DataDirEnv names the directory relative configuration and trajectory files resolve against.
const DataDirEnv = "EGM_TRAJECTORY_DATA"

// Sample time policies.
const (
	SampleTimeFixed    = "fixed"
	SampleTimeMeasured = "measured"
)

// TrajectoryConfiguration is the user-facing configuration of the trajectory engine. Zero
// fields take their defaults in Validate.
type TrajectoryConfiguration struct {
	SplineMethod string `json:"spline_method,omitempty" yaml:"spline_method,omitempty"`

	SampleTimePolicy string  `json:"sample_time_policy,omitempty" yaml:"sample_time_policy,omitempty"`
	SampleTimeS      float64 `json:"sample_time_s,omitempty" yaml:"sample_time_s,omitempty"`

	PositionToleranceMM float64 `json:"position_tolerance_mm,omitempty" yaml:"position_tolerance_mm,omitempty"`
	AngleToleranceDegs  float64 `json:"angle_tolerance_degs,omitempty" yaml:"angle_tolerance_degs,omitempty"`

	JointSpeedDegsPerSec   float64 `json:"joint_speed_degs_per_sec,omitempty" yaml:"joint_speed_degs_per_sec,omitempty"`
	LinearSpeedMMPerSec    float64 `json:"linear_speed_mm_per_sec,omitempty" yaml:"linear_speed_mm_per_sec,omitempty"`
	AngularSpeedDegsPerSec float64 `json:"angular_speed_degs_per_sec,omitempty" yaml:"angular_speed_degs_per_sec,omitempty"`

	RampGain float64 `json:"ramp_gain,omitempty" yaml:"ramp_gain,omitempty"`

	// Orientation is "quaternion" or "euler".
	Orientation string `json:"orientation,omitempty" yaml:"orientation,omitempty"`

	MailboxCapacity int `json:"mailbox_capacity,omitempty" yaml:"mailbox_capacity,omitempty"`
}

// DefaultConfiguration returns a fully populated configuration.
func DefaultConfiguration() TrajectoryConfiguration {
	var cfg TrajectoryConfiguration
	cfg.fillDefaults()
	return cfg
}

func (cfg *TrajectoryConfiguration) fillDefaults() {
	defaults := motion.DefaultSettings()
	if cfg.SplineMethod == "" {
		cfg.SplineMethod = defaults.Method.String()
	}
	if cfg.SampleTimePolicy == "" {
		cfg.SampleTimePolicy = SampleTimeFixed
	}
	if cfg.SampleTimeS == 0 {
		cfg.SampleTimeS = motion.LowestSampleTime
	}
	if cfg.PositionToleranceMM == 0 {
		cfg.PositionToleranceMM = defaults.PositionTolerance
	}
	if cfg.AngleToleranceDegs == 0 {
		cfg.AngleToleranceDegs = defaults.AngleTolerance
	}
	if cfg.JointSpeedDegsPerSec == 0 {
		cfg.JointSpeedDegsPerSec = defaults.JointSpeed
	}
	if cfg.LinearSpeedMMPerSec == 0 {
		cfg.LinearSpeedMMPerSec = defaults.LinearSpeed
	}
	if cfg.AngularSpeedDegsPerSec == 0 {
		cfg.AngularSpeedDegsPerSec = defaults.AngularSpeed
	}
	if cfg.Orientation == "" {
		cfg.Orientation = defaults.Rotation.String()
	}
	if cfg.MailboxCapacity == 0 {
		cfg.MailboxCapacity = mailbox.DefaultCapacity
	}
}

// Validate fills in defaults and reports every out-of-range option.
func (cfg *TrajectoryConfiguration) Validate(path string) error {
	cfg.fillDefaults()

	var err error
	if _, perr := interpolation.ParseMethod(cfg.SplineMethod); perr != nil {
		err = multierr.Append(err, perr)
	}
	if _, perr := types.ParseRotation(cfg.Orientation); perr != nil {
		err = multierr.Append(err, perr)
	}
	if cfg.SampleTimePolicy != SampleTimeFixed && cfg.SampleTimePolicy != SampleTimeMeasured {
		err = multierr.Append(err, errors.Errorf("sample_time_policy must be %q or %q, got %q",
			SampleTimeFixed, SampleTimeMeasured, cfg.SampleTimePolicy))
	}
	if cfg.SampleTimeS < motion.LowestSampleTime {
		err = multierr.Append(err, errors.Errorf("sample_time_s must be at least %v, got %v",
			motion.LowestSampleTime, cfg.SampleTimeS))
	}
	for name, v := range map[string]float64{
		"position_tolerance_mm":      cfg.PositionToleranceMM,
		"angle_tolerance_degs":       cfg.AngleToleranceDegs,
		"joint_speed_degs_per_sec":   cfg.JointSpeedDegsPerSec,
		"linear_speed_mm_per_sec":    cfg.LinearSpeedMMPerSec,
		"angular_speed_degs_per_sec": cfg.AngularSpeedDegsPerSec,
	} {
		if v <= 0 {
			err = multierr.Append(err, errors.Errorf("%s must be positive, got %v", name, v))
		}
	}
	if cfg.RampGain < 0 {
		err = multierr.Append(err, errors.Errorf("ramp_gain must not be negative, got %v", cfg.RampGain))
	}
	if cfg.MailboxCapacity < 0 {
		err = multierr.Append(err, errors.Errorf("mailbox_capacity must not be negative, got %d", cfg.MailboxCapacity))
	}

	if err != nil {
		if path == "" {
			path = "configuration"
		}
		return errors.Wrapf(err, "invalid %s", path)
	}
	return nil
}

// MotionSettings converts a validated configuration to motion settings.
func (cfg TrajectoryConfiguration) MotionSettings() motion.Settings {
	method, _ := interpolation.ParseMethod(cfg.SplineMethod)
	rotation, _ := types.ParseRotation(cfg.Orientation)
	return motion.Settings{
		Method:            method,
		Rotation:          rotation,
		PositionTolerance: cfg.PositionToleranceMM,
		AngleTolerance:    cfg.AngleToleranceDegs,
		JointSpeed:        cfg.JointSpeedDegsPerSec,
		LinearSpeed:       cfg.LinearSpeedMMPerSec,
		AngularSpeed:      cfg.AngularSpeedDegsPerSec,
		RampGain:          cfg.RampGain,
	}
}

// ResolveDataPath makes a relative path absolute against EGM_TRAJECTORY_DATA.
func ResolveDataPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	dataDir := os.Getenv(DataDirEnv)
	if dataDir == "" {
		dataDir = "/tmp" // Fallback if EGM_TRAJECTORY_DATA not set
	}
	return filepath.Join(dataDir, path)
}

// LoadConfiguration loads configuration from file or returns the defaults.
// Returns (configuration, fromFile) where fromFile indicates if loaded from file
func LoadConfiguration(path string, logger logging.Logger) (TrajectoryConfiguration, bool) {
	if path == "" {
		if logger != nil {
			logger.Debug("No configuration file specified, using default configuration")
		}
		return DefaultConfiguration(), false
	}

	path = ResolveDataPath(path)
	cfg, err := ReadConfigurationFile(path)
	if err != nil {
		if logger != nil {
			logger.Warnf("Failed to load configuration from %s: %v, using default configuration", path, err)
		}
		return DefaultConfiguration(), false
	}

	if logger != nil {
		logger.Infof("Successfully loaded configuration from %s", path)
	}
	return cfg, true
}

// ReadConfigurationFile decodes a .json, .yaml or .yml file and validates it.
func ReadConfigurationFile(path string) (TrajectoryConfiguration, error) {
	var cfg TrajectoryConfiguration
	if err := decodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(path); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfigurationFile writes cfg in the format selected by the file extension.
func SaveConfigurationFile(path string, cfg TrajectoryConfiguration) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal configuration")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write configuration file %s", path)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func decodeFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, v)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		return errors.Errorf("unsupported file extension %q for %s", ext, path)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}
	return nil
}

// ConfigurationCell double-buffers the configuration: an update waits as pending until the
// control cycle starts a new session.
type ConfigurationCell struct {
	mu      sync.Mutex
	active  TrajectoryConfiguration
	pending *TrajectoryConfiguration
}

// NewConfigurationCell returns a cell with cfg active and nothing pending.
func NewConfigurationCell(cfg TrajectoryConfiguration) *ConfigurationCell {
	return &ConfigurationCell{active: cfg}
}

// Get returns the most recent configuration, pending or active.
func (c *ConfigurationCell) Get() TrajectoryConfiguration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return *c.pending
	}
	return c.active
}

// Active returns the configuration the control cycle runs with.
func (c *ConfigurationCell) Active() TrajectoryConfiguration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Set stores cfg as the pending update, replacing any earlier one.
func (c *ConfigurationCell) Set(cfg TrajectoryConfiguration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &cfg
}

// ApplyPending promotes the pending update, if any, and returns the active configuration.
func (c *ConfigurationCell) ApplyPending() (TrajectoryConfiguration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return c.active, false
	}
	c.active = *c.pending
	c.pending = nil
	return c.active, true
}
