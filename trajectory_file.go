package egm_trajectory

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"egm_trajectory/types"
)

// LoadTrajectoryFile reads a trajectory from a .json, .yaml or .yml file. Relative paths resolve
// against EGM_TRAJECTORY_DATA.
func LoadTrajectoryFile(path string) (types.TrajectoryGoal, error) {
	var goal types.TrajectoryGoal
	path = ResolveDataPath(path)
	if err := decodeFile(path, &goal); err != nil {
		return goal, err
	}
	if len(goal.Points) == 0 {
		return goal, errors.Errorf("trajectory file %s has no points", path)
	}
	for i, p := range goal.Points {
		if p.Robot.Joints == nil && p.Robot.Cartesian == nil && p.External == nil {
			return goal, errors.Errorf("point %d in %s has no target", i, path)
		}
		if p.Duration < 0 {
			return goal, errors.Errorf("point %d in %s has negative duration %v", i, path, p.Duration)
		}
	}
	return goal, nil
}

// SaveTrajectoryFile writes goal in the format selected by the file extension.
func SaveTrajectoryFile(path string, goal types.TrajectoryGoal) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(goal)
	} else {
		data, err = json.MarshalIndent(goal, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal trajectory")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write trajectory file %s", path)
	}
	return nil
}
