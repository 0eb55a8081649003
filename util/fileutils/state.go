package fileutils

import (
	"encoding/json"
	"os"

	"github.com/packforge/launcher/util"
)

// State is the launcher's own persisted state: the profile list and which
// profile is active. Loader installs are tracked through the profile registry,
// not here.
type State struct {
	ActiveProfile string         `json:"activeProfile"`
	Profiles      []util.Profile `json:"profiles"`
}

func LoadState(p Paths) (State, error) {
	data, err := os.ReadFile(p.StateFile())
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	return state, nil
}

// SaveState writes the state file through a tmp+rename so a crash mid-write
// cannot corrupt it.
func SaveState(p Paths, state State) error {
	data, err := json.MarshalIndent(state, "", " ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(p.WorkDir, 0o700); err != nil {
		return err
	}
	tmp := p.StateFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, p.StateFile()); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
