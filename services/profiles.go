package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/packforge/launcher/util"
	"github.com/packforge/launcher/util/fileutils"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileStore persists launch profiles in the launcher state file. Lookups
// are case-insensitive on name, matching how users type them.
type ProfileStore struct {
	paths fileutils.Paths
	log   zerolog.Logger
}

func NewProfileStore(paths fileutils.Paths, logger zerolog.Logger) *ProfileStore {
	return &ProfileStore{paths: paths, log: logger}
}

func (p *ProfileStore) Create(profile util.Profile) (util.Profile, error) {
	if profile.Name == "" {
		return util.Profile{}, fmt.Errorf("create profile: empty name")
	}
	if profile.MinecraftVersion == "" {
		return util.Profile{}, fmt.Errorf("create profile: empty version")
	}

	state, err := fileutils.LoadState(p.paths)
	if err != nil {
		return util.Profile{}, err
	}
	for _, existing := range state.Profiles {
		if strings.EqualFold(existing.Name, profile.Name) {
			return util.Profile{}, fmt.Errorf("profile %q already exists", profile.Name)
		}
	}

	if profile.Id == "" {
		profile.Id = uuid.NewString()
	}
	if profile.Loader == "" {
		profile.Loader = util.LoaderVanilla
	}

	state.Profiles = append(state.Profiles, profile)
	if err := fileutils.SaveState(p.paths, state); err != nil {
		return util.Profile{}, err
	}

	p.log.Info().Str("profile", profile.Name).Str("version", profile.MinecraftVersion).Msg("created profile")
	return profile, nil
}

func (p *ProfileStore) Get(name string) (util.Profile, error) {
	state, err := fileutils.LoadState(p.paths)
	if err != nil {
		return util.Profile{}, err
	}
	for _, profile := range state.Profiles {
		if strings.EqualFold(profile.Name, name) {
			return profile, nil
		}
	}
	return util.Profile{}, ErrProfileNotFound
}

func (p *ProfileStore) List() ([]util.Profile, error) {
	state, err := fileutils.LoadState(p.paths)
	if err != nil {
		return nil, err
	}
	return state.Profiles, nil
}

func (p *ProfileStore) Delete(name string) error {
	state, err := fileutils.LoadState(p.paths)
	if err != nil {
		return err
	}

	for i, profile := range state.Profiles {
		if strings.EqualFold(profile.Name, name) {
			state.Profiles = append(state.Profiles[:i], state.Profiles[i+1:]...)
			if strings.EqualFold(state.ActiveProfile, name) {
				state.ActiveProfile = ""
			}
			p.log.Info().Str("profile", name).Msg("deleted profile")
			return fileutils.SaveState(p.paths, state)
		}
	}
	return ErrProfileNotFound
}

func (p *ProfileStore) SetActive(name string) error {
	state, err := fileutils.LoadState(p.paths)
	if err != nil {
		return err
	}
	if name != "" {
		found := false
		for _, profile := range state.Profiles {
			if strings.EqualFold(profile.Name, name) {
				name = profile.Name
				found = true
				break
			}
		}
		if !found {
			return ErrProfileNotFound
		}
	}
	state.ActiveProfile = name
	return fileutils.SaveState(p.paths, state)
}

func (p *ProfileStore) Active() (util.Profile, error) {
	state, err := fileutils.LoadState(p.paths)
	if err != nil {
		return util.Profile{}, err
	}
	if state.ActiveProfile == "" {
		return util.Profile{}, ErrProfileNotFound
	}
	return p.Get(state.ActiveProfile)
}
