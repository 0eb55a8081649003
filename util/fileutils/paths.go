package fileutils

import (
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const keyringService = "packforge"

// Paths resolves every on-disk location the launcher owns. GameDir is the
// stock .minecraft directory, WorkDir is our own tree inside it: state,
// profiles and installers live under <gameDir>/packforge.
type Paths struct {
	GameDir string
	WorkDir string
}

// NewPaths builds the layout rooted at gameDir.
func NewPaths(gameDir string) Paths {
	return Paths{GameDir: gameDir, WorkDir: filepath.Join(gameDir, "packforge")}
}

// Setup records the game directory in the OS keyring and creates the work
// tree. Called once from `init`.
func Setup(gameDir string) (Paths, error) {
	if err := keyring.Set(keyringService, "game_dir", gameDir); err != nil {
		return Paths{}, err
	}
	p := NewPaths(gameDir)
	for _, dir := range []string{p.WorkDir, p.InstallersDir(), p.VersionsDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return Paths{}, err
		}
	}
	return p, nil
}

// LoadPaths recalls the game directory chosen at setup time, falling back to
// ~/.minecraft when the keyring has no entry.
func LoadPaths() (Paths, error) {
	gameDir, err := keyring.Get(keyringService, "game_dir")
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return Paths{}, herr
		}
		gameDir = filepath.Join(home, ".minecraft")
	}
	return NewPaths(gameDir), nil
}

func (p Paths) VersionsDir() string {
	return filepath.Join(p.WorkDir, "versions")
}

func (p Paths) VersionDir(id string) string {
	return filepath.Join(p.VersionsDir(), id)
}

func (p Paths) VersionJson(id string) string {
	return filepath.Join(p.VersionDir(id), id+".json")
}

func (p Paths) VersionJar(id string) string {
	return filepath.Join(p.VersionDir(id), id+".jar")
}

// FallbackVersionDir is the stock launcher's copy of a version, consulted as
// a secondary source of truth when we did not install the version ourselves.
func (p Paths) FallbackVersionsDir() string {
	return filepath.Join(p.GameDir, "versions")
}

func (p Paths) FallbackVersionDir(id string) string {
	return filepath.Join(p.FallbackVersionsDir(), id)
}

func (p Paths) LibrariesDir() string {
	return filepath.Join(p.GameDir, "libraries")
}

func (p Paths) AssetsDir() string {
	return filepath.Join(p.GameDir, "assets")
}

func (p Paths) NativesDir(id string) string {
	return filepath.Join(p.VersionDir(id), id+"-natives")
}

func (p Paths) InstallersDir() string {
	return filepath.Join(p.WorkDir, "installers")
}

func (p Paths) ProfileModsDir(profileId string) string {
	return filepath.Join(p.WorkDir, "profiles", profileId, "mods")
}

func (p Paths) StateFile() string {
	return filepath.Join(p.WorkDir, "packforge.json")
}

func (p Paths) LauncherProfilesFile() string {
	return filepath.Join(p.GameDir, "launcher_profiles.json")
}

func (p Paths) DebugCommandFile() string {
	return filepath.Join(p.WorkDir, "launcher_debug.txt")
}
