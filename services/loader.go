package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/packforge/launcher/api"
	"github.com/packforge/launcher/util"
	"github.com/packforge/launcher/util/fileutils"
)

var ErrNoLoaderVersions = errors.New("no loader versions available")

// LoaderInstaller installs and detects mod loaders. The two backends (fabric
// and forge) are independent: each has its own metadata endpoint, artifact
// source and registry naming, and a failure in one never touches the other.
type LoaderInstaller struct {
	client *api.Client
	dl     *fileutils.Downloader
	paths  fileutils.Paths
	log    zerolog.Logger
}

func NewLoaderInstaller(client *api.Client, dl *fileutils.Downloader, paths fileutils.Paths, logger zerolog.Logger) *LoaderInstaller {
	return &LoaderInstaller{client: client, dl: dl, paths: paths, log: logger}
}

// IsInstalled reports whether a loader profile for this game version exists.
// Detection is a substring scan over registry version ids, not a structural
// match: an id counts when it contains both the kind marker and the game
// version.
func (l *LoaderInstaller) IsInstalled(gameVersion string, kind util.LoaderKind) bool {
	if kind == util.LoaderVanilla {
		return true
	}
	if gameVersion == "" {
		return false
	}

	for _, id := range fileutils.LauncherProfileVersionIds(l.paths.LauncherProfilesFile()) {
		lower := strings.ToLower(id)
		if strings.Contains(lower, string(kind)) && strings.Contains(id, gameVersion) {
			return true
		}
	}
	return false
}

// AvailableVersions queries the backend's metadata endpoint. Vanilla has no
// loader versions. An empty result is a normal outcome, not a fault.
func (l *LoaderInstaller) AvailableVersions(ctx context.Context, gameVersion string, kind util.LoaderKind) ([]string, error) {
	if gameVersion == "" {
		return nil, fmt.Errorf("loader versions: empty game version")
	}

	switch kind {
	case util.LoaderVanilla:
		return nil, nil
	case util.LoaderFabric:
		return l.client.FabricLoaderVersions(ctx, gameVersion)
	case util.LoaderForge:
		return l.client.ForgeVersions(ctx, gameVersion)
	}
	return nil, nil
}

// Install ensures a loader for the game version is present: pick the first
// backend-published version, pull the backend artifact to a scratch path,
// register a loader profile and drop the scratch file.
func (l *LoaderInstaller) Install(ctx context.Context, gameVersion string, kind util.LoaderKind, progress fileutils.ProgressFunc) error {
	if gameVersion == "" {
		return fmt.Errorf("loader install: empty game version")
	}

	report := func(pct int) {
		if progress != nil {
			progress(pct)
		}
	}

	if kind == util.LoaderVanilla {
		report(100)
		return nil
	}
	if l.IsInstalled(gameVersion, kind) {
		l.log.Info().Str("loader", string(kind)).Str("version", gameVersion).Msg("loader already installed")
		report(100)
		return nil
	}

	report(10)
	versions, err := l.AvailableVersions(ctx, gameVersion, kind)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		l.log.Error().Str("loader", string(kind)).Str("version", gameVersion).Msg("no loader versions published")
		return ErrNoLoaderVersions
	}

	// Backend listings are most-recent-first.
	loaderVersion := versions[0]
	l.log.Info().Str("loader", string(kind)).Str("loaderVersion", loaderVersion).Str("version", gameVersion).Msg("installing loader")

	report(40)
	var artifactUrl, versionId string
	switch kind {
	case util.LoaderFabric:
		artifactUrl = api.FabricLoaderURL(loaderVersion)
		versionId = fmt.Sprintf("fabric-loader-%s-%s", loaderVersion, gameVersion)
	case util.LoaderForge:
		artifactUrl = api.ForgeInstallerURL(gameVersion, loaderVersion)
		versionId = fmt.Sprintf("%s-forge-%s", gameVersion, loaderVersion)
	}

	scratch := filepath.Join(l.paths.InstallersDir(), fmt.Sprintf("%s-%s.jar", kind, loaderVersion))
	if err := l.dl.Download(ctx, artifactUrl, scratch, nil); err != nil {
		return err
	}
	defer os.Remove(scratch)

	report(80)
	now := time.Now().Format(time.RFC3339)
	err = fileutils.AddLauncherProfile(l.paths.LauncherProfilesFile(), util.LauncherProfile{
		Name:          versionId,
		Type:          "custom",
		Icon:          "Crafting_Table",
		LastVersionId: versionId,
		Created:       now,
		LastUsed:      now,
	})
	if err != nil {
		return err
	}

	report(100)
	l.log.Info().Str("loader", string(kind)).Str("versionId", versionId).Msg("loader installed")
	return nil
}
