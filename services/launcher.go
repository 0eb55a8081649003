package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/packforge/launcher/util"
	"github.com/packforge/launcher/util/fileutils"
)

// LaunchResult reports a started game process.
type LaunchResult struct {
	Pid         int
	CommandLine string
}

// Launcher orchestrates a full launch: validate the installation, ensure the
// loader, best-effort mod sync, build the plan, start the process.
type Launcher struct {
	versions *VersionStore
	loaders  *LoaderInstaller
	mods     *ModSynchronizer
	builder  *CommandBuilder
	super    *Supervisor
	paths    fileutils.Paths
	log      zerolog.Logger
}

func NewLauncher(versions *VersionStore, loaders *LoaderInstaller, mods *ModSynchronizer, builder *CommandBuilder, super *Supervisor, paths fileutils.Paths, logger zerolog.Logger) *Launcher {
	return &Launcher{
		versions: versions,
		loaders:  loaders,
		mods:     mods,
		builder:  builder,
		super:    super,
		paths:    paths,
		log:      logger,
	}
}

func (l *Launcher) Launch(ctx context.Context, profile util.Profile, username string, sink SyncSink) (*LaunchResult, error) {
	if username == "" {
		return nil, fmt.Errorf("launch: empty username")
	}

	l.log.Info().Str("profile", profile.Name).Str("username", username).Msg("launching")

	if !l.versions.IsInstalled(profile.MinecraftVersion) {
		return nil, fmt.Errorf("version %s is not installed", profile.MinecraftVersion)
	}
	if !l.loaders.IsInstalled(profile.MinecraftVersion, profile.Loader) {
		return nil, fmt.Errorf("loader %s is not installed for version %s", profile.Loader, profile.MinecraftVersion)
	}

	// Sync is best-effort at launch time: a failure warns and the game starts
	// with whatever mods are already present.
	if strings.HasPrefix(profile.ServerAddress, "http://") || strings.HasPrefix(profile.ServerAddress, "https://") {
		if err := l.mods.Sync(ctx, profile, sink); err != nil {
			l.log.Warn().Err(err).Msg("mod sync failed, continuing with existing mods")
		}
	}

	detail, err := l.versions.Detail(profile.MinecraftVersion)
	if err != nil {
		return nil, err
	}

	plan, err := l.builder.Build(profile, detail, username)
	if err != nil {
		return nil, err
	}

	commandLine := "java " + strings.Join(plan.Args(), " ")
	l.writeDebugCommand(profile, username, commandLine)

	pid, err := l.super.Start(plan)
	if err != nil {
		return nil, err
	}
	return &LaunchResult{Pid: pid, CommandLine: commandLine}, nil
}

// Wait blocks until the running game exits and returns its exit code.
func (l *Launcher) Wait() (int, error) {
	return l.super.Wait()
}

// Kill terminates the running game process tree.
func (l *Launcher) Kill() {
	l.super.Kill()
}

// writeDebugCommand dumps the assembled command for troubleshooting. Failure
// to write it never affects the launch.
func (l *Launcher) writeDebugCommand(profile util.Profile, username, commandLine string) {
	content := fmt.Sprintf("Launch Command:\n%s\n\nWorking Directory: %s\nProfile: %s\nVersion: %s\nUsername: %s\nTime: %s\n",
		commandLine, l.paths.GameDir, profile.Name, profile.MinecraftVersion, username, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(l.paths.DebugCommandFile(), []byte(content), 0o644); err != nil {
		l.log.Warn().Err(err).Msg("failed to write debug command file")
	}
}
