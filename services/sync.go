package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/packforge/launcher/api"
	"github.com/packforge/launcher/util"
	"github.com/packforge/launcher/util/fileutils"
)

// ModManifestSuffix is appended to a profile's server address to form the
// manifest URL.
const ModManifestSuffix = "/api/mods/manifest"

var ErrSyncFailed = errors.New("mod sync failed")

// SyncSink consumes progress records during a sync run. It may never be
// invoked for skipped stages; StageComplete is the only reliable terminal
// signal.
type SyncSink func(util.SyncProgress)

// ModSynchronizer reconciles a profile's local mod set against the server's
// declared manifest. The run walks a fixed stage order; a stage with no work
// units is skipped silently. Reconciliation is idempotent: re-running against
// an unchanged manifest and unchanged local state performs zero deletions and
// zero downloads.
type ModSynchronizer struct {
	client *api.Client
	dl     *fileutils.Downloader
	paths  fileutils.Paths
	log    zerolog.Logger
}

func NewModSynchronizer(client *api.Client, dl *fileutils.Downloader, paths fileutils.Paths, logger zerolog.Logger) *ModSynchronizer {
	return &ModSynchronizer{client: client, dl: dl, paths: paths, log: logger}
}

// FetchManifest pulls the server's mod manifest from the base URL plus the
// fixed suffix.
func (m *ModSynchronizer) FetchManifest(ctx context.Context, baseUrl string) (*util.ModManifest, error) {
	if baseUrl == "" {
		return nil, fmt.Errorf("fetch manifest: empty server url")
	}

	url := strings.TrimSuffix(baseUrl, "/") + ModManifestSuffix
	var manifest util.ModManifest
	if err := m.client.GetJSON(ctx, url, &manifest); err != nil {
		return nil, fmt.Errorf("fetch mod manifest: %w", err)
	}
	m.log.Info().Int("mods", len(manifest.Artifacts)).Str("url", url).Msg("fetched mod manifest")
	return &manifest, nil
}

// InstalledMods lists the jar file names currently present for a profile.
func (m *ModSynchronizer) InstalledMods(profileId string) []string {
	entries, err := os.ReadDir(m.paths.ProfileModsDir(profileId))
	if err != nil {
		return nil
	}

	var mods []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jar") {
			mods = append(mods, e.Name())
		}
	}
	sort.Strings(mods)
	return mods
}

// DeleteMod removes a mod file. An already-absent file counts as success.
func (m *ModSynchronizer) DeleteMod(profileId, fileName string) error {
	if profileId == "" || fileName == "" {
		return fmt.Errorf("delete mod: empty profile id or file name")
	}

	path := filepath.Join(m.paths.ProfileModsDir(profileId), fileName)
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	m.log.Info().Str("mod", fileName).Str("profile", profileId).Msg("deleted mod")
	return nil
}

// downloadMod pulls one artifact and verifies its declared checksum, deleting
// the file on mismatch.
func (m *ModSynchronizer) downloadMod(ctx context.Context, profileId string, mod util.ModInfo, progress fileutils.ProgressFunc) error {
	dest := filepath.Join(m.paths.ProfileModsDir(profileId), mod.FileName)
	if err := m.dl.Download(ctx, mod.DownloadUrl, dest, progress); err != nil {
		return err
	}
	if !fileutils.VerifyChecksum(dest, mod.Checksum) {
		os.Remove(dest)
		m.log.Error().Str("mod", mod.FileName).Msg("mod checksum mismatch")
		return fmt.Errorf("mod %s: %w", mod.FileName, ErrChecksumMismatch)
	}
	return nil
}

// Sync runs the full reconciliation for a profile.
//
// Stage order is fixed: FetchingManifest, ComparingMods, DeletingObsolete,
// DownloadingNew, DownloadingUpdates, VerifyingIntegrity, Complete. The total
// unit count is fixed once at ComparingMods and never recomputed. The first
// failing download or verification aborts the run; effects of earlier stages
// stay applied and the next run resumes from the new local state.
func (m *ModSynchronizer) Sync(ctx context.Context, profile util.Profile, sink SyncSink) error {
	if profile.Id == "" {
		return fmt.Errorf("sync: profile has no id")
	}

	emit := func(p util.SyncProgress) {
		if sink != nil {
			sink(p)
		}
	}

	m.log.Info().Str("profile", profile.Name).Msg("starting mod sync")

	emit(util.SyncProgress{Stage: util.StageFetchingManifest, CurrentMod: "Fetching mod list from server..."})
	manifest, err := m.FetchManifest(ctx, profile.ServerAddress)
	if err != nil {
		return err
	}

	emit(util.SyncProgress{Stage: util.StageComparingMods, CurrentMod: "Comparing local mods with server..."})
	plan := m.plan(manifest, profile.Id)
	total := len(plan.obsolete) + len(plan.added) + len(plan.updated)
	done := 0

	m.log.Info().
		Int("obsolete", len(plan.obsolete)).
		Int("new", len(plan.added)).
		Int("updated", len(plan.updated)).
		Msg("computed reconciliation plan")

	if len(plan.obsolete) > 0 {
		emit(util.SyncProgress{
			Stage: util.StageDeletingObsolete, TotalMods: total, ProcessedMods: done,
			CurrentMod: fmt.Sprintf("Deleting %d obsolete mod(s)...", len(plan.obsolete)),
		})
		for _, name := range plan.obsolete {
			if err := m.DeleteMod(profile.Id, name); err != nil {
				return err
			}
			done++
			emit(util.SyncProgress{
				Stage: util.StageDeletingObsolete, TotalMods: total, ProcessedMods: done,
				CurrentMod: "Deleted " + name,
			})
		}
	}

	stages := []struct {
		stage util.SyncStage
		mods  []util.ModInfo
		verb  string
	}{
		{util.StageDownloadingNew, plan.added, "Downloading"},
		{util.StageDownloadingUpdates, plan.updated, "Updating"},
	}
	for _, st := range stages {
		if len(st.mods) == 0 {
			continue
		}
		emit(util.SyncProgress{
			Stage: st.stage, TotalMods: total, ProcessedMods: done,
			CurrentMod: fmt.Sprintf("%s %d mod(s)...", st.verb, len(st.mods)),
		})
		for _, mod := range st.mods {
			mod := mod
			stage := st.stage
			verb := st.verb
			err := m.downloadMod(ctx, profile.Id, mod, func(pct int) {
				emit(util.SyncProgress{
					Stage: stage, TotalMods: total, ProcessedMods: done,
					CurrentMod: fmt.Sprintf("%s %s (%d%%)", verb, mod.FileName, pct),
				})
			})
			if err != nil {
				// Abort the whole run on the first failed item. Prior
				// deletions and downloads are deliberately not rolled back.
				m.log.Error().Err(err).Str("mod", mod.FileName).Msg("mod download failed, aborting sync")
				return fmt.Errorf("%w: %v", ErrSyncFailed, err)
			}
			done++
		}
	}

	if len(manifest.Artifacts) > 0 {
		emit(util.SyncProgress{
			Stage: util.StageVerifyingIntegrity, TotalMods: total, ProcessedMods: done,
			CurrentMod: "Verifying all mods...",
		})
		for _, mod := range manifest.Artifacts {
			path := filepath.Join(m.paths.ProfileModsDir(profile.Id), mod.FileName)
			if !fileutils.VerifyChecksum(path, mod.Checksum) {
				m.log.Error().Str("mod", mod.FileName).Msg("final verification failed")
				return fmt.Errorf("%w: final verification failed for %s", ErrSyncFailed, mod.FileName)
			}
		}
	}

	emit(util.SyncProgress{
		Stage: util.StageComplete, TotalMods: total, ProcessedMods: done,
		CurrentMod: "Sync complete",
	})
	m.log.Info().Str("profile", profile.Name).Msg("mod sync complete")
	return nil
}

type reconciliationPlan struct {
	obsolete []string
	added    []util.ModInfo
	updated  []util.ModInfo
}

// plan derives the work set. An installed mod is "updated" when its on-disk
// checksum fails against the manifest's declared checksum; the comparison is
// always manifest-vs-disk, never against a prior-run snapshot.
func (m *ModSynchronizer) plan(manifest *util.ModManifest, profileId string) reconciliationPlan {
	installed := m.InstalledMods(profileId)
	installedSet := map[string]bool{}
	for _, name := range installed {
		installedSet[name] = true
	}
	declared := map[string]bool{}
	for _, mod := range manifest.Artifacts {
		declared[mod.FileName] = true
	}

	var plan reconciliationPlan
	for _, name := range installed {
		if !declared[name] {
			plan.obsolete = append(plan.obsolete, name)
		}
	}
	for _, mod := range manifest.Artifacts {
		if !installedSet[mod.FileName] {
			plan.added = append(plan.added, mod)
			continue
		}
		path := filepath.Join(m.paths.ProfileModsDir(profileId), mod.FileName)
		if !fileutils.VerifyChecksum(path, mod.Checksum) {
			plan.updated = append(plan.updated, mod)
		}
	}
	return plan
}
