package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"

	"github.com/packforge/launcher/api"
	"github.com/packforge/launcher/util/fileutils"
)

var (
	ErrVersionNotFound  = errors.New("version not found in manifest")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// VersionStore installs and detects game versions. A version counts as
// installed only when both its detail JSON and a non-empty client jar exist,
// in either our own versions tree or the stock launcher's.
type VersionStore struct {
	client *api.Client
	dl     *fileutils.Downloader
	paths  fileutils.Paths
	log    zerolog.Logger
}

func NewVersionStore(client *api.Client, dl *fileutils.Downloader, paths fileutils.Paths, logger zerolog.Logger) *VersionStore {
	return &VersionStore{client: client, dl: dl, paths: paths, log: logger}
}

func (s *VersionStore) IsInstalled(version string) bool {
	if version == "" {
		return false
	}
	for _, dir := range []string{s.paths.VersionDir(version), s.paths.FallbackVersionDir(version)} {
		if versionPresent(dir, version) {
			return true
		}
	}
	return false
}

func versionPresent(dir, version string) bool {
	if _, err := os.Stat(versionJsonIn(dir, version)); err != nil {
		return false
	}
	info, err := os.Stat(versionJarIn(dir, version))
	return err == nil && info.Size() > 0
}

func versionJsonIn(dir, version string) string {
	return filepath.Join(dir, version+".json")
}

func versionJarIn(dir, version string) string {
	return filepath.Join(dir, version+".jar")
}

// Install fetches the version manifest, persists the version's detail JSON
// and downloads its client jar, verifying the declared checksum. Progress
// maps the jar download onto the 60-90 band of the overall operation.
func (s *VersionStore) Install(ctx context.Context, version string, progress fileutils.ProgressFunc) error {
	if version == "" {
		return fmt.Errorf("install: empty version")
	}

	report := func(pct int) {
		if progress != nil {
			progress(pct)
		}
	}

	if s.IsInstalled(version) {
		s.log.Info().Str("version", version).Msg("version already installed")
		report(100)
		return nil
	}

	s.log.Info().Str("version", version).Msg("installing version")

	report(10)
	manifest, err := s.client.FetchVersionManifest(ctx)
	if err != nil {
		return err
	}

	report(20)
	entry, ok := manifest.Find(version)
	if !ok {
		s.log.Error().Str("version", version).Msg("version not in manifest")
		return ErrVersionNotFound
	}

	report(30)
	detailJson, err := s.client.GetBytes(ctx, entry.Url)
	if err != nil {
		return err
	}

	var detail api.VersionDetail
	if err := json.Unmarshal(detailJson, &detail); err != nil {
		return fmt.Errorf("parse version detail: %w", err)
	}
	if detail.Downloads.Client.Url == "" || detail.Downloads.Client.Sha256 == "" {
		return fmt.Errorf("version %s: client download info missing", version)
	}

	if err := os.MkdirAll(s.paths.VersionDir(version), 0o700); err != nil {
		return err
	}
	// Cached verbatim so the launch builder reads exactly what Mojang served.
	if err := os.WriteFile(s.paths.VersionJson(version), detailJson, 0o644); err != nil {
		return err
	}

	report(60)
	jarPath := s.paths.VersionJar(version)
	err = s.dl.Download(ctx, detail.Downloads.Client.Url, jarPath, func(p int) {
		report(60 + p*30/100)
	})
	if err != nil {
		return err
	}

	report(95)
	if !fileutils.VerifyChecksum(jarPath, detail.Downloads.Client.Sha256) {
		os.Remove(jarPath)
		s.log.Error().Str("version", version).Msg("client jar checksum mismatch")
		return ErrChecksumMismatch
	}

	report(100)
	s.log.Info().Str("version", version).Msg("version installed")
	return nil
}

// Detail loads the cached detail JSON for an installed version, preferring
// our own copy over the stock launcher's.
func (s *VersionStore) Detail(version string) (*api.VersionDetail, error) {
	var data []byte
	var err error
	for _, dir := range []string{s.paths.VersionDir(version), s.paths.FallbackVersionDir(version)} {
		data, err = os.ReadFile(versionJsonIn(dir, version))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("version %s not installed: %w", version, err)
	}

	var detail api.VersionDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, fmt.Errorf("parse version detail: %w", err)
	}
	return &detail, nil
}

// ListInstalled unions the version ids found under both roots, validated by
// detail JSON presence, deduplicated and sorted ascending.
func (s *VersionStore) ListInstalled() []string {
	seen := map[string]bool{}
	for _, root := range []string{s.paths.VersionsDir(), s.paths.FallbackVersionsDir()} {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			id := e.Name()
			if _, err := os.Stat(versionJsonIn(filepath.Join(root, id), id)); err == nil {
				seen[id] = true
			}
		}
	}

	versions := make([]string, 0, len(seen))
	for id := range seen {
		versions = append(versions, id)
	}
	sort.Slice(versions, func(i, j int) bool {
		a, b := "v"+versions[i], "v"+versions[j]
		if semver.IsValid(a) && semver.IsValid(b) {
			if c := semver.Compare(a, b); c != 0 {
				return c < 0
			}
		}
		return strings.Compare(versions[i], versions[j]) < 0
	})
	return versions
}
