package services

import (
	"archive/zip"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/packforge/launcher/api"
	"github.com/packforge/launcher/util"
	"github.com/packforge/launcher/util/fileutils"
)

const (
	defaultMainClass   = "net.minecraft.client.main.Main"
	defaultServerPort  = "25565"
	defaultMinMemoryMB = 512
	defaultMaxMemoryMB = 2048
)

// CommandBuilder turns an installed version plus a profile into a LaunchPlan.
// Pure data transformation over the on-disk layout; nothing here touches the
// network.
type CommandBuilder struct {
	paths  fileutils.Paths
	log    zerolog.Logger
	osName string
	arch64 bool
}

func NewCommandBuilder(paths fileutils.Paths, logger zerolog.Logger) *CommandBuilder {
	return &CommandBuilder{
		paths:  paths,
		log:    logger,
		osName: currentOsName(),
		arch64: strings.Contains(runtime.GOARCH, "64"),
	}
}

// currentOsName maps GOOS onto the platform names the version manifest uses.
func currentOsName() string {
	switch runtime.GOOS {
	case "windows":
		return "windows"
	case "darwin":
		return "osx"
	default:
		return "linux"
	}
}

// EvalRules applies a library's platform rules in declared order. The running
// decision starts at allow; every matching rule overwrites it, so the last
// matching rule wins. A rule with no OS constraint matches every platform.
func EvalRules(rules []api.Rule, osName string) bool {
	decision := api.ActionAllow
	for _, rule := range rules {
		if rule.OS == nil || rule.OS.Name == osName {
			decision = rule.Action
		}
	}
	return decision == api.ActionAllow
}

// Build assembles the full launch plan: classpath, staged natives and process
// arguments.
func (b *CommandBuilder) Build(profile util.Profile, detail *api.VersionDetail, username string) (*util.LaunchPlan, error) {
	if username == "" {
		return nil, fmt.Errorf("build launch plan: empty username")
	}
	if profile.MinecraftVersion == "" {
		return nil, fmt.Errorf("build launch plan: profile has no version")
	}

	version := profile.MinecraftVersion
	jar := b.paths.VersionJar(version)
	if _, err := os.Stat(jar); err != nil {
		fallback := filepath.Join(b.paths.FallbackVersionDir(version), version+".jar")
		if _, ferr := os.Stat(fallback); ferr == nil {
			jar = fallback
		}
	}

	nativesDir, err := b.prepareNatives(detail, version)
	if err != nil {
		return nil, err
	}

	classpath := b.buildClasspath(detail, jar)

	minMem := profile.MinMemoryMB
	if minMem <= 0 {
		minMem = defaultMinMemoryMB
	}
	maxMem := profile.MaxMemoryMB
	if maxMem <= 0 {
		maxMem = defaultMaxMemoryMB
	}

	mainClass := detail.MainClass
	if mainClass == "" {
		mainClass = defaultMainClass
	}

	plan := &util.LaunchPlan{
		ClasspathEntries: classpath,
		NativesDir:       nativesDir,
		MainClass:        mainClass,
		WorkDir:          b.paths.GameDir,
		JvmArgs: []string{
			fmt.Sprintf("-Xmx%dM", maxMem),
			fmt.Sprintf("-Xms%dM", minMem),
			"-Djava.library.path=" + nativesDir,
			"-cp", strings.Join(classpath, string(os.PathListSeparator)),
		},
		GameArgs: []string{
			"--username", username,
			"--version", version,
			"--gameDir", b.paths.GameDir,
			"--assetsDir", b.paths.AssetsDir(),
		},
	}

	if idx := detail.AssetIndexId(); idx != "" {
		plan.GameArgs = append(plan.GameArgs, "--assetIndex", idx)
	}

	plan.GameArgs = append(plan.GameArgs,
		"--uuid", OfflineUUID(username),
		"--accessToken", "0",
		"--userType", "legacy",
	)

	if profile.ServerAddress != "" && !strings.HasPrefix(profile.ServerAddress, "http") {
		host, port := splitServerAddress(profile.ServerAddress)
		plan.GameArgs = append(plan.GameArgs, "--server", host, "--port", port)
	}

	return plan, nil
}

func splitServerAddress(addr string) (host, port string) {
	parts := strings.SplitN(addr, ":", 2)
	if len(parts) == 2 && parts[1] != "" {
		return parts[0], parts[1]
	}
	return parts[0], defaultServerPort
}

// buildClasspath starts with the client jar and appends every library that
// passes rule evaluation and exists on disk, in manifest order. Missing
// libraries are logged but never fail the build; launch proceeds best-effort.
func (b *CommandBuilder) buildClasspath(detail *api.VersionDetail, versionJar string) []string {
	classpath := []string{versionJar}
	missing := 0

	for _, lib := range detail.Libraries {
		if len(lib.Rules) > 0 && !EvalRules(lib.Rules, b.osName) {
			continue
		}
		if lib.Name == "" {
			continue
		}

		path := b.libraryPath(lib)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			missing++
			b.log.Debug().Str("library", lib.Name).Str("path", path).Msg("library not found")
			continue
		}
		classpath = append(classpath, path)
	}

	b.log.Info().Int("libraries", len(classpath)-1).Msg("built classpath")
	if missing > 0 {
		b.log.Warn().Int("missing", missing).Msg("libraries missing from disk, game may not launch properly")
	}
	return classpath
}

// libraryPath resolves a library's jar, preferring the declared artifact path
// over the path derived from the dotted name.
func (b *CommandBuilder) libraryPath(lib api.Library) string {
	if p := lib.Downloads.Artifact.Path; p != "" {
		return filepath.Join(b.paths.LibrariesDir(), filepath.FromSlash(p))
	}
	return derivedLibraryPath(b.paths.LibrariesDir(), lib.Name, "")
}

// derivedLibraryPath maps group:artifact:version[:classifier] onto the maven
// directory layout.
func derivedLibraryPath(librariesDir, name, classifier string) string {
	parts := strings.Split(name, ":")
	if len(parts) < 3 {
		return ""
	}
	group := filepath.FromSlash(strings.ReplaceAll(parts[0], ".", "/"))
	artifact, version := parts[1], parts[2]

	file := artifact + "-" + version
	if classifier != "" {
		file += "-" + classifier
	}
	return filepath.Join(librariesDir, group, artifact, version, file+".jar")
}

// prepareNatives stages platform native libraries into a flat directory.
// Extraction is best-effort: individual failures are logged and skipped, but
// an empty result after processing a non-empty library list is flagged since
// the process start will almost certainly fail without natives.
func (b *CommandBuilder) prepareNatives(detail *api.VersionDetail, version string) (string, error) {
	nativesDir := b.paths.NativesDir(version)
	if err := os.MkdirAll(nativesDir, 0o700); err != nil {
		return "", err
	}

	marker := nativesMarker(b.osName)
	candidates := 0
	extracted := 0

	for _, lib := range detail.Libraries {
		parts := strings.Split(lib.Name, ":")
		if len(parts) < 4 {
			continue
		}
		classifier := parts[3]
		if !nativeClassifierMatches(classifier, marker, b.osName) {
			continue
		}
		if len(lib.Rules) > 0 && !EvalRules(lib.Rules, b.osName) {
			continue
		}
		candidates++

		jarPath := b.nativeJarPath(lib, classifier)
		if jarPath == "" {
			continue
		}
		if _, err := os.Stat(jarPath); err != nil {
			b.log.Warn().Str("library", lib.Name).Str("path", jarPath).Msg("native jar not found")
			continue
		}

		n, err := extractNatives(jarPath, nativesDir, b.osName)
		if err != nil {
			b.log.Warn().Err(err).Str("jar", jarPath).Msg("native extraction failed")
			continue
		}
		extracted += n
	}

	if candidates > 0 && extracted == 0 {
		entries, _ := os.ReadDir(nativesDir)
		if len(entries) == 0 {
			b.log.Error().Str("version", version).Msg("no natives extracted, game will likely fail to start")
		}
	}
	return nativesDir, nil
}

func nativesMarker(osName string) string {
	return "natives-" + osName
}

func nativeClassifierMatches(classifier, marker, osName string) bool {
	if strings.Contains(classifier, marker) {
		return true
	}
	// Older manifests label mac natives either way.
	return osName == "osx" && strings.Contains(classifier, "natives-macos")
}

func (b *CommandBuilder) nativeJarPath(lib api.Library, classifier string) string {
	if p := lib.Downloads.Artifact.Path; p != "" {
		return filepath.Join(b.paths.LibrariesDir(), filepath.FromSlash(p))
	}
	arch := "32"
	if b.arch64 {
		arch = "64"
	}
	classifier = strings.ReplaceAll(classifier, "${arch}", arch)
	return derivedLibraryPath(b.paths.LibrariesDir(), lib.Name, classifier)
}

func nativeSuffixes(osName string) []string {
	switch osName {
	case "windows":
		return []string{".dll"}
	case "osx":
		return []string{".dylib", ".jnilib"}
	default:
		return []string{".so"}
	}
}

// extractNatives copies every native-library entry of a jar into destDir,
// flattening subdirectories. An already-present filename is skipped: jars are
// processed in manifest order, so the first writer wins.
func extractNatives(jarPath, destDir, osName string) (int, error) {
	reader, err := zip.OpenReader(jarPath)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	suffixes := nativeSuffixes(osName)
	count := 0
	for _, file := range reader.File {
		lower := strings.ToLower(file.Name)
		matched := false
		for _, suffix := range suffixes {
			if strings.HasSuffix(lower, suffix) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		name := filepath.Base(file.Name)
		dest := filepath.Join(destDir, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}

		if err := extractZipEntry(file, dest); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func extractZipEntry(file *zip.File, dest string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}

// OfflineUUID derives a stable version-3 UUID from a player name, matching
// the convention servers use for offline-mode identities. Not a security
// property, purely identity consistency across runs.
func OfflineUUID(username string) string {
	sum := md5.Sum([]byte("OfflinePlayer:" + username))
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	id, err := uuid.FromBytes(sum[:])
	if err != nil {
		return uuid.Nil.String()
	}
	return id.String()
}
