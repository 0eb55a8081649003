package services

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/packforge/launcher/api"
	"github.com/packforge/launcher/util"
	"github.com/packforge/launcher/util/fileutils"
)

func osRule(action api.RuleAction, osName string) api.Rule {
	r := api.Rule{Action: action}
	if osName != "" {
		r.OS = &struct {
			Name string `json:"name"`
		}{Name: osName}
	}
	return r
}

func testBuilder(t *testing.T, osName string) (*CommandBuilder, fileutils.Paths) {
	t.Helper()
	paths := fileutils.NewPaths(t.TempDir())
	b := NewCommandBuilder(paths, zerolog.Nop())
	b.osName = osName
	return b, paths
}

func TestEvalRules(t *testing.T) {
	tests := []struct {
		name   string
		rules  []api.Rule
		osName string
		want   bool
	}{
		{"no rules allows", nil, "linux", true},
		{"bare allow", []api.Rule{osRule(api.ActionAllow, "")}, "linux", true},
		{"allow then disallow on match", []api.Rule{
			osRule(api.ActionAllow, ""),
			osRule(api.ActionDisallow, "osx"),
		}, "osx", false},
		{"allow then disallow elsewhere", []api.Rule{
			osRule(api.ActionAllow, ""),
			osRule(api.ActionDisallow, "osx"),
		}, "linux", true},
		{"allow only on one platform", []api.Rule{
			osRule(api.ActionAllow, "windows"),
		}, "linux", true}, // no rule matches linux, default allow holds
		{"later rule overrides earlier match", []api.Rule{
			osRule(api.ActionDisallow, "linux"),
			osRule(api.ActionAllow, "linux"),
		}, "linux", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvalRules(tt.rules, tt.osName); got != tt.want {
				t.Errorf("EvalRules = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDerivedLibraryPath(t *testing.T) {
	got := derivedLibraryPath("/libs", "org.lwjgl:lwjgl:3.3.1", "")
	want := filepath.Join("/libs", "org", "lwjgl", "lwjgl", "3.3.1", "lwjgl-3.3.1.jar")
	if got != want {
		t.Errorf("derivedLibraryPath = %q, want %q", got, want)
	}

	got = derivedLibraryPath("/libs", "org.lwjgl:lwjgl:3.3.1", "natives-linux")
	want = filepath.Join("/libs", "org", "lwjgl", "lwjgl", "3.3.1", "lwjgl-3.3.1-natives-linux.jar")
	if got != want {
		t.Errorf("derivedLibraryPath with classifier = %q, want %q", got, want)
	}

	if got := derivedLibraryPath("/libs", "not-a-coordinate", ""); got != "" {
		t.Errorf("malformed name should yield empty path, got %q", got)
	}
}

func TestBuildClasspath(t *testing.T) {
	b, paths := testBuilder(t, "linux")

	present := filepath.Join("com", "example", "present", "1.0", "present-1.0.jar")
	presentAbs := filepath.Join(paths.LibrariesDir(), present)
	if err := os.MkdirAll(filepath.Dir(presentAbs), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(presentAbs, []byte("jar"), 0o644); err != nil {
		t.Fatal(err)
	}

	var detail api.VersionDetail
	libPresent := api.Library{Name: "com.example:present:1.0"}
	libPresent.Downloads.Artifact.Path = "com/example/present/1.0/present-1.0.jar"
	libMissing := api.Library{Name: "com.example:missing:1.0"}
	libMissing.Downloads.Artifact.Path = "com/example/missing/1.0/missing-1.0.jar"
	libExcluded := api.Library{
		Name:  "com.example:winonly:1.0",
		Rules: []api.Rule{osRule(api.ActionAllow, "windows"), osRule(api.ActionDisallow, "linux")},
	}
	libExcluded.Downloads.Artifact.Path = "com/example/present/1.0/present-1.0.jar"
	detail.Libraries = []api.Library{libPresent, libMissing, libExcluded}

	cp := b.buildClasspath(&detail, "/versions/1.20/1.20.jar")
	if len(cp) != 2 {
		t.Fatalf("classpath = %v, want client jar + one library", cp)
	}
	if cp[0] != "/versions/1.20/1.20.jar" {
		t.Errorf("client jar must come first, got %q", cp[0])
	}
	if cp[1] != presentAbs {
		t.Errorf("cp[1] = %q, want %q", cp[1], presentAbs)
	}
}

func writeNativesJar(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		entry.Write([]byte(content))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPrepareNatives(t *testing.T) {
	b, paths := testBuilder(t, "linux")

	rel := "org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1-natives-linux.jar"
	writeNativesJar(t, filepath.Join(paths.LibrariesDir(), filepath.FromSlash(rel)), map[string]string{
		"liblwjgl.so":          "first",
		"sub/dir/libnested.so": "nested",
		"META-INF/MANIFEST.MF": "manifest",
	})

	var detail api.VersionDetail
	lib := api.Library{Name: "org.lwjgl:lwjgl:3.3.1:natives-linux"}
	lib.Downloads.Artifact.Path = rel
	detail.Libraries = []api.Library{lib}

	dir, err := b.prepareNatives(&detail, "1.20.1")
	if err != nil {
		t.Fatalf("prepareNatives: %v", err)
	}
	if dir != paths.NativesDir("1.20.1") {
		t.Errorf("dir = %q, want %q", dir, paths.NativesDir("1.20.1"))
	}

	// Nested entries get flattened; non-native entries are skipped.
	for _, name := range []string{"liblwjgl.so", "libnested.so"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing native %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "MANIFEST.MF")); !os.IsNotExist(err) {
		t.Error("non-native entry should not be extracted")
	}
}

func TestPrepareNativesFirstWriterWins(t *testing.T) {
	b, paths := testBuilder(t, "linux")

	relA := "com/example/a/1.0/a-1.0-natives-linux.jar"
	relB := "com/example/b/1.0/b-1.0-natives-linux.jar"
	writeNativesJar(t, filepath.Join(paths.LibrariesDir(), filepath.FromSlash(relA)), map[string]string{
		"libshared.so": "from-a",
	})
	writeNativesJar(t, filepath.Join(paths.LibrariesDir(), filepath.FromSlash(relB)), map[string]string{
		"libshared.so": "from-b",
	})

	var detail api.VersionDetail
	libA := api.Library{Name: "com.example:a:1.0:natives-linux"}
	libA.Downloads.Artifact.Path = relA
	libB := api.Library{Name: "com.example:b:1.0:natives-linux"}
	libB.Downloads.Artifact.Path = relB
	detail.Libraries = []api.Library{libA, libB}

	dir, err := b.prepareNatives(&detail, "1.20.1")
	if err != nil {
		t.Fatalf("prepareNatives: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "libshared.so"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "from-a" {
		t.Errorf("libshared.so = %q, first jar in manifest order should win", data)
	}
}

func TestPrepareNativesSkipsOtherPlatforms(t *testing.T) {
	b, _ := testBuilder(t, "linux")

	var detail api.VersionDetail
	lib := api.Library{Name: "org.lwjgl:lwjgl:3.3.1:natives-windows"}
	lib.Downloads.Artifact.Path = "org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1-natives-windows.jar"
	detail.Libraries = []api.Library{lib}

	dir, err := b.prepareNatives(&detail, "1.20.1")
	if err != nil {
		t.Fatalf("prepareNatives: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("foreign-platform natives extracted: %v", entries)
	}
}

func TestNativeClassifierMatches(t *testing.T) {
	if !nativeClassifierMatches("natives-linux", "natives-linux", "linux") {
		t.Error("exact marker should match")
	}
	if nativeClassifierMatches("natives-windows", "natives-linux", "linux") {
		t.Error("foreign marker should not match")
	}
	if !nativeClassifierMatches("natives-macos", "natives-osx", "osx") {
		t.Error("macos alias should match on osx")
	}
}

func TestBuildLaunchPlan(t *testing.T) {
	b, paths := testBuilder(t, "linux")

	detail := &api.VersionDetail{Id: "1.20.1", MainClass: "net.minecraft.client.main.Main"}
	detail.AssetIndex.Id = "5"

	profile := util.Profile{
		Id:               "p1",
		Name:             "test",
		MinecraftVersion: "1.20.1",
		ServerAddress:    "play.example.com:25570",
		MaxMemoryMB:      4096,
	}

	plan, err := b.Build(profile, detail, "Steve")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if plan.MainClass != "net.minecraft.client.main.Main" {
		t.Errorf("MainClass = %q", plan.MainClass)
	}
	if plan.WorkDir != paths.GameDir {
		t.Errorf("WorkDir = %q, want game dir", plan.WorkDir)
	}

	jvm := strings.Join(plan.JvmArgs, " ")
	if !strings.Contains(jvm, "-Xmx4096M") || !strings.Contains(jvm, "-Xms512M") {
		t.Errorf("JvmArgs = %v", plan.JvmArgs)
	}
	if !strings.Contains(jvm, "-Djava.library.path="+plan.NativesDir) {
		t.Errorf("JvmArgs missing natives dir: %v", plan.JvmArgs)
	}

	game := strings.Join(plan.GameArgs, " ")
	for _, want := range []string{
		"--username Steve",
		"--version 1.20.1",
		"--assetIndex 5",
		"--uuid " + OfflineUUID("Steve"),
		"--accessToken 0",
		"--userType legacy",
		"--server play.example.com",
		"--port 25570",
	} {
		if !strings.Contains(game, want) {
			t.Errorf("GameArgs missing %q: %v", want, plan.GameArgs)
		}
	}
}

func TestBuildSkipsServerArgsForHttpAddress(t *testing.T) {
	b, _ := testBuilder(t, "linux")

	detail := &api.VersionDetail{Id: "1.20.1"}
	profile := util.Profile{
		Id:               "p1",
		MinecraftVersion: "1.20.1",
		ServerAddress:    "https://packs.example.com",
	}

	plan, err := b.Build(profile, detail, "Steve")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, arg := range plan.GameArgs {
		if arg == "--server" || arg == "--port" {
			t.Errorf("http manifest address must not become a join target: %v", plan.GameArgs)
		}
	}
}

func TestBuildValidation(t *testing.T) {
	b, _ := testBuilder(t, "linux")
	detail := &api.VersionDetail{Id: "1.20.1"}

	if _, err := b.Build(util.Profile{MinecraftVersion: "1.20.1"}, detail, ""); err == nil {
		t.Error("empty username should fail")
	}
	if _, err := b.Build(util.Profile{}, detail, "Steve"); err == nil {
		t.Error("profile without version should fail")
	}
}

func TestSplitServerAddress(t *testing.T) {
	tests := []struct {
		addr, host, port string
	}{
		{"play.example.com:25570", "play.example.com", "25570"},
		{"play.example.com", "play.example.com", "25565"},
		{"play.example.com:", "play.example.com", "25565"},
	}
	for _, tt := range tests {
		host, port := splitServerAddress(tt.addr)
		if host != tt.host || port != tt.port {
			t.Errorf("splitServerAddress(%q) = (%q, %q), want (%q, %q)", tt.addr, host, port, tt.host, tt.port)
		}
	}
}

func TestOfflineUUID(t *testing.T) {
	id := OfflineUUID("Steve")
	if id != OfflineUUID("Steve") {
		t.Error("uuid must be stable for a given name")
	}
	if id == OfflineUUID("Alex") {
		t.Error("different names must map to different uuids")
	}

	// Version 3 in the third group, RFC 4122 variant in the fourth.
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("uuid format: %q", id)
	}
	if parts[2][0] != '3' {
		t.Errorf("uuid version = %c, want 3 (%s)", parts[2][0], id)
	}
	switch parts[3][0] {
	case '8', '9', 'a', 'b':
	default:
		t.Errorf("uuid variant nibble = %c (%s)", parts[3][0], id)
	}
}
