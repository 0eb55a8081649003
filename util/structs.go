package util

// LoaderKind selects which mod loader ecosystem a profile runs on.
type LoaderKind string

const (
	LoaderVanilla LoaderKind = "vanilla"
	LoaderFabric  LoaderKind = "fabric"
	LoaderForge   LoaderKind = "forge"
)

// ParseLoaderKind maps a user supplied string onto a known loader kind.
// Unknown values fall back to vanilla.
func ParseLoaderKind(s string) LoaderKind {
	switch LoaderKind(s) {
	case LoaderFabric:
		return LoaderFabric
	case LoaderForge:
		return LoaderForge
	default:
		return LoaderVanilla
	}
}

type Profile struct {
	Id               string     `json:"id"`
	Name             string     `json:"name"`
	MinecraftVersion string     `json:"minecraftVersion"`
	Loader           LoaderKind `json:"loader"`
	ServerAddress    string     `json:"serverAddress,omitempty"`
	MinMemoryMB      int        `json:"minMemoryMB,omitempty"`
	MaxMemoryMB      int        `json:"maxMemoryMB,omitempty"`
}

// ModInfo is one server-declared artifact. Equality is structural, which is
// what the sync comparison relies on.
type ModInfo struct {
	FileName    string `json:"fileName"`
	DownloadUrl string `json:"downloadUrl"`
	Checksum    string `json:"checksum"`
	FileSize    int64  `json:"fileSize"`
	Version     string `json:"version"`
	Required    bool   `json:"required"`
}

// ModManifest is the server's declared target state for one profile.
type ModManifest struct {
	Artifacts   []ModInfo `json:"artifacts"`
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
}

type SyncStage int

const (
	StageFetchingManifest SyncStage = iota
	StageComparingMods
	StageDeletingObsolete
	StageDownloadingNew
	StageDownloadingUpdates
	StageVerifyingIntegrity
	StageComplete
)

func (s SyncStage) String() string {
	switch s {
	case StageFetchingManifest:
		return "fetching manifest"
	case StageComparingMods:
		return "comparing mods"
	case StageDeletingObsolete:
		return "deleting obsolete"
	case StageDownloadingNew:
		return "downloading new"
	case StageDownloadingUpdates:
		return "downloading updates"
	case StageVerifyingIntegrity:
		return "verifying integrity"
	case StageComplete:
		return "complete"
	}
	return "unknown"
}

// SyncProgress is emitted to the sync progress sink. TotalMods is fixed once
// the comparison stage has run and never recomputed, so ProcessedMods/TotalMods
// is monotonic across stages.
type SyncProgress struct {
	Stage         SyncStage
	TotalMods     int
	ProcessedMods int
	CurrentMod    string
}

// LaunchPlan is the fully assembled JVM invocation. Built fresh per launch,
// never cached.
type LaunchPlan struct {
	ClasspathEntries []string
	NativesDir       string
	JvmArgs          []string
	MainClass        string
	GameArgs         []string
	WorkDir          string
}

// Args flattens the plan into the argv passed to the java binary.
func (p *LaunchPlan) Args() []string {
	args := make([]string, 0, len(p.JvmArgs)+1+len(p.GameArgs))
	args = append(args, p.JvmArgs...)
	args = append(args, p.MainClass)
	args = append(args, p.GameArgs...)
	return args
}

// LauncherProfile is one entry in the game launcher's profile registry.
type LauncherProfile struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Icon          string `json:"icon,omitempty"`
	LastVersionId string `json:"lastVersionId"`
	Created       string `json:"created"`
	LastUsed      string `json:"lastUsed"`
	JavaArgs      string `json:"javaArgs,omitempty"`
}
