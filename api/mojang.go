package api

import (
	"context"
	"fmt"
)

var VersionManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

type VersionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []VersionEntry `json:"versions"`
}

type VersionEntry struct {
	Id          string `json:"id"`
	Type        string `json:"type"`
	Url         string `json:"url"`
	ReleaseTime string `json:"releaseTime"`
}

// Find linear-scans the manifest for a version id. The second return is false
// when the id is unknown to Mojang.
func (m *VersionManifest) Find(id string) (VersionEntry, bool) {
	for _, v := range m.Versions {
		if v.Id == id {
			return v, true
		}
	}
	return VersionEntry{}, false
}

type RuleAction string

const (
	ActionAllow    RuleAction = "allow"
	ActionDisallow RuleAction = "disallow"
)

// Rule scopes a library to a platform. A nil OS constraint matches every
// platform.
type Rule struct {
	Action RuleAction `json:"action"`
	OS     *struct {
		Name string `json:"name"`
	} `json:"os,omitempty"`
}

type Library struct {
	Name      string `json:"name"`
	Rules     []Rule `json:"rules,omitempty"`
	Downloads struct {
		Artifact struct {
			Path string `json:"path"`
			Url  string `json:"url"`
			Sha1 string `json:"sha1"`
		} `json:"artifact"`
	} `json:"downloads"`
}

// VersionDetail is the per-version JSON, parsed once at the manifest boundary
// so everything above works with typed data.
type VersionDetail struct {
	Id        string `json:"id"`
	MainClass string `json:"mainClass"`
	Downloads struct {
		Client struct {
			Url    string `json:"url"`
			Sha256 string `json:"sha256"`
		} `json:"client"`
	} `json:"downloads"`
	Libraries  []Library `json:"libraries"`
	AssetIndex struct {
		Id string `json:"id"`
	} `json:"assetIndex"`
	Assets string `json:"assets"`
}

// AssetIndexId returns the asset index identifier, falling back to the legacy
// top-level assets field used by old versions.
func (d *VersionDetail) AssetIndexId() string {
	if d.AssetIndex.Id != "" {
		return d.AssetIndex.Id
	}
	return d.Assets
}

// FetchVersionManifest pulls the global version listing. It is fetched fresh
// on every call and never persisted.
func (c *Client) FetchVersionManifest(ctx context.Context) (*VersionManifest, error) {
	var manifest VersionManifest
	if err := c.GetJSON(ctx, VersionManifestURL, &manifest); err != nil {
		return nil, fmt.Errorf("fetch version manifest: %w", err)
	}
	return &manifest, nil
}
