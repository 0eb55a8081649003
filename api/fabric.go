package api

import (
	"context"
	"encoding/json"
	"fmt"
)

var (
	FabricMetaBase  = "https://meta.fabricmc.net/v2"
	FabricMavenBase = "https://maven.fabricmc.net"
)

type fabricLoaderEntry struct {
	Loader struct {
		Version string `json:"version"`
	} `json:"loader"`
}

// FabricLoaderVersions lists the loader versions fabric publishes for a game
// version, most recent first. An empty or unparseable response yields an
// empty list, not an error; absence of candidates is a normal outcome.
func (c *Client) FabricLoaderVersions(ctx context.Context, gameVersion string) ([]string, error) {
	url := fmt.Sprintf("%s/versions/loader/%s", FabricMetaBase, gameVersion)
	body, err := c.GetBytes(ctx, url)
	if err != nil {
		return nil, err
	}

	var entries []fabricLoaderEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		c.log.Warn().Str("url", url).Msg("unparseable loader metadata, no candidates")
		return nil, nil
	}

	var versions []string
	for _, e := range entries {
		if e.Loader.Version != "" {
			versions = append(versions, e.Loader.Version)
		}
	}
	return versions, nil
}

// FabricLoaderURL is the maven location of a fabric loader jar.
func FabricLoaderURL(loaderVersion string) string {
	return fmt.Sprintf("%s/net/fabricmc/fabric-loader/%s/fabric-loader-%s.jar",
		FabricMavenBase, loaderVersion, loaderVersion)
}
