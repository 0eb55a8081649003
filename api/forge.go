package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/packforge/launcher/util"
)

var (
	ForgePromotionsURL = "https://files.minecraftforge.net/net/minecraftforge/forge/promotions_slim.json"
	ForgeMavenBase     = "https://maven.minecraftforge.net"
)

type forgePromotions struct {
	Promos map[string]string `json:"promos"`
}

// ForgeVersions lists promoted forge builds for a game version. Promotion keys
// look like "1.20.1-recommended"; recommended builds sort ahead of latest so
// the first entry is the safest pick.
func (c *Client) ForgeVersions(ctx context.Context, gameVersion string) ([]string, error) {
	body, err := c.GetBytes(ctx, ForgePromotionsURL)
	if err != nil {
		return nil, err
	}

	var promos forgePromotions
	if err := json.Unmarshal(body, &promos); err != nil {
		c.log.Warn().Str("url", ForgePromotionsURL).Msg("unparseable promotions metadata, no candidates")
		return nil, nil
	}

	var recommended, latest []string
	for key, build := range promos.Promos {
		if build == "" || !strings.HasPrefix(key, gameVersion+"-") {
			continue
		}
		if strings.HasSuffix(key, "-recommended") {
			recommended = append(recommended, build)
		} else {
			latest = append(latest, build)
		}
	}

	var out []string
	for _, v := range append(recommended, latest...) {
		if !util.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// ForgeInstallerURL is the maven location of a forge installer jar.
func ForgeInstallerURL(gameVersion, forgeVersion string) string {
	full := gameVersion + "-" + forgeVersion
	return fmt.Sprintf("%s/net/minecraftforge/forge/%s/forge-%s-installer.jar",
		ForgeMavenBase, full, full)
}
