package fileutils

import (
	"encoding/json"
	"os"

	"github.com/buger/jsonparser"
	"github.com/tidwall/gjson"

	"github.com/packforge/launcher/util"
)

// The loader profile registry is the stock launcher's launcher_profiles.json.
// We only ever touch the entries we own, so writes are surgical: the rest of
// the document passes through untouched.

func readRegistry(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []byte(`{"profiles":{}}`), nil
	}
	return data, err
}

// AddLauncherProfile inserts or replaces a registry entry keyed by the
// profile name.
func AddLauncherProfile(path string, profile util.LauncherProfile) error {
	doc, err := readRegistry(path)
	if err != nil {
		return err
	}

	entry, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	doc, err = jsonparser.Set(doc, entry, "profiles", profile.Name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, doc, 0o644)
}

// RemoveLauncherProfile deletes a registry entry. Removing an absent entry is
// a no-op.
func RemoveLauncherProfile(path, name string) error {
	doc, err := readRegistry(path)
	if err != nil {
		return err
	}
	doc = jsonparser.Delete(doc, "profiles", name)
	return os.WriteFile(path, doc, 0o644)
}

// LauncherProfileVersionIds lists every lastVersionId in the registry. The
// loader detection heuristic scans these for marker substrings.
func LauncherProfileVersionIds(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var ids []string
	gjson.GetBytes(data, "profiles").ForEach(func(_, value gjson.Result) bool {
		if id := value.Get("lastVersionId").String(); id != "" {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}
