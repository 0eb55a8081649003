package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFabricLoaderVersions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/versions/loader/1.20.1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `[
			{"loader":{"version":"0.15.11","stable":true}},
			{"loader":{"version":"0.15.10","stable":true}}
		]`)
	}))
	defer srv.Close()

	old := FabricMetaBase
	FabricMetaBase = srv.URL
	defer func() { FabricMetaBase = old }()

	versions, err := testClient().FabricLoaderVersions(context.Background(), "1.20.1")
	if err != nil {
		t.Fatalf("FabricLoaderVersions: %v", err)
	}
	if len(versions) != 2 || versions[0] != "0.15.11" {
		t.Errorf("versions = %v", versions)
	}
}

func TestFabricLoaderVersionsEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	old := FabricMetaBase
	FabricMetaBase = srv.URL
	defer func() { FabricMetaBase = old }()

	versions, err := testClient().FabricLoaderVersions(context.Background(), "0.0.0")
	if err != nil {
		t.Fatalf("FabricLoaderVersions: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("versions = %v, want empty", versions)
	}
}

func TestFabricLoaderVersionsUnparseableResponse(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		io.WriteString(w, `<html>maintenance</html>`)
	}))
	defer srv.Close()

	old := FabricMetaBase
	FabricMetaBase = srv.URL
	defer func() { FabricMetaBase = old }()

	versions, err := testClient().FabricLoaderVersions(context.Background(), "1.20.1")
	if err != nil {
		t.Fatalf("unparseable metadata must not be an error: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("versions = %v, want empty", versions)
	}
	// A 200 with a bad body is not a transport failure, so no retries.
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestForgeVersionsUnparseableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `not json at all`)
	}))
	defer srv.Close()

	old := ForgePromotionsURL
	ForgePromotionsURL = srv.URL
	defer func() { ForgePromotionsURL = old }()

	versions, err := testClient().ForgeVersions(context.Background(), "1.20.1")
	if err != nil {
		t.Fatalf("unparseable promotions must not be an error: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("versions = %v, want empty", versions)
	}
}

func TestForgeVersionsPrefersRecommended(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"promos":{
			"1.20.1-latest":"47.3.0",
			"1.20.1-recommended":"47.2.0",
			"1.19.4-recommended":"45.1.0"
		}}`)
	}))
	defer srv.Close()

	old := ForgePromotionsURL
	ForgePromotionsURL = srv.URL
	defer func() { ForgePromotionsURL = old }()

	versions, err := testClient().ForgeVersions(context.Background(), "1.20.1")
	if err != nil {
		t.Fatalf("ForgeVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions = %v, want 2 entries", versions)
	}
	if versions[0] != "47.2.0" {
		t.Errorf("first = %s, want recommended 47.2.0", versions[0])
	}
}

func TestForgeVersionsNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"promos":{"1.19.4-recommended":"45.1.0"}}`)
	}))
	defer srv.Close()

	old := ForgePromotionsURL
	ForgePromotionsURL = srv.URL
	defer func() { ForgePromotionsURL = old }()

	versions, err := testClient().ForgeVersions(context.Background(), "1.20.1")
	if err != nil {
		t.Fatalf("ForgeVersions: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("versions = %v, want empty", versions)
	}
}

func TestVersionManifestFind(t *testing.T) {
	manifest := &VersionManifest{
		Versions: []VersionEntry{
			{Id: "1.20.1", Type: "release", Url: "https://example/1.20.1.json"},
			{Id: "1.19.4", Type: "release", Url: "https://example/1.19.4.json"},
		},
	}

	entry, ok := manifest.Find("1.19.4")
	if !ok || entry.Url != "https://example/1.19.4.json" {
		t.Errorf("Find(1.19.4) = %+v, %v", entry, ok)
	}
	if _, ok := manifest.Find("9.9.9"); ok {
		t.Error("Find(9.9.9) should miss")
	}
}
