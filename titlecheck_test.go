package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ralim/titlecheck/settings"
	"github.com/ralim/titlecheck/updates"
)

func TestRenderReport(t *testing.T) {
	report := []updates.Entry{
		{TitleID: 0x0100000000010000, Kind: "Base", Path: "/games/a.nsp", Available: 0, Latest: 65536, Outdated: true},
		{TitleID: 0x0100000000020000, Kind: "Base", Path: "/games/b.nsp", Available: 0, Latest: 0},
	}
	all := renderReport(report, false)
	if !strings.Contains(all, "0100000000010000") || !strings.Contains(all, "0100000000020000") {
		t.Errorf("All rows should be listed:\n%s", all)
	}
	if !strings.Contains(strings.ToLower(all), "1 of 2 outdated") {
		t.Errorf("Footer should count outdated titles:\n%s", all)
	}
	onlyOutdated := renderReport(report, true)
	if strings.Contains(onlyOutdated, "0100000000020000") {
		t.Errorf("Up to date rows should be hidden:\n%s", onlyOutdated)
	}
}

func TestRunOnce(t *testing.T) {
	temp := t.TempDir()
	games := filepath.Join(temp, "games")
	if err := os.MkdirAll(games, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(games, "Game [0100000000010000][v0].nsp"), []byte("nsp"), 0o644); err != nil {
		t.Fatal(err)
	}
	fakeManifest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"0100000000010000": {"0": {}, "131072": {}}}`))
	}))
	defer fakeManifest.Close()

	m := NewTitleCheck()
	m.Once = true
	m.settings = settings.NewSettings(filepath.Join(temp, "titlecheck.json"))
	m.settings.FoldersToScan = settings.StringList{games}
	m.settings.RegistryPath = filepath.Join(temp, "titles.json")
	m.settings.ManifestCachePath = filepath.Join(temp, "versions.json")
	m.settings.ManifestURL = fakeManifest.URL

	out := &bytes.Buffer{}
	if err := m.runOnce(out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "0100000000010000") || !strings.Contains(out.String(), "Update available") {
		t.Errorf("Should report the outdated game:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(temp, "titles.json")); err != nil {
		t.Errorf("Registry should be saved - %v", err)
	}
}
