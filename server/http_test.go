package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ralim/titlecheck/library"
	"github.com/ralim/titlecheck/settings"
)

func maketestServer(t *testing.T) (*Server, *library.Library, string) {
	t.Helper()
	tempFolder := t.TempDir()
	fakeManifest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"0100000000010000": {"0": {}, "65536": {}}}`))
	}))
	t.Cleanup(fakeManifest.Close)

	sett := settings.NewSettings(filepath.Join(tempFolder, "settings.json"))
	sett.FoldersToScan = settings.StringList{}
	sett.RegistryPath = filepath.Join(tempFolder, "titles.json")
	sett.ManifestCachePath = filepath.Join(tempFolder, "versions.json")
	sett.ManifestURL = fakeManifest.URL
	lib := library.NewFromSettings(sett, nil)

	games := filepath.Join(tempFolder, "games")
	if err := os.MkdirAll(games, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Game [0100000000010000][v0].nsp", "Extra [0100000000011001][v0].nsp"} {
		if err := os.WriteFile(filepath.Join(games, name), []byte("nsp"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := lib.ScanNow(context.Background(), games); err != nil {
		t.Fatal(err)
	}
	if err := lib.RefreshManifest(context.Background()); err != nil {
		t.Fatal(err)
	}
	return NewServer(lib, sett), lib, games
}

func doRequest(t *testing.T, server *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	requestRecorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(requestRecorder, req)
	return requestRecorder
}

func TestShiftPath(t *testing.T) {
	t.Parallel()
	cases := []struct{ in, head, tail string }{
		{"/", "", "/"},
		{"/titles.json", "titles.json", "/"},
		{"/scan/abc", "scan", "/abc"},
		{"scan//abc/", "scan", "/abc"},
	}
	for _, c := range cases {
		head, tail := ShiftPath(c.in)
		if head != c.head || tail != c.tail {
			t.Errorf("ShiftPath(%q) = %q, %q; want %q, %q", c.in, head, tail, c.head, c.tail)
		}
	}
}

func TestHTTPTitles(t *testing.T) {
	t.Parallel()
	server, _, _ := maketestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/titles.json")
	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if rr.Header().Get("Request-Id") == "" {
		t.Error("Responses should carry a request id")
	}
	var records []titleRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].TitleID != 0x0100000000010000 || records[1].Kind != "DLC" {
		t.Errorf("Unexpected titles %+v", records)
	}
}

func TestHTTPVersions(t *testing.T) {
	t.Parallel()
	server, _, _ := maketestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/versions.json")
	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v", rr.Code)
	}
	expected := `{"0100000000010000":{"available":0,"latest":65536},"0100000000011001":{"available":0,"latest":0}}`
	if body := strings.TrimSpace(rr.Body.String()); body != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", body, expected)
	}

	rr = doRequest(t, server, http.MethodGet, "/outdated.json")
	expected = `{"0100000000010000":{"available":0,"latest":65536}}`
	if body := strings.TrimSpace(rr.Body.String()); body != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", body, expected)
	}
}

func TestHTTPScan(t *testing.T) {
	t.Parallel()
	server, lib, games := maketestServer(t)
	if err := lib.Start(); err != nil {
		t.Fatal(err)
	}
	defer lib.Stop()

	rr := doRequest(t, server, http.MethodPost, "/scan?path="+url.QueryEscape(games))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusAccepted)
	}
	var accepted scanAccepted
	if err := json.Unmarshal(rr.Body.Bytes(), &accepted); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var job library.JobStatus
	for time.Now().Before(deadline) {
		rr = doRequest(t, server, http.MethodGet, "/scan/"+accepted.ID.String())
		if rr.Code != http.StatusOK {
			t.Fatalf("Job lookup failed with %v", rr.Code)
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &job); err != nil {
			t.Fatal(err)
		}
		if job.State == library.JobDone || job.State == library.JobFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if job.State != library.JobDone {
		t.Errorf("Scan should complete, got %+v", job)
	}
}

func TestHTTPErrors(t *testing.T) {
	t.Parallel()
	server, _, games := maketestServer(t)

	notADir := filepath.Join(games, "Game [0100000000010000][v0].nsp")
	cases := []struct {
		method, target string
		status         int
	}{
		{http.MethodPost, "/scan?path=" + url.QueryEscape(notADir), http.StatusBadRequest},
		{http.MethodPost, "/scan", http.StatusBadRequest},
		{http.MethodGet, "/scan/not-a-uuid", http.StatusNotFound},
		{http.MethodGet, "/scan/6f1c2b1e-1b7a-4f3e-9c55-6a1f4f1f0c11", http.StatusNotFound},
		{http.MethodPost, "/titles.json", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nothing.json", http.StatusNotFound},
	}
	for _, c := range cases {
		if rr := doRequest(t, server, c.method, c.target); rr.Code != c.status {
			t.Errorf("%s %s returned %v want %v", c.method, c.target, rr.Code, c.status)
		}
	}
}

func TestRunDisabled(t *testing.T) {
	t.Parallel()
	server, _, _ := maketestServer(t)
	server.settings.HTTPPort = 0
	server.Run()
	if server.http != nil {
		t.Error("Port 0 should not start a listener")
	}
	server.Stop()
}
