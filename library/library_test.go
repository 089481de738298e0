package library

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ralim/titlecheck/registry"
	"github.com/ralim/titlecheck/settings"
	"github.com/ralim/titlecheck/titles"
)

const testManifest = `{"0100000000010000": {"0": {}, "65536": {}}}`

func makeTestLibrary(t *testing.T) (*Library, string) {
	t.Helper()
	temp := t.TempDir()
	games := filepath.Join(temp, "games")
	if err := os.MkdirAll(games, 0o755); err != nil {
		t.Fatal(err)
	}

	fakeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testManifest))
	}))
	t.Cleanup(fakeServer.Close)

	sett := settings.NewSettings(filepath.Join(temp, "conf", "titlecheck.json"))
	sett.FoldersToScan = settings.StringList{games}
	sett.RegistryPath = filepath.Join(temp, "conf", "titles.json")
	sett.ManifestCachePath = filepath.Join(temp, "cache", "versions.json")
	sett.ManifestURL = fakeServer.URL
	return NewFromSettings(sett, nil), games
}

func writeTitle(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("nsp"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func waitForJob(t *testing.T, lib *Library, id uuid.UUID) JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := lib.ScanJob(id)
		if !ok {
			t.Fatalf("Job %s should be known", id)
		}
		if job.State == JobDone || job.State == JobFailed {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Job %s never finished", id)
	return JobStatus{}
}

func TestStopStart(t *testing.T) {
	// Starting and stopping with a scan queued should neither hang nor race
	t.Parallel()
	lib, games := makeTestLibrary(t)
	writeTitle(t, games, "Game [0100000000010000][v0].nsp")

	if err := lib.Start(); err != nil {
		t.Fatal(err)
	}
	lib.Stop()

	if _, err := lib.RequestScan(games); !errors.Is(err, ErrStopped) {
		t.Errorf("Scans after stop should be refused, got %v", err)
	}
}

func TestRequestScan(t *testing.T) {
	t.Parallel()
	lib, games := makeTestLibrary(t)
	if err := lib.Start(); err != nil {
		t.Fatal(err)
	}
	defer lib.Stop()

	extra := t.TempDir()
	writeTitle(t, extra, "Game [0100000000010000][v0].nsp")
	writeTitle(t, extra, "Game [0100000000010800][v65536].nsp")
	writeTitle(t, extra, "readme.txt")

	id, err := lib.RequestScan(extra)
	if err != nil {
		t.Fatal(err)
	}
	job := waitForJob(t, lib, id)
	if job.State != JobDone || job.Added != 2 {
		t.Errorf("Scan should add both titles, got %+v", job)
	}
	if !lib.Registry().IsAvailable(0x0100000000010800) {
		t.Error("Update should be registered")
	}

	folders := lib.settings.ScanFolders()
	if len(folders) != 2 || folders[0] != games || folders[1] != extra {
		t.Errorf("Requested folder should be remembered, got %v", folders)
	}
}

func TestRequestScanRejectsFiles(t *testing.T) {
	t.Parallel()
	lib, games := makeTestLibrary(t)
	writeTitle(t, games, "Game [0100000000010000][v0].nsp")

	_, err := lib.RequestScan(filepath.Join(games, "Game [0100000000010000][v0].nsp"))
	if !errors.Is(err, registry.ErrNotADirectory) {
		t.Errorf("Files should be rejected, got %v", err)
	}
	_, err = lib.RequestScan(filepath.Join(games, "missing"))
	if !errors.Is(err, registry.ErrNotADirectory) {
		t.Errorf("Missing paths should be rejected, got %v", err)
	}
	if _, ok := lib.ScanJob(uuid.New()); ok {
		t.Error("Unknown jobs should not be found")
	}
}

func TestVersionReport(t *testing.T) {
	t.Parallel()
	lib, games := makeTestLibrary(t)
	writeTitle(t, games, "Game [0100000000010000][v0].nsp")
	writeTitle(t, games, "Extra [0100000000011001][v0].nsp")

	ctx := context.Background()
	if added, err := lib.ScanNow(ctx, games); err != nil || added != 2 {
		t.Fatalf("Expected 2 titles, got %d (%v)", added, err)
	}
	if err := lib.RefreshManifest(ctx); err != nil {
		t.Fatal(err)
	}

	info := lib.TitleVersionInfo()
	base := titles.TitleID(0x0100000000010000)
	if info[base].Latest != 65536 || !info[base].Outdated() {
		t.Errorf("Base should be behind the manifest, got %+v", info[base])
	}
	report := lib.VersionReport()
	if len(report) != 2 || report[0].TitleID != base || !report[0].Outdated || report[1].Outdated {
		t.Errorf("Unexpected report %+v", report)
	}
}

func TestStopFailsQueuedScans(t *testing.T) {
	t.Parallel()
	lib, games := makeTestLibrary(t)

	// Queue before the worker exists so the requests are still waiting at stop
	first, err := lib.queueScan([]string{games})
	if err != nil {
		t.Fatal(err)
	}
	second, err := lib.queueScan([]string{games})
	if err != nil {
		t.Fatal(err)
	}
	lib.cancel()
	lib.waitgroup.Add(1)
	go lib.scanWorker()
	lib.Stop()

	for _, id := range []uuid.UUID{first, second} {
		job, ok := lib.ScanJob(id)
		if !ok {
			t.Fatalf("Job %s should still be known", id)
		}
		if job.State != JobFailed || job.Error == "" || job.Finished.IsZero() {
			t.Errorf("Queued job should fail on stop, got %+v", job)
		}
	}
	if len(lib.scanRequests) != 0 {
		t.Errorf("Queue should be drained, %d left", len(lib.scanRequests))
	}
}

func TestFinishedJobsAreTrimmed(t *testing.T) {
	t.Parallel()
	lib, games := makeTestLibrary(t)
	lib.keepJobs = 2

	ids := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		id, err := lib.queueScan([]string{games})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	pending, err := lib.queueScan([]string{games})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		lib.finishJob(id, 0, nil)
		time.Sleep(time.Millisecond)
	}

	if _, ok := lib.ScanJob(ids[0]); ok {
		t.Error("Oldest finished job should be forgotten")
	}
	for _, id := range []uuid.UUID{ids[1], ids[2], pending} {
		if _, ok := lib.ScanJob(id); !ok {
			t.Errorf("Job %s should be kept", id)
		}
	}
}
