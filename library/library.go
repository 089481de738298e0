package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ralim/titlecheck/manifest"
	"github.com/ralim/titlecheck/registry"
	"github.com/ralim/titlecheck/settings"
	"github.com/ralim/titlecheck/termui"
	"github.com/ralim/titlecheck/titles"
	"github.com/ralim/titlecheck/updates"
	"github.com/ralim/titlecheck/utilities"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("library is stopped")

type scanRequest struct {
	id    uuid.UUID
	roots []string
}

// Library owns the title registry and versions manifest, and runs scans in the background
type Library struct {
	//Privates
	settings *settings.Settings
	registry *registry.Registry
	versions *manifest.Cache
	ui       *termui.TermUI

	waitgroup    *sync.WaitGroup
	scanRequests chan *scanRequest
	ctx          context.Context
	cancel       context.CancelFunc

	jobsLock sync.RWMutex
	jobs     map[uuid.UUID]*JobStatus
	keepJobs int // finished jobs remembered for ScanJob
}

// NewLibrary wires the library together; ui may be nil when running headless
func NewLibrary(settings *settings.Settings, reg *registry.Registry, versions *manifest.Cache, ui *termui.TermUI) *Library {
	ctx, cancel := context.WithCancel(context.Background())
	return &Library{
		settings: settings,
		registry: reg,
		versions: versions,
		ui:       ui,
		// Channels
		scanRequests: make(chan *scanRequest, 64),
		ctx:          ctx,
		cancel:       cancel,
		jobs:         make(map[uuid.UUID]*JobStatus),
		keepJobs:     100,
		// Internal objects
		waitgroup: &sync.WaitGroup{},
	}
}

// NewFromSettings builds the registry and manifest cache described by the settings
func NewFromSettings(s *settings.Settings, ui *termui.TermUI) *Library {
	reg := registry.New(s.RegistryPath, titles.NewParser(s.TitleExtensions))
	versions := manifest.NewCache(manifest.CacheOptions{
		URL:     s.ManifestURL,
		Path:    s.ManifestCachePath,
		MaxAge:  s.ManifestMaxAge(),
		Timeout: s.ManifestTimeout(),
	})
	return NewLibrary(s, reg, versions, ui)
}

func (lib *Library) registerTask(name string) *termui.TaskState {
	if lib.ui == nil {
		return nil
	}
	return lib.ui.RegisterTask(name)
}

// Load reads the stored registry. A corrupt store is logged and the registry starts empty,
// the next save replaces it
func (lib *Library) Load() {
	status := lib.registerTask("Registry")
	status.UpdateStatus("Loading")
	if err := lib.registry.Load(); err != nil {
		log.Error().Err(err).Str("path", lib.registry.StorePath()).Msg("Couldn't load title registry, starting empty")
		status.UpdateStatus("Load failed")
	} else {
		status.UpdateStatus(fmt.Sprintf("%d titles", lib.registry.Len()))
	}
	lib.refreshStatistics()
}

// Start loads the registry, spawns the scan worker and queues a scan of every configured folder.
// The manifest is refreshed on its own goroutine so it never holds up scanning
func (lib *Library) Start() error {
	lib.Load()

	lib.waitgroup.Add(1)
	go lib.scanWorker()

	lib.waitgroup.Add(1)
	go func() {
		defer lib.waitgroup.Done()
		_ = lib.RefreshManifest(lib.ctx)
	}()

	if _, err := lib.queueScan(lib.settings.ScanFolders()); err != nil {
		return err
	}
	return nil
}

func (lib *Library) Stop() {
	log.Info().Msg("Library closing")
	lib.cancel()
	lib.waitgroup.Wait()
}

// RefreshManifest makes sure the versions manifest is loaded and current.
// Failures are logged and leave the previous manifest in place
func (lib *Library) RefreshManifest(ctx context.Context) error {
	status := lib.registerTask("Manifest")
	status.UpdateStatus("Downloading")
	err := lib.versions.EnsureFresh(ctx)
	if err != nil {
		status.UpdateStatus("Using cached")
	} else {
		status.UpdateStatus(fmt.Sprintf("%d titles", lib.versions.Manifest().Len()))
	}
	lib.refreshStatistics()
	return err
}

// RequestScan queues a background scan of root, remembering it as a scan folder.
// Paths that are not directories are rejected
func (lib *Library) RequestScan(root string) (uuid.UUID, error) {
	if !utilities.IsDir(root) {
		return uuid.Nil, fmt.Errorf("%w: %s", registry.ErrNotADirectory, root)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return uuid.Nil, err
	}
	if lib.settings.AddScanFolder(absRoot) {
		log.Info().Str("path", absRoot).Msg("Added scan folder")
	}
	return lib.queueScan([]string{absRoot})
}

func (lib *Library) queueScan(roots []string) (uuid.UUID, error) {
	if lib.ctx.Err() != nil {
		return uuid.Nil, ErrStopped
	}
	request := &scanRequest{id: uuid.New(), roots: roots}
	lib.jobsLock.Lock()
	lib.jobs[request.id] = &JobStatus{
		ID:     request.id,
		Roots:  roots,
		State:  JobQueued,
		Queued: time.Now(),
	}
	lib.jobsLock.Unlock()

	select {
	case lib.scanRequests <- request:
		log.Debug().Str("job", request.id.String()).Strs("roots", roots).Msg("Scan queued")
		if lib.ctx.Err() != nil {
			// Stopped while sending, the worker may already have drained the queue
			lib.drainQueued()
		}
		return request.id, nil
	case <-lib.ctx.Done():
		lib.finishJob(request.id, 0, ErrStopped)
		return uuid.Nil, ErrStopped
	}
}

// ScanNow scans the roots on the calling goroutine
func (lib *Library) ScanNow(ctx context.Context, roots ...string) (int, error) {
	added, err := lib.registry.Scan(ctx, roots...)
	lib.refreshStatistics()
	return added, err
}

func (lib *Library) Registry() *registry.Registry {
	return lib.registry
}

// TitleVersionInfo is the available/latest version of every registered title
func (lib *Library) TitleVersionInfo() map[titles.TitleID]updates.VersionInfo {
	return updates.Resolve(lib.registry, lib.versions)
}

// VersionReport is TitleVersionInfo as ordered rows
func (lib *Library) VersionReport() []updates.Entry {
	return updates.Report(lib.registry, lib.versions)
}

func (lib *Library) refreshStatistics() {
	if lib.ui == nil {
		return
	}
	report := lib.VersionReport()
	stats := lib.registry.Stats()
	outdated := 0
	for _, entry := range report {
		if entry.Outdated {
			outdated++
		}
	}
	lib.ui.UpdateStatistics(termui.Statistics{
		TotalTitles:   stats.TotalTitles,
		TotalUpdates:  stats.TotalUpdates,
		TotalDLC:      stats.TotalDLC,
		TotalOutdated: outdated,
		ManifestSize:  lib.versions.Manifest().Len(),
	})
	lib.ui.ShowOutdated(report)
}
