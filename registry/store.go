package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ralim/titlecheck/titles"
	"github.com/ralim/titlecheck/utilities"
	"github.com/rs/zerolog/log"
)

var ErrCorruptStore = errors.New("registry store is corrupt")

// record is the on disk form of a title.
// The id stays a string so one bad record can't fail the whole array
type record struct {
	TitleID string `json:"titleId"`
	Version uint32 `json:"version"`
	Path    string `json:"path"`
}

// Load replaces the in memory registry with the stored one.
// Records whose file has since been deleted are dropped, and the store is rewritten to match
func (r *Registry) Load() error {
	records, err := r.readStore()
	if err != nil {
		return err
	}

	loaded := make(map[titles.TitleID]titles.Title, len(records))
	dropped := 0
	for _, rec := range records {
		titleID, err := titles.ParseTitleID(rec.TitleID)
		if err != nil {
			log.Debug().Err(err).Str("path", rec.Path).Msg("Dropping record with bad titleID")
			dropped++
			continue
		}
		info, err := os.Stat(rec.Path)
		if err != nil || !info.Mode().IsRegular() {
			log.Debug().Str("path", rec.Path).Str("titleId", rec.TitleID).Msg("Dropping title as file is gone")
			dropped++
			continue
		}
		title := titles.Title{
			ID:      titleID,
			Version: rec.Version,
			Path:    rec.Path,
			ModTime: info.ModTime(),
		}
		if existing, ok := loaded[title.ID]; ok && !supersedes(title, existing) {
			continue
		}
		loaded[title.ID] = title
	}

	r.Lock()
	r.titlesKnown = loaded
	r.Unlock()

	log.Info().Int("titles", len(loaded)).Int("dropped", dropped).Str("path", r.storePath).Msg("Loaded title registry")
	return r.Save()
}

func (r *Registry) readStore() ([]record, error) {
	r.storeLock.Lock()
	defer r.storeLock.Unlock()

	data, err := os.ReadFile(r.storePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil // fresh start
		}
		return nil, fmt.Errorf("couldn't read registry %s - %w", r.storePath, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s - %v", ErrCorruptStore, r.storePath, err)
	}
	return records, nil
}

// Save rewrites the whole store from the in memory state
func (r *Registry) Save() error {
	r.RLock()
	records := make([]record, 0, len(r.titlesKnown))
	for _, title := range r.titlesKnown {
		records = append(records, record{TitleID: title.ID.String(), Version: title.Version, Path: title.Path})
	}
	r.RUnlock()
	// Sort for deterministic output, ids are fixed width so string order is numeric order
	sort.Slice(records, func(i, j int) bool { return records[i].TitleID < records[j].TitleID })

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("couldn't encode registry - %w", err)
	}

	r.storeLock.Lock()
	defer r.storeLock.Unlock()
	if err := os.MkdirAll(filepath.Dir(r.storePath), 0o755); err != nil {
		return fmt.Errorf("couldn't create registry folder - %w", err)
	}
	if err := r.fileLock.Lock(); err != nil {
		return fmt.Errorf("couldn't lock registry %s - %w", r.storePath, err)
	}
	defer func() {
		if err := r.fileLock.Unlock(); err != nil {
			log.Warn().Err(err).Str("path", r.storePath).Msg("Failed to release registry lock")
		}
	}()
	return utilities.WriteFileAtomic(r.storePath, data)
}

// PruneMissing drops every title whose file no longer exists, saving if anything changed
func (r *Registry) PruneMissing() (int, error) {
	r.Lock()
	removed := 0
	for id, title := range r.titlesKnown {
		if !utilities.Exists(title.Path) {
			log.Info().Str("path", title.Path).Str("titleId", id.String()).Msg("Title file removed")
			delete(r.titlesKnown, id)
			removed++
		}
	}
	r.Unlock()
	if removed == 0 {
		return 0, nil
	}
	return removed, r.Save()
}
