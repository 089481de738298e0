package registry

import (
	"sort"
	"sync"

	"github.com/gofrs/flock"
	"github.com/ralim/titlecheck/titles"
)

// Registry is the set of titles found on disk, keyed by titleID.
// It is persisted to a JSON store after every change, there is no save-on-exit
type Registry struct {
	sync.RWMutex // mutex to lock the entire titlesKnown map

	scanLock  sync.Mutex // only one scan at a time
	storeLock sync.Mutex // serialises file access within the process
	fileLock  *flock.Flock

	storePath string
	parser    *titles.Parser
	saveEvery int

	titlesKnown map[titles.TitleID]titles.Title
}

// Statistics are the totals shown in the UI
type Statistics struct {
	TotalTitles  int
	TotalUpdates int
	TotalDLC     int
}

// New creates an empty registry backed by the store at storePath; call Load to populate it
func New(storePath string, parser *titles.Parser) *Registry {
	if parser == nil {
		parser = titles.NewParser(nil)
	}
	return &Registry{
		storePath:   storePath,
		parser:      parser,
		fileLock:    flock.New(storePath + ".lock"),
		saveEvery:   20,
		titlesKnown: make(map[titles.TitleID]titles.Title),
	}
}

// StorePath is where the registry is persisted
func (r *Registry) StorePath() string {
	return r.storePath
}

// IDs lists all known titleIDs in ascending order
func (r *Registry) IDs() []titles.TitleID {
	r.RLock()
	defer r.RUnlock()
	ids := make([]titles.TitleID, 0, len(r.titlesKnown))
	for id := range r.titlesKnown {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) Get(id titles.TitleID) (titles.Title, bool) {
	r.RLock()
	defer r.RUnlock()
	title, ok := r.titlesKnown[id]
	return title, ok
}

func (r *Registry) IsAvailable(id titles.TitleID) bool {
	r.RLock()
	defer r.RUnlock()
	_, ok := r.titlesKnown[id]
	return ok
}

// Titles is a snapshot of every known title, ordered by titleID
func (r *Registry) Titles() []titles.Title {
	r.RLock()
	defer r.RUnlock()
	values := make([]titles.Title, 0, len(r.titlesKnown))
	for _, title := range r.titlesKnown {
		values = append(values, title)
	}
	sort.Slice(values, func(i, j int) bool { return values[i].ID < values[j].ID })
	return values
}

func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.titlesKnown)
}

func (r *Registry) Stats() Statistics {
	r.RLock()
	defer r.RUnlock()
	stats := Statistics{}
	for id := range r.titlesKnown {
		switch id.Kind() {
		case titles.KindBase:
			stats.TotalTitles++
		case titles.KindUpdate:
			stats.TotalUpdates++
		default:
			stats.TotalDLC++
		}
	}
	return stats
}

// offer inserts the candidate if it beats the current entry for its titleID.
// Returns true if the registry changed
func (r *Registry) offer(candidate titles.Title) bool {
	r.Lock()
	defer r.Unlock()
	existing, ok := r.titlesKnown[candidate.ID]
	if ok && !supersedes(candidate, existing) {
		return false
	}
	r.titlesKnown[candidate.ID] = candidate
	return true
}

// supersedes decides a collision between two files for the same titleID.
// Higher version always wins, then the newer file, and a full tie keeps the existing entry
func supersedes(candidate, existing titles.Title) bool {
	if candidate.Version != existing.Version {
		return candidate.Version > existing.Version
	}
	return candidate.ModTime.After(existing.ModTime)
}
