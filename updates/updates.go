package updates

import (
	"sort"

	"github.com/ralim/titlecheck/titles"
)

// TitleSource is the set of titles on disk
type TitleSource interface {
	IDs() []titles.TitleID
	Get(id titles.TitleID) (titles.Title, bool)
	IsAvailable(id titles.TitleID) bool
}

// VersionSource knows the newest published version of a title
type VersionSource interface {
	LatestVersion(id titles.TitleID) uint32
}

// VersionInfo is the installed vs newest known version of one title
type VersionInfo struct {
	Available uint32 `json:"available"`
	Latest    uint32 `json:"latest"`
}

func (v VersionInfo) Outdated() bool {
	return v.Latest > v.Available
}

// ResolveOne works out the version info for a single registered title.
//
// Updates are checked against the manifest entry of their base game.
// A base game with its update on disk reports no newer version, as the update row covers it.
// Base games without an update, and DLC, are checked against their own entry.
// Latest never drops below what is installed
func ResolveOne(id titles.TitleID, source TitleSource, versions VersionSource) (VersionInfo, bool) {
	title, ok := source.Get(id)
	if !ok {
		return VersionInfo{}, false
	}
	info := VersionInfo{Available: title.Version}
	switch id.Kind() {
	case titles.KindUpdate:
		info.Latest = versions.LatestVersion(id.Base())
	case titles.KindBase:
		// Available stays the base's own version even with an update on disk, the update row reports that
		if !source.IsAvailable(id.Update()) {
			info.Latest = versions.LatestVersion(id)
		}
	default:
		info.Latest = versions.LatestVersion(id)
	}
	if info.Latest < info.Available {
		info.Latest = info.Available
	}
	return info, true
}

// Resolve returns the version info for every registered title, once each
func Resolve(source TitleSource, versions VersionSource) map[titles.TitleID]VersionInfo {
	results := make(map[titles.TitleID]VersionInfo)
	for _, id := range source.IDs() {
		if _, done := results[id]; done {
			continue
		}
		if info, ok := ResolveOne(id, source, versions); ok {
			results[id] = info
		}
	}
	return results
}

// Outdated filters resolved info down to the titles with a newer version published
func Outdated(all map[titles.TitleID]VersionInfo) map[titles.TitleID]VersionInfo {
	results := make(map[titles.TitleID]VersionInfo)
	for id, info := range all {
		if info.Outdated() {
			results[id] = info
		}
	}
	return results
}

// Entry is one row of a version report
type Entry struct {
	TitleID   titles.TitleID `json:"titleId"`
	Kind      string         `json:"kind"`
	Path      string         `json:"path"`
	Available uint32         `json:"available"`
	Latest    uint32         `json:"latest"`
	Outdated  bool           `json:"outdated"`
}

// Report is Resolve as a list ordered by titleID, for presenting
func Report(source TitleSource, versions VersionSource) []Entry {
	resolved := Resolve(source, versions)
	entries := make([]Entry, 0, len(resolved))
	for id, info := range resolved {
		title, _ := source.Get(id)
		entries = append(entries, Entry{
			TitleID:   id,
			Kind:      id.Kind().String(),
			Path:      title.Path,
			Available: info.Available,
			Latest:    info.Latest,
			Outdated:  info.Outdated(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TitleID < entries[j].TitleID })
	return entries
}
