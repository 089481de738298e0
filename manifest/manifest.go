package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/ralim/titlecheck/titles"
	"github.com/rs/zerolog/log"
)

// Manifest is the published list of versions per title, as in blawar's versions.json:
//
//	{"0100000000010000": {"0": "2017-03-03", "65536": "2017-04-12"}}
//
// The values are ignored, only the set of version keys matters
type Manifest struct {
	versions map[titles.TitleID][]uint32 // sorted ascending
}

// Empty is a manifest with no known versions
func Empty() *Manifest {
	return &Manifest{versions: make(map[titles.TitleID][]uint32)}
}

// Parse reads the manifest json. Entries with unparseable titleIDs or versions are skipped
func Parse(r io.Reader) (*Manifest, error) {
	data := map[string]map[string]json.RawMessage{}
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("couldn't parse versions manifest - %w", err)
	}
	m := Empty()
	//Now walk the map and parse it into a usable lookup
	for key, versions := range data {
		titleID, err := titles.ParseTitleID(key)
		if err != nil {
			log.Warn().Str("title", key).Msg("TitleID failed parsing in versions manifest")
			continue
		}
		known := m.versions[titleID]
		for k := range versions {
			version, err := strconv.ParseUint(k, 10, 32)
			if err != nil {
				log.Warn().Err(err).Str("title", key).Str("value", k).Msg("Title version failed parsing in versions manifest")
				continue
			}
			known = append(known, uint32(version))
		}
		sort.Slice(known, func(i, j int) bool { return known[i] < known[j] })
		m.versions[titleID] = known
	}
	return m, nil
}

// LatestVersion returns the newest version for this TitleID or 0 if none found
func (m *Manifest) LatestVersion(titleID titles.TitleID) uint32 {
	known := m.versions[titleID]
	if len(known) == 0 {
		return 0
	}
	return known[len(known)-1]
}

// Versions lists every published version for the TitleID, oldest first
func (m *Manifest) Versions(titleID titles.TitleID) []uint32 {
	known := m.versions[titleID]
	out := make([]uint32, len(known))
	copy(out, known)
	return out
}

// Len is the number of titles in the manifest
func (m *Manifest) Len() int {
	return len(m.versions)
}
