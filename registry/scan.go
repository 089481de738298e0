package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ralim/titlecheck/titles"
	"github.com/ralim/titlecheck/utilities"
	"github.com/rs/zerolog/log"
)

var ErrNotADirectory = errors.New("scan path is not a directory")

// Scan walks each root and merges any title files found into the registry.
// Returns how many titleIDs were added or replaced.
// Roots that are not directories are reported in the returned error, the others still scan
func (r *Registry) Scan(ctx context.Context, roots ...string) (int, error) {
	r.scanLock.Lock()
	defer r.scanLock.Unlock()

	if _, err := r.PruneMissing(); err != nil {
		log.Warn().Err(err).Msg("Saving registry after pruning failed")
	}

	changed := make(map[titles.TitleID]struct{})
	sinceSave := 0
	var errs []error
	for _, root := range roots {
		if !utilities.IsDir(root) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNotADirectory, root))
			continue
		}
		log.Info().Str("path", root).Msg("Scanning folder")
		visited := make(map[string]bool)
		r.walk(ctx, root, visited, func(path string) {
			title, err := r.parser.ParseFile(path)
			if err != nil {
				if !errors.Is(err, titles.ErrNotATitle) {
					log.Warn().Err(err).Str("path", path).Msg("Couldn't parse file")
				}
				return
			}
			if !r.offer(title) {
				return
			}
			log.Debug().Str("path", path).Str("titleId", title.ID.String()).Uint32("version", title.Version).Msg("Title added")
			changed[title.ID] = struct{}{}
			sinceSave++
			if sinceSave >= r.saveEvery {
				sinceSave = 0
				if err := r.Save(); err != nil {
					log.Warn().Err(err).Msg("Checkpointing registry failed")
				}
			}
		})
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}

	if err := r.Save(); err != nil {
		errs = append(errs, err)
	}
	log.Info().Int("changed", len(changed)).Int("total", r.Len()).Msg("Scan finished")
	return len(changed), errors.Join(errs...)
}

// walk recursively visits every regular file under dir, following symlinks.
// Folders are tracked by their resolved path so link loops are only entered once.
// Errors are logged and skipped, a broken subtree never aborts the walk
func (r *Registry) walk(ctx context.Context, dir string, visited map[string]bool, visit func(path string)) {
	if ctx.Err() != nil {
		return
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		log.Debug().Err(err).Str("path", dir).Msg("Can't resolve folder")
		return
	}
	if visited[resolved] {
		return
	}
	visited[resolved] = true

	// ReadDir returns whatever it managed to read alongside the error
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Can't read folder, skipping")
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Can't stat, skipping")
			continue
		}
		if info.IsDir() {
			r.walk(ctx, path, visited, visit)
		} else if info.Mode().IsRegular() && r.parser.HasTitleExtension(path) {
			visit(path)
		}
	}
}
