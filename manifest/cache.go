package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ralim/titlecheck/titles"
	"github.com/ralim/titlecheck/utilities"
	"github.com/rs/zerolog/log"
)

const (
	DefaultURL     = "https://api.github.com/repos/blawar/titledb/contents/versions.json"
	DefaultMaxAge  = time.Hour
	DefaultTimeout = 30 * time.Second
)

var ErrFetchFailed = errors.New("fetching versions manifest failed")

type CacheOptions struct {
	URL     string        // Where the manifest is published
	Path    string        // Local copy of the manifest, its mtime is the last fetch time
	MaxAge  time.Duration // How long the local copy is trusted for
	Timeout time.Duration // Limit on the whole download
	Client  *http.Client
}

// Cache holds the versions manifest, refreshing the local copy when it is stale
type Cache struct {
	opts CacheOptions
	now  func() time.Time

	lock    sync.RWMutex
	current *Manifest
}

func NewCache(opts CacheOptions) *Cache {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &Cache{
		opts:    opts,
		now:     time.Now,
		current: Empty(),
	}
}

// Manifest is the currently loaded manifest, which may be empty
func (c *Cache) Manifest() *Manifest {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.current
}

func (c *Cache) LatestVersion(titleID titles.TitleID) uint32 {
	return c.Manifest().LatestVersion(titleID)
}

// IsFresh reports if the local copy exists and is younger than MaxAge.
// A timestamp in the future counts as stale
func (c *Cache) IsFresh() bool {
	info, err := os.Stat(c.opts.Path)
	if err != nil {
		return false
	}
	age := c.now().Sub(info.ModTime())
	return age >= 0 && age < c.opts.MaxAge
}

// EnsureFresh loads the local copy if it is fresh, otherwise downloads the manifest.
// A failed download falls back to any stale local copy; the error is returned for logging only
func (c *Cache) EnsureFresh(ctx context.Context) error {
	if c.IsFresh() {
		err := c.loadFile()
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Str("path", c.opts.Path).Msg("Cached manifest unreadable, downloading again")
	}

	err := c.fetch(ctx)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Msg("Downloading versions manifest failed, will continue using cached")
	if utilities.Exists(c.opts.Path) {
		if loadErr := c.loadFile(); loadErr != nil {
			log.Warn().Err(loadErr).Str("path", c.opts.Path).Msg("Cached manifest unreadable")
		}
	}
	return err
}

func (c *Cache) loadFile() error {
	file, err := os.Open(c.opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	m, err := Parse(file)
	if err != nil {
		return err
	}
	c.set(m)
	log.Info().Int("titles", m.Len()).Str("path", c.opts.Path).Msg("Loaded cached versions manifest")
	return nil
}

func (c *Cache) set(m *Manifest) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.current = m
}

func (c *Cache) etagPath() string {
	return c.opts.Path + ".etag"
}

func (c *Cache) fetch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: cant request %s - %v", ErrFetchFailed, c.opts.URL, err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3.raw")
	req.Header.Set("Accept-Encoding", "zstd, gzip")
	if utilities.Exists(c.opts.Path) {
		if etag, err := os.ReadFile(c.etagPath()); err == nil && len(etag) > 0 {
			req.Header.Set("If-None-Match", string(etag))
		}
	}

	response, err := c.opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s - %v", ErrFetchFailed, c.opts.URL, err)
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusNotModified:
		//Not modified, local copy is good for another MaxAge
		now := c.now()
		if err := os.Chtimes(c.opts.Path, now, now); err != nil {
			log.Warn().Err(err).Str("path", c.opts.Path).Msg("Couldn't refresh manifest timestamp")
		}
		return c.loadFile()
	case http.StatusOK:
	default:
		return fmt.Errorf("%w: %s -> %d", ErrFetchFailed, c.opts.URL, response.StatusCode)
	}

	body, err := decodeBody(response)
	if err != nil {
		return fmt.Errorf("%w: %s - %v", ErrFetchFailed, c.opts.URL, err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("%w: %s - %v", ErrFetchFailed, c.opts.URL, err)
	}
	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	c.set(m)
	log.Info().Int("titles", m.Len()).Str("url", c.opts.URL).Msg("Downloaded versions manifest")

	if err := utilities.WriteFileAtomic(c.opts.Path, data); err != nil {
		log.Warn().Err(err).Msg("Couldn't save versions manifest cache")
		return nil
	}
	//We dont bubble up etag errors as non-essential
	if etag := response.Header.Get("ETag"); etag != "" {
		if err := utilities.WriteFileAtomic(c.etagPath(), []byte(etag)); err != nil {
			log.Warn().Err(err).Msg("Saving manifest ETag failed, continuing anyway")
		}
	} else {
		os.Remove(c.etagPath())
	}
	return nil
}

// decodeBody undoes any content encoding we asked the server for
func decodeBody(response *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(response.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return io.NopCloser(response.Body), nil
	case "gzip":
		return gzip.NewReader(response.Body)
	case "zstd":
		decoder, err := zstd.NewReader(response.Body)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", response.Header.Get("Content-Encoding"))
	}
}
