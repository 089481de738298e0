package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/ralim/titlecheck/manifest"
	"github.com/ralim/titlecheck/titles"
	"github.com/ralim/titlecheck/utilities"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Settings struct {
	FoldersToScan          StringList `json:"scanFolders" toml:"scanFolders"`                       // Folders to look for title files in
	TitleExtensions        StringList `json:"titleExtensions" toml:"titleExtensions"`               // File extensions that are title containers
	RegistryPath           string     `json:"registryPath" toml:"registryPath"`                     // Where the list of known titles is stored
	ManifestURL            string     `json:"manifestURL" toml:"manifestURL"`                       // URL of the published versions.json
	ManifestCachePath      string     `json:"manifestCachePath" toml:"manifestCachePath"`           // Local copy of versions.json
	ManifestMaxAgeSeconds  int        `json:"manifestMaxAgeSeconds" toml:"manifestMaxAgeSeconds"`   // How long the local copy is used before downloading again
	ManifestTimeoutSeconds int        `json:"manifestTimeoutSeconds" toml:"manifestTimeoutSeconds"` // Limit on the manifest download
	HTTPPort               int        `json:"httpPort" toml:"httpPort"`                             // Port used for the JSON api, 0 disables it
	LogLevel               string     `json:"logLevel" toml:"logLevel"`                             // zerolog level name
	// Private
	filePath string
	lock     sync.Mutex
}

// NewSettings creates settings with sane defaults
// And then loads any settings from the provided path (overwriting defaults)
func NewSettings(path string) *Settings {
	settings := &Settings{
		filePath:               path,
		FoldersToScan:          StringList{"."},
		TitleExtensions:        append(StringList{}, titles.DefaultExtensions...),
		RegistryPath:           "conf/titles.json",
		ManifestURL:            manifest.DefaultURL,
		ManifestCachePath:      "cache/versions.json",
		ManifestMaxAgeSeconds:  int(manifest.DefaultMaxAge / time.Second),
		ManifestTimeoutSeconds: int(manifest.DefaultTimeout / time.Second),
		HTTPPort:               0,
		LogLevel:               "info",
	}
	//Load the settings file if it exsts, which will override the defaults above if specified
	settings.Load()
	//Save to preserve if we have added anything to the file, and drop no-longer used settings for clarity
	settings.Save()
	return settings
}

func (s *Settings) isTOML() bool {
	return strings.EqualFold(filepath.Ext(s.filePath), ".toml")
}

func (s *Settings) Load() {
	//Load existing settings file if possible; if not load do nothing
	file, err := os.Open(s.filePath)
	if err != nil {
		return
	}
	defer file.Close()
	if err := s.LoadFrom(file); err != nil {
		log.Warn().Err(err).Str("path", s.filePath).Msg("Couldn't load settings")
	}
}

// LoadFrom overlays the settings read from reader onto the current values
func (s *Settings) LoadFrom(reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if s.isTOML() {
		// Route TOML through the JSON decoder so both formats share the same keys and list handling
		generic := map[string]interface{}{}
		if err := toml.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("invalid toml - %w", err)
		}
		if data, err = json.Marshal(generic); err != nil {
			return err
		}
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("invalid settings - %w", err)
	}
	return nil
}

func (s *Settings) Save() {
	s.lock.Lock()
	defer s.lock.Unlock()
	var data []byte
	var err error
	if s.isTOML() {
		data, err = toml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		log.Warn().Err(err).Msg("Couldn't save settings")
		return
	}
	if err := utilities.WriteFileAtomic(s.filePath, data); err != nil {
		log.Warn().Err(err).Msg("Couldn't save settings")
	}
}

// ScanFolders is a copy of the configured folders
func (s *Settings) ScanFolders() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string{}, s.FoldersToScan...)
}

// AddScanFolder remembers a new folder to scan, saving the settings.
// Returns false if the folder was already configured
func (s *Settings) AddScanFolder(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = filepath.Clean(path)
	}
	s.lock.Lock()
	for _, existing := range s.FoldersToScan {
		if existingAbs, err := filepath.Abs(existing); err == nil && existingAbs == absPath {
			s.lock.Unlock()
			return false
		}
	}
	s.FoldersToScan = append(s.FoldersToScan, absPath)
	s.lock.Unlock()
	s.Save()
	return true
}

func (s *Settings) ManifestMaxAge() time.Duration {
	return time.Duration(s.ManifestMaxAgeSeconds) * time.Second
}

func (s *Settings) ManifestTimeout() time.Duration {
	return time.Duration(s.ManifestTimeoutSeconds) * time.Second
}

// SetupLogging points the global logger at writer, at the configured level
func (s *Settings) SetupLogging(writer io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

// StringList accepts either a single string or a list of them
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*l = StringList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}
