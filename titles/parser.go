package titles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultExtensions are the container formats recognised when none are configured
var DefaultExtensions = []string{".nsp", ".nsz", ".xci", ".xcz"}

var (
	ErrNotATitle            = errors.New("not a title file")
	ErrUnsupportedExtension = fmt.Errorf("%w: unsupported extension", ErrNotATitle)
	ErrNoTitleID            = fmt.Errorf("%w: no [titleid] token in name", ErrNotATitle)
	ErrBadVersion           = fmt.Errorf("%w: version token out of range", ErrNotATitle)
	ErrNotAFile             = fmt.Errorf("%w: not a regular file", ErrNotATitle)
)

var (
	titleIDPattern = regexp.MustCompile(`\[([0-9A-Fa-f]{16})\]`)
	versionPattern = regexp.MustCompile(`\[[vV]([0-9]+)\]`)
)

// Title is one title file found on disk
type Title struct {
	ID      TitleID
	Version uint32
	Path    string
	ModTime time.Time
}

// Parser turns file paths into Titles, filtering anything that doesnt look like one
type Parser struct {
	extensions map[string]bool
}

func NewParser(extensions []string) *Parser {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	p := &Parser{extensions: make(map[string]bool, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		p.extensions[ext] = true
	}
	return p
}

// HasTitleExtension checks the path against the configured extensions, ignoring case
func (p *Parser) HasTitleExtension(path string) bool {
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}

// lastSubmatch is the first group of the rightmost match of pattern in s
func lastSubmatch(pattern *regexp.Regexp, s string) (string, bool) {
	matches := pattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1][1], true
}

// ParseName extracts the titleID and version tokens from a file name.
// When a token appears more than once the last one wins. A missing version token means version 0
func (p *Parser) ParseName(name string) (TitleID, uint32, error) {
	idToken, ok := lastSubmatch(titleIDPattern, name)
	if !ok {
		return 0, 0, ErrNoTitleID
	}
	id, err := ParseTitleID(idToken)
	if err != nil {
		return 0, 0, fmt.Errorf("%w - %v", ErrNoTitleID, err)
	}
	version := uint64(0)
	if vToken, ok := lastSubmatch(versionPattern, name); ok {
		version, err = strconv.ParseUint(vToken, 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("%w - %s", ErrBadVersion, vToken)
		}
	}
	return id, uint32(version), nil
}

// ParseFile validates that path is an existing title file and parses it.
// All rejections wrap ErrNotATitle
func (p *Parser) ParseFile(path string) (Title, error) {
	if !p.HasTitleExtension(path) {
		return Title{}, ErrUnsupportedExtension
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Title{}, fmt.Errorf("%w - %v", ErrNotAFile, err)
	}
	info, err := os.Stat(absPath)
	if err != nil || !info.Mode().IsRegular() {
		return Title{}, ErrNotAFile
	}
	id, version, err := p.ParseName(filepath.Base(absPath))
	if err != nil {
		return Title{}, err
	}
	return Title{
		ID:      id,
		Version: version,
		Path:    absPath,
		ModTime: info.ModTime(),
	}, nil
}
