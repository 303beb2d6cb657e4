package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/errors"
)

// Category groups entries for listing.
type Category string

const (
	// Game is a standalone game.
	Game Category = "game"

	// Emulator runs other games, and usually keeps all their saves in one
	// directory.
	Emulator Category = "emulator"

	// Tools are anything else whose data should follow the user.
	Tools Category = "tools"
)

// Categories lists every valid category.
var Categories = []Category{Game, Emulator, Tools}

// ParseCategory converts `s` into a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", errors.NewFriendlyError("Unknown category %q. "+
		"Valid categories are %q, %q and %q.", s, Game, Emulator, Tools)
}

// Entry is one monitored application.
type Entry struct {
	Name       string   `json:"name"` // Required.
	Category   Category `json:"category,omitempty"`
	Executable string   `json:"executable"` // Required.
	LocalDir   string   `json:"localDir"`   // Required.

	// RemoteDir is relative to the staging root. Defaults to the entry's
	// name. After validation, it's an absolute path.
	RemoteDir string `json:"remoteDir,omitempty"`

	// Inclusions lists the only file names that are synced. Mutually
	// exclusive with Exclusions.
	Inclusions []string `json:"inclusions,omitempty"`

	// Exclusions lists file names that are never synced.
	Exclusions []string `json:"exclusions,omitempty"`
}

// ProcessName is the name the entry's process shows up as in the process
// table: the executable's base name without its extension. Both slash
// styles are treated as separators so that Windows paths parse the same on
// every OS.
func (e Entry) ProcessName() string {
	base := e.Executable
	if idx := strings.LastIndexAny(base, `/\`); idx != -1 {
		base = base[idx+1:]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// MarkerPath returns the path of the entry's marker file.
func (e Entry) MarkerPath() string {
	return filepath.Join(e.LocalDir, MarkerFileName)
}

func (e Entry) normalize(paths Paths) Entry {
	if len(e.Inclusions) == 0 {
		e.Inclusions = nil
	}
	if len(e.Exclusions) == 0 {
		e.Exclusions = nil
	}
	if e.Category == "" {
		e.Category = Game
	}
	if rel, err := filepath.Rel(paths.StagingRoot, e.RemoteDir); err == nil &&
		filepath.IsAbs(e.RemoteDir) && !strings.HasPrefix(rel, "..") {
		e.RemoteDir = rel
	}
	return e
}

// Validate checks every configured entry and resolves its directories. If
// any entry is invalid, none are returned: a partially activated entry list
// would sync some saves but silently not others.
//
// For valid configs, missing local and remote directories are created. A
// newly created remote directory gets the modification time of the local
// one, so that the first comparison doesn't pull an empty tree over the
// local saves.
func Validate(cfg Config, paths Paths) ([]Entry, error) {
	var entries []Entry
	names := map[string]struct{}{}
	for _, raw := range cfg.Entries {
		entry, err := resolve(raw.normalize(paths), paths)
		if err != nil {
			return nil, err
		}

		if _, ok := names[entry.Name]; ok {
			return nil, errors.InvalidConfig{Entry: entry.Name, Reason: "the name is used more than once"}
		}
		names[entry.Name] = struct{}{}
		entries = append(entries, entry)
	}

	for _, entry := range entries {
		if err := prepareDirs(entry); err != nil {
			return nil, errors.WithContext(err, fmt.Sprintf("prepare %q", entry.Name))
		}
	}
	return entries, nil
}

func resolve(entry Entry, paths Paths) (Entry, error) {
	switch {
	case entry.Name == "":
		return Entry{}, errors.MissingFieldError{Field: "name"}
	case entry.Executable == "":
		return Entry{}, errors.InvalidConfig{Entry: entry.Name, Reason: "no executable is set"}
	case entry.LocalDir == "":
		return Entry{}, errors.InvalidConfig{Entry: entry.Name, Reason: "no local directory is set"}
	case entry.Inclusions != nil && entry.Exclusions != nil:
		return Entry{}, errors.InvalidConfig{Entry: entry.Name,
			Reason: "inclusions and exclusions can't both be set"}
	}

	if _, err := ParseCategory(string(entry.Category)); err != nil {
		return Entry{}, errors.InvalidConfig{Entry: entry.Name,
			Reason: fmt.Sprintf("unknown category %q", entry.Category)}
	}

	var err error
	entry.Executable, err = homedirExpand(entry.Executable)
	if err != nil {
		return Entry{}, errors.WithContext(err, "expand executable")
	}

	exists, err := afero.Exists(fs, entry.Executable)
	if err != nil {
		return Entry{}, errors.WithContext(err, "stat executable")
	}
	if !exists {
		return Entry{}, errors.InvalidConfig{Entry: entry.Name,
			Reason: fmt.Sprintf("executable %q does not exist", entry.Executable)}
	}

	entry.LocalDir, err = homedirExpand(entry.LocalDir)
	if err != nil {
		return Entry{}, errors.WithContext(err, "expand local dir")
	}

	remote := entry.RemoteDir
	if remote == "" {
		remote = entry.Name
	}
	entry.RemoteDir = filepath.Join(paths.StagingRoot, remote)
	if rel, err := filepath.Rel(paths.StagingRoot, entry.RemoteDir); err != nil ||
		rel == "." || strings.HasPrefix(rel, "..") {
		return Entry{}, errors.InvalidConfig{Entry: entry.Name,
			Reason: fmt.Sprintf("remote directory %q is outside of the staging root", remote)}
	}
	return entry, nil
}

func prepareDirs(entry Entry) error {
	if err := fs.MkdirAll(entry.LocalDir, 0755); err != nil {
		return errors.WithContext(err, "make local dir")
	}

	remoteExists, err := afero.DirExists(fs, entry.RemoteDir)
	if err != nil {
		return errors.WithContext(err, "check remote dir")
	}
	if remoteExists {
		return nil
	}

	if err := fs.MkdirAll(entry.RemoteDir, 0755); err != nil {
		return errors.WithContext(err, "make remote dir")
	}

	localInfo, err := fs.Stat(entry.LocalDir)
	if err != nil {
		return errors.WithContext(err, "stat local dir")
	}
	if err := fs.Chtimes(entry.RemoteDir, time.Now(), localInfo.ModTime()); err != nil {
		return errors.WithContext(err, "set remote dir modtime")
	}
	return nil
}
