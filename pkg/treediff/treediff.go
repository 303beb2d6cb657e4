// Package treediff makes a target file or directory tree match a source one.
//
// Paths inside a tree are mapped onto the other tree by their path relative
// to the tree's root, so `source` may be any file or directory below
// `sourceRoot`. Whether two files differ is decided by a ChangeFunc, which
// compares modification times by default.
//
// The engine never decides directionality. Callers pick which side is the
// source, usually the one with the most recent modification time.
package treediff

import (
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/config"
	"github.com/sidkik/savesync/pkg/errors"
)

// Engine computes and applies the changes between two trees.
type Engine struct {
	fs      afero.Fs
	changed ChangeFunc
}

// New creates an Engine operating on `fs`. If `compareContents` is set,
// files are compared by content hash rather than modification time.
func New(fs afero.Fs, compareContents bool) *Engine {
	changed := ModTimeChanged
	if compareContents {
		changed = ContentChanged
	}
	return &Engine{fs: fs, changed: changed}
}

// HasChanged reports whether the files at `f1` and `f2` differ.
func (e *Engine) HasChanged(f1, f2 string) (bool, error) {
	return e.changed(e.fs, f1, f2)
}

// IsPendingSync reports whether SyncFolder(source, target, ...) would change
// anything. It stops at the first difference it finds.
func (e *Engine) IsPendingSync(source, target, sourceRoot, targetRoot string,
	exclusions []string) (bool, error) {
	pending := false
	markPending := func() error {
		pending = true
		return errStop
	}

	err := walkTree(e.fs, source, visitor{
		preDir: func(dir string, _ os.FileInfo) error {
			_, isDir, err := e.stat(mapPath(dir, sourceRoot, targetRoot))
			if err != nil {
				return err
			}
			if !isDir {
				return markPending()
			}
			return nil
		},
		file: func(file string, _ os.FileInfo) error {
			if skipped(file, exclusions) {
				return nil
			}

			dst := mapPath(file, sourceRoot, targetRoot)
			exists, isDir, err := e.stat(dst)
			if err != nil {
				return err
			}
			if !exists || isDir {
				return markPending()
			}

			changed, err := e.HasChanged(file, dst)
			if err != nil {
				return errors.WithContext(err, "compare")
			}
			if changed {
				return markPending()
			}
			return nil
		},
	})
	if err != nil || pending {
		return pending, err
	}

	err = walkTree(e.fs, target, visitor{
		preDir: func(dir string, _ os.FileInfo) error {
			_, isDir, err := e.stat(mapPath(dir, targetRoot, sourceRoot))
			if err != nil {
				return err
			}
			if !isDir {
				return markPending()
			}
			return nil
		},
		file: func(file string, _ os.FileInfo) error {
			if skipped(file, exclusions) {
				return nil
			}

			exists, isDir, err := e.stat(mapPath(file, targetRoot, sourceRoot))
			if err != nil {
				return err
			}
			if !exists || isDir {
				return markPending()
			}
			return nil
		},
	})
	return pending, err
}

// LastModifiedTime returns the most recent modification time in the tree at
// `path`, with millisecond precision. If `inclusions` is non-empty, only the
// named files directly inside `path` are considered. Otherwise every file
// whose name isn't excluded counts. For a plain file, its own modification
// time is returned, and for a missing path the zero time.
func (e *Engine) LastModifiedTime(path string, inclusions, exclusions []string) (time.Time, error) {
	info, err := e.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, errors.WithContext(err, "stat")
	}

	if !info.IsDir() {
		return truncate(info.ModTime()), nil
	}

	var latest time.Time
	if len(inclusions) > 0 {
		for _, name := range inclusions {
			info, err := e.fs.Stat(filepath.Join(path, name))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return time.Time{}, errors.WithContext(err, "stat")
			}
			if info.ModTime().After(latest) {
				latest = info.ModTime()
			}
		}
		return truncate(latest), nil
	}

	err = walkTree(e.fs, path, visitor{
		file: func(file string, info os.FileInfo) error {
			if !skipped(file, exclusions) && info.ModTime().After(latest) {
				latest = info.ModTime()
			}
			return nil
		},
	})
	if err != nil {
		return time.Time{}, errors.WithContext(err, "walk")
	}
	return truncate(latest), nil
}

// SyncFile makes the file mapped from `source` under `targetRoot` match
// `source`. A missing source deletes the target, and a directory in the way
// of the file is replaced. It returns the number of changes, which is at
// most one. When `dryRun` is set, the changes are only counted.
func (e *Engine) SyncFile(source, sourceRoot, targetRoot string, dryRun bool) (int, error) {
	rel := relPath(source, sourceRoot)
	dst := filepath.Join(targetRoot, rel)

	srcExists, err := e.exists(source)
	if err != nil {
		return 0, err
	}

	dstExists, dstIsDir, err := e.stat(dst)
	if err != nil {
		return 0, err
	}

	switch {
	case !srcExists && dstExists:
		if !dryRun {
			if err := e.fs.RemoveAll(dst); err != nil {
				return 0, errors.WithContext(err, "remove")
			}
			log.Infof("(-) %s", rel)
		}
		return 1, nil
	case !srcExists:
		return 0, nil
	case dstIsDir:
		if !dryRun {
			if err := e.replaceDir(source, dst); err != nil {
				return 0, err
			}
			log.Infof("(m) %s", rel)
		}
		return 1, nil
	case !dstExists:
		if !dryRun {
			if err := e.copyFile(source, dst); err != nil {
				return 0, errors.WithContext(err, "copy")
			}
			log.Infof("(+) %s", rel)
		}
		return 1, nil
	}

	changed, err := e.HasChanged(source, dst)
	if err != nil {
		return 0, errors.WithContext(err, "compare")
	}
	if !changed {
		return 0, nil
	}

	if !dryRun {
		if err := e.copyFile(source, dst); err != nil {
			return 0, errors.WithContext(err, "copy")
		}
		log.Infof("(m) %s", rel)
	}
	return 1, nil
}

// SyncFolder mirrors the tree at `source` onto `target`. Missing directories
// and missing or changed files are copied over, with modification times
// preserved. Directories and files that only exist in the target are
// deleted. A target path whose type doesn't match the source, such as a file
// where the source has a directory, is replaced. Excluded names and the
// marker file are neither copied nor deleted. It returns the number of
// changes. When `dryRun` is set, the
// changes are only counted.
func (e *Engine) SyncFolder(source, target, sourceRoot, targetRoot string,
	exclusions []string, dryRun bool) (int, error) {
	if exists, err := e.exists(source); err != nil {
		return 0, err
	} else if !exists {
		return 0, errors.FileNotFound{Path: source}
	}

	count, err := e.copyMissing(source, sourceRoot, targetRoot, exclusions, dryRun)
	if err != nil {
		return count, errors.WithContext(err, "copy")
	}

	removedDirs, err := e.removeExtraDirs(target, sourceRoot, targetRoot, dryRun)
	count += removedDirs
	if err != nil {
		return count, errors.WithContext(err, "remove dirs")
	}

	removedFiles, err := e.removeExtraFiles(target, sourceRoot, targetRoot, exclusions, dryRun)
	count += removedFiles
	if err != nil {
		return count, errors.WithContext(err, "remove files")
	}
	return count, nil
}

func (e *Engine) copyMissing(source, sourceRoot, targetRoot string,
	exclusions []string, dryRun bool) (count int, err error) {
	err = walkTree(e.fs, source, visitor{
		preDir: func(dir string, info os.FileInfo) error {
			dst := mapPath(dir, sourceRoot, targetRoot)
			exists, isDir, err := e.stat(dst)
			if err != nil || isDir {
				return err
			}

			count++
			if dryRun {
				if exists {
					// The file in the way has no children to compare.
					return filepath.SkipDir
				}
				return nil
			}

			if exists {
				if err := e.fs.Remove(dst); err != nil {
					return errors.WithContext(err, "remove file in the way")
				}
			}
			if err := e.fs.MkdirAll(dst, info.Mode().Perm()|0700); err != nil {
				return errors.WithContext(err, "make dir")
			}
			log.Infof("(+) %s", relPath(dir, sourceRoot))
			return nil
		},
		// Directory modification times are set once all children are
		// written, since writing a child bumps its parent.
		postDir: func(dir string, info os.FileInfo) error {
			if dryRun {
				return nil
			}
			dst := mapPath(dir, sourceRoot, targetRoot)
			if err := e.fs.Chtimes(dst, time.Now(), info.ModTime()); err != nil {
				return errors.WithContext(err, "set dir modtime")
			}
			return nil
		},
		file: func(file string, _ os.FileInfo) error {
			if skipped(file, exclusions) {
				return nil
			}

			dst := mapPath(file, sourceRoot, targetRoot)
			exists, isDir, err := e.stat(dst)
			if err != nil {
				return err
			}

			op := "(+)"
			switch {
			case isDir:
				op = "(m)"
			case exists:
				changed, err := e.HasChanged(file, dst)
				if err != nil {
					return errors.WithContext(err, "compare")
				}
				if !changed {
					return nil
				}
				op = "(m)"
			}

			if !dryRun {
				copyFn := e.copyFile
				if isDir {
					copyFn = e.replaceDir
				}
				if err := copyFn(file, dst); err != nil {
					return err
				}
				log.Infof("%s %s", op, relPath(file, sourceRoot))
			}
			count++
			return nil
		},
	})
	return count, err
}

// removeExtraDirs deletes the directories under `target` that aren't
// directories in the source tree. Each deleted directory counts once,
// regardless of its contents, and isn't descended into.
func (e *Engine) removeExtraDirs(target, sourceRoot, targetRoot string,
	dryRun bool) (count int, err error) {
	err = walkTree(e.fs, target, visitor{
		preDir: func(dir string, _ os.FileInfo) error {
			_, isDir, err := e.stat(mapPath(dir, targetRoot, sourceRoot))
			if err != nil || isDir {
				return err
			}

			if !dryRun {
				if err := e.fs.RemoveAll(dir); err != nil {
					return errors.WithContext(err, "remove")
				}
				log.Infof("(-) %s", relPath(dir, targetRoot))
			}
			count++
			return filepath.SkipDir
		},
	})
	return count, err
}

// removeExtraFiles deletes the files under `target` that don't exist in the
// source tree. Directories missing from the source are left to
// removeExtraDirs.
func (e *Engine) removeExtraFiles(target, sourceRoot, targetRoot string,
	exclusions []string, dryRun bool) (count int, err error) {
	err = walkTree(e.fs, target, visitor{
		preDir: func(dir string, _ os.FileInfo) error {
			_, isDir, err := e.stat(mapPath(dir, targetRoot, sourceRoot))
			if err != nil {
				return err
			}
			if !isDir {
				return filepath.SkipDir
			}
			return nil
		},
		file: func(file string, _ os.FileInfo) error {
			if skipped(file, exclusions) {
				return nil
			}

			exists, err := e.exists(mapPath(file, targetRoot, sourceRoot))
			if err != nil || exists {
				return err
			}

			if !dryRun {
				if err := e.fs.Remove(file); err != nil {
					return errors.WithContext(err, "remove")
				}
				log.Infof("(-) %s", relPath(file, targetRoot))
			}
			count++
			return nil
		},
	})
	return count, err
}

// copyFile copies `src` to `dst`, creating the parent directory if needed,
// and gives `dst` the modification time of `src`.
func (e *Engine) copyFile(src, dst string) error {
	dstParent := filepath.Dir(dst)
	dstParentExists, err := afero.DirExists(e.fs, dstParent)
	if err != nil {
		return errors.WithContext(err, "check if parent exists")
	}

	if !dstParentExists {
		if err := e.fs.MkdirAll(dstParent, 0755); err != nil {
			return errors.WithContext(err, "make parent")
		}
	}

	srcFile, err := e.fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	dstFile, err := e.fs.Create(dst)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}

	// The destination is closed explicitly rather than deferred since
	// closing a written file can bump its modification time.
	if err := e.fs.Chmod(dst, fileInfo.Mode()); err != nil {
		dstFile.Close()
		return errors.WithContext(err, "set file mode")
	}

	_, copyErr := io.Copy(dstFile, srcFile)
	closeErr := dstFile.Close()
	if copyErr != nil {
		return errors.WithContext(copyErr, "copy")
	}
	if closeErr != nil {
		return errors.WithContext(closeErr, "close destination")
	}

	// Change the modification time as the last step so that it doesn't get
	// reset by other file operations.
	if err := e.fs.Chtimes(dst, time.Now(), fileInfo.ModTime()); err != nil {
		return errors.WithContext(err, "set file modtime")
	}
	return nil
}

// replaceDir replaces the directory at `dst` with a copy of the file `src`.
func (e *Engine) replaceDir(src, dst string) error {
	if err := e.fs.RemoveAll(dst); err != nil {
		return errors.WithContext(err, "remove dir in the way")
	}
	return e.copyFile(src, dst)
}

// stat returns whether `path` exists, and whether it's a directory.
func (e *Engine) stat(path string) (exists, isDir bool, err error) {
	info, err := e.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		return false, false, errors.WithContext(err, "stat")
	}
	return true, info.IsDir(), nil
}

func (e *Engine) exists(path string) (bool, error) {
	exists, err := afero.Exists(e.fs, path)
	if err != nil {
		return false, errors.WithContext(err, "stat")
	}
	return exists, nil
}

// skipped returns whether the file at `path` is never synced.
func skipped(path string, exclusions []string) bool {
	name := filepath.Base(path)
	if name == config.MarkerFileName {
		return true
	}
	for _, excluded := range exclusions {
		if name == excluded {
			return true
		}
	}
	return false
}

// mapPath maps `path` from the tree rooted at `fromRoot` onto the tree rooted
// at `toRoot`.
func mapPath(path, fromRoot, toRoot string) string {
	return filepath.Join(toRoot, relPath(path, fromRoot))
}

func relPath(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		// Only happens if one path is absolute and the other isn't.
		log.WithError(err).WithField("path", path).Debug("Failed to get relative path")
		return filepath.Base(path)
	}
	return rel
}

func truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.UnixMilli(t.UnixMilli())
}
