package treediff

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/errors"
)

// errStop aborts a walk early without signalling a failure.
var errStop = errors.New("stop walk")

// visitor receives the callbacks of walkTree. Any callback may be nil.
type visitor struct {
	// preDir is called before a directory's children are visited. Returning
	// filepath.SkipDir skips the children, and postDir isn't called.
	preDir func(path string, info os.FileInfo) error

	// postDir is called after all of a directory's children were visited.
	postDir func(path string, info os.FileInfo) error

	file func(path string, info os.FileInfo) error
}

// walkTree walks the tree rooted at `root` in lexical order. Unlike
// afero.Walk, it exposes a post-order callback for directories. A missing
// root is treated as an empty tree.
func walkTree(fs afero.Fs, root string, v visitor) error {
	info, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithContext(err, "stat")
	}

	err = walk(fs, root, info, v)
	if err == errStop || err == filepath.SkipDir {
		return nil
	}
	return err
}

func walk(fs afero.Fs, path string, info os.FileInfo, v visitor) error {
	if !info.IsDir() {
		if v.file == nil {
			return nil
		}
		return v.file(path, info)
	}

	if v.preDir != nil {
		if err := v.preDir(path, info); err != nil {
			if err == filepath.SkipDir {
				return nil
			}
			return err
		}
	}

	children, err := afero.ReadDir(fs, path)
	if err != nil {
		return errors.WithContext(err, "read dir")
	}

	for _, child := range children {
		if err := walk(fs, filepath.Join(path, child.Name()), child, v); err != nil {
			return err
		}
	}

	if v.postDir != nil {
		return v.postDir(path, info)
	}
	return nil
}
