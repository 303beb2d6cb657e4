package treediff

import (
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/errors"
)

// ChangeFunc reports whether the file at `a` differs from the file at `b`.
type ChangeFunc func(fs afero.Fs, a, b string) (bool, error)

// ModTimeChanged is the default change oracle. Files differ iff their
// modification times aren't exactly equal, regardless of which one is newer.
func ModTimeChanged(fs afero.Fs, a, b string) (bool, error) {
	aInfo, err := fs.Stat(a)
	if err != nil {
		return false, errors.WithContext(err, "stat")
	}

	bInfo, err := fs.Stat(b)
	if err != nil {
		return false, errors.WithContext(err, "stat")
	}
	return !aInfo.ModTime().Equal(bInfo.ModTime()), nil
}

// ContentChanged compares file contents rather than modification times. It
// catches edits that preserved the timestamp, and ignores touches that didn't
// change anything.
func ContentChanged(fs afero.Fs, a, b string) (bool, error) {
	aInfo, err := fs.Stat(a)
	if err != nil {
		return false, errors.WithContext(err, "stat")
	}

	bInfo, err := fs.Stat(b)
	if err != nil {
		return false, errors.WithContext(err, "stat")
	}

	if aInfo.Size() != bInfo.Size() {
		return true, nil
	}

	aHash, err := hashFile(fs, a)
	if err != nil {
		return false, errors.WithContext(err, "hash")
	}

	bHash, err := hashFile(fs, b)
	if err != nil {
		return false, errors.WithContext(err, "hash")
	}
	return aHash != bHash, nil
}

func hashFile(fs afero.Fs, path string) (uint64, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, errors.WithContext(err, "open")
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, errors.WithContext(err, "read")
	}
	return h.Sum64(), nil
}
