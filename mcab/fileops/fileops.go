// Package fileops performs the file system side of a batch: reading region
// files, replacing them atomically, writing export targets without
// overwriting, and enumerating a world directory.
package fileops

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrExists is returned by WriteNew when the destination is already there.
var ErrExists = errors.New("destination exists")

const tempPattern = ".mcab-*.tmp"

// FileOps provides the low-level file operations of the pipeline stages.
type FileOps struct {
	log        zerolog.Logger
	validation *common.ValidationUtils
}

// New creates a FileOps logging through log.
func New(log zerolog.Logger) *FileOps {
	return &FileOps{
		log:        log.With().Str("component", "fileops").Logger(),
		validation: common.NewValidationUtils(),
	}
}

// ReadFile returns the contents of path. Failures wrap common.ErrIO.
func (fo *FileOps) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := fo.validation.ValidateContextCancellation(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(common.ErrIO, "read %s: %v", path, err)
	}
	return data, nil
}

// ReplaceAtomic writes data to a temporary file next to path and renames it
// over path. Readers observe either the old or the new contents. The mode
// of an existing file is kept.
func (fo *FileOps) ReplaceAtomic(ctx context.Context, path string, data []byte) error {
	if err := fo.validation.ValidateContextCancellation(ctx); err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := fo.writeTemp(filepath.Dir(path), data, mode)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(common.ErrIO, "replace %s: %v", path, err)
	}
	fo.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("replaced file")
	return nil
}

// WriteNew writes data to path unless something already exists there, in
// which case it returns ErrExists and leaves the existing file untouched.
func (fo *FileOps) WriteNew(ctx context.Context, path string, data []byte) error {
	if err := fo.validation.ValidateContextCancellation(ctx); err != nil {
		return err
	}
	if fo.Exists(path) {
		return errors.Wrap(ErrExists, path)
	}
	tmp, err := fo.writeTemp(filepath.Dir(path), data, 0o644)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	// A hard link fails when the target exists, which closes the window
	// between the check above and the rename.
	if err := os.Link(tmp, path); err == nil {
		return nil
	} else if os.IsExist(err) {
		return errors.Wrap(ErrExists, path)
	}
	if fo.Exists(path) {
		return errors.Wrap(ErrExists, path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(common.ErrIO, "write %s: %v", path, err)
	}
	return nil
}

// Remove deletes path. A missing file is not an error.
func (fo *FileOps) Remove(ctx context.Context, path string) error {
	if err := fo.validation.ValidateContextCancellation(ctx); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(common.ErrIO, "remove %s: %v", path, err)
	}
	fo.log.Debug().Str("path", path).Msg("removed file")
	return nil
}

// Exists reports whether anything is present at path.
func (fo *FileOps) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (fo *FileOps) writeTemp(dir string, data []byte, mode os.FileMode) (string, error) {
	f, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return "", errors.Wrapf(common.ErrIO, "create temp file in %s: %v", dir, err)
	}
	name := f.Name()
	fail := func(op string, err error) (string, error) {
		f.Close()
		os.Remove(name)
		return "", errors.Wrapf(common.ErrIO, "%s %s: %v", op, name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fail("write", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := f.Chmod(mode); err != nil {
		return fail("chmod", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", errors.Wrapf(common.ErrIO, "close %s: %v", name, err)
	}
	return name, nil
}
