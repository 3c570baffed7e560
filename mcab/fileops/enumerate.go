package fileops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"

	"github.com/pkg/errors"
	ignore "github.com/sabhiram/go-gitignore"
)

// Entry is one candidate region file. Err is set, wrapping
// common.ErrFilenamePattern, when the name carries no coordinates.
type Entry struct {
	Path  string
	Coord region.Coordinate
	Err   error
}

// Enumerate lists the regular *.mca files directly inside dir, in name
// order, minus those matched by the gitignore-style patterns in
// dir/ignoreFile. A missing ignore file means nothing is ignored.
func (fo *FileOps) Enumerate(ctx context.Context, dir, ignoreFile string) ([]Entry, error) {
	if err := fo.validation.ValidateSourceExists(dir); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrIO, err)
	}
	ignored, err := fo.loadIgnoreFile(dir, ignoreFile)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(common.ErrIO, "list %s: %v", dir, err)
	}

	var out []Entry
	for _, de := range dirEntries {
		if err := fo.validation.ValidateContextCancellation(ctx); err != nil {
			return nil, err
		}
		name := de.Name()
		if !de.Type().IsRegular() || !strings.HasSuffix(name, ".mca") {
			continue
		}
		if ignored != nil && ignored.MatchesPath(name) {
			fo.log.Debug().Str("file", name).Msg("ignored by pattern")
			continue
		}
		e := Entry{Path: filepath.Join(dir, name)}
		e.Coord, e.Err = region.ParseFilename(name)
		out = append(out, e)
	}
	return out, nil
}

func (fo *FileOps) loadIgnoreFile(dir, ignoreFile string) (*ignore.GitIgnore, error) {
	if ignoreFile == "" {
		return nil, nil
	}
	ignorePath := filepath.Join(dir, ignoreFile)
	if _, err := os.Stat(ignorePath); err == nil {
		ignored, err := ignore.CompileIgnoreFile(ignorePath)
		if err != nil {
			return nil, errors.Wrapf(common.ErrIO, "read %s: %v", ignorePath, err)
		}
		return ignored, nil
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(common.ErrIO, "stat %s: %v", ignorePath, err)
	}
	return nil, nil
}
