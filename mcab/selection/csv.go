package selection

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"

	"github.com/pkg/errors"
)

// Read parses a selection in the semicolon separated form used by the map
// tool: "x;z" selects region x,z and "x;z;cx;cz" selects the chunk at
// absolute chunk position cx,cz of that region.
func Read(r io.Reader) (*Set, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	s := New()
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return nil, errors.Wrapf(common.ErrParse, "selection: %v", err)
		}
		line, _ := cr.FieldPos(0)
		nums := make([]int, len(rec))
		for i, f := range rec {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, errors.Wrapf(common.ErrParse, "selection line %d: %q is not an integer", line, f)
			}
			nums[i] = n
		}
		switch len(nums) {
		case 2:
			s.AddRegion(region.Coordinate{X: nums[0], Z: nums[1]})
		case 4:
			rc := region.Coordinate{X: nums[0], Z: nums[1]}
			if region.RegionOf(nums[2], nums[3]) != rc {
				return nil, errors.Wrapf(common.ErrParse, "selection line %d: chunk %d,%d is not in region %s", line, nums[2], nums[3], rc)
			}
			s.Add(nums[2], nums[3])
		default:
			return nil, errors.Wrapf(common.ErrParse, "selection line %d: expected 2 or 4 fields, got %d", line, len(nums))
		}
	}
}

// Write emits s in the format Read accepts, regions in ascending order.
func Write(w io.Writer, s *Set) error {
	for _, c := range s.Regions() {
		if s.WholeRegion(c) {
			if _, err := fmt.Fprintf(w, "%d;%d\n", c.X, c.Z); err != nil {
				return err
			}
			continue
		}
		for _, idx := range s.Slots(c) {
			x, z := c.ChunkPos(idx)
			if _, err := fmt.Fprintf(w, "%d;%d;%d;%d\n", c.X, c.Z, x, z); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadFile reads a selection file.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(common.ErrIO, "open selection %s: %v", path, err)
	}
	defer f.Close()
	return Read(f)
}

// SaveFile writes a selection file.
func SaveFile(path string, s *Set) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(common.ErrIO, "create selection %s: %v", path, err)
	}
	if err := Write(f, s); err != nil {
		f.Close()
		return errors.Wrapf(common.ErrIO, "write selection %s: %v", path, err)
	}
	return f.Close()
}
