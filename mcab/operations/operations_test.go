package operations

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/mca-batch/mcab/changer"
	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/fileops"
	"github.com/ZanzyTHEbar/mca-batch/mcab/filter"
	"github.com/ZanzyTHEbar/mca-batch/mcab/nbtree"
	"github.com/ZanzyTHEbar/mca-batch/mcab/pipeline"
	"github.com/ZanzyTHEbar/mca-batch/mcab/progress"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region/regiontest"
	"github.com/ZanzyTHEbar/mca-batch/mcab/selection"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// sparse returns chunks at local positions 0,0 5,5 and 31,31 of coord.
func sparse(coord region.Coordinate, status string) map[int]nbtree.Compound {
	trees := map[int]nbtree.Compound{}
	for _, p := range [][2]int{{0, 0}, {5, 5}, {31, 31}} {
		idx := region.Index(p[0], p[1])
		x, z := coord.ChunkPos(idx)
		trees[idx] = regiontest.ChunkTree(x, z, status)
	}
	return trees
}

type OperationsTestSuite struct {
	suite.Suite
	src    string
	dst    string
	sched  *pipeline.Scheduler
	runner *Runner
}

func (s *OperationsTestSuite) SetupTest() {
	s.src = s.T().TempDir()
	s.dst = s.T().TempDir()
	sched, err := pipeline.New(pipeline.Config{
		LoadWorkers: 1, ProcessWorkers: 2, SaveWorkers: 2, QueueSize: 2, MaxLoadedFiles: 3,
	}, zerolog.Nop(), nil)
	s.Require().NoError(err)
	s.sched = sched
	s.runner = NewRunner(sched, fileops.New(zerolog.Nop()), zerolog.Nop(), ".mcabignore")

	for _, c := range []region.Coordinate{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 0, Z: 1}, {X: 1, Z: 1}} {
		regiontest.WriteFile(s.T(), s.src, c, sparse(c, "full"))
	}
}

func (s *OperationsTestSuite) TearDownTest() {
	s.sched.Close()
}

func (s *OperationsTestSuite) wait(b *pipeline.Batch) pipeline.Result {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	r, err := b.Wait(ctx)
	s.Require().NoError(err)
	return r
}

func (s *OperationsTestSuite) parse(q string) *filter.Group {
	g, err := filter.Parse(q)
	s.Require().NoError(err)
	return g
}

func (s *OperationsTestSuite) files(dir string) []string {
	entries, err := os.ReadDir(dir)
	s.Require().NoError(err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (s *OperationsTestSuite) positions(path string) [][2]int {
	r := regiontest.ReadFile(s.T(), path)
	var out [][2]int
	for _, c := range r.Chunks() {
		x, z := r.Coordinate().ChunkPos(c.Index())
		out = append(out, [2]int{x, z})
	}
	return out
}

func (s *OperationsTestSuite) TestExportCoordinateRange() {
	rec := &progress.Recorder{}
	b, err := s.runner.ExportFilter(context.Background(), s.parse("xPos <= 31 AND zPos <= 40"), nil, s.src, s.dst, rec)
	s.Require().NoError(err)
	r := s.wait(b)

	s.Equal(4, rec.Increments)
	s.Equal([]string{"completed 4 files"}, rec.Finished)
	s.Equal(2, r.Succeeded)
	s.Equal(2, r.Skipped)
	s.Equal([]string{"r.0.0.mca", "r.0.1.mca"}, s.files(s.dst))

	s.Equal([][2]int{{0, 0}, {5, 5}, {31, 31}}, s.positions(filepath.Join(s.dst, "r.0.0.mca")))
	s.Equal([][2]int{{0, 32}, {5, 37}}, s.positions(filepath.Join(s.dst, "r.0.1.mca")))

	// The source is untouched.
	s.Len(s.positions(filepath.Join(s.src, "r.0.1.mca")), 3)
}

func (s *OperationsTestSuite) TestExportWithSelection() {
	sel := selection.New()
	sel.Add(5, 5)
	sel.AddRegion(region.Coordinate{X: 0, Z: 1})

	b, err := s.runner.ExportFilter(context.Background(), s.parse("xPos <= 31 AND zPos <= 40"), sel, s.src, s.dst, nil)
	s.Require().NoError(err)
	s.Equal(2, s.wait(b).Succeeded)

	s.Equal([][2]int{{5, 5}}, s.positions(filepath.Join(s.dst, "r.0.0.mca")))
	s.Equal([][2]int{{0, 32}, {5, 37}}, s.positions(filepath.Join(s.dst, "r.0.1.mca")))
}

func (s *OperationsTestSuite) TestExportNeverOverwrites() {
	existing := filepath.Join(s.dst, "r.0.0.mca")
	s.Require().NoError(os.WriteFile(existing, []byte("keep"), 0o644))

	rec := &progress.Recorder{}
	b, err := s.runner.ExportFilter(context.Background(), nil, nil, s.src, s.dst, rec)
	s.Require().NoError(err)
	r := s.wait(b)

	s.Equal(3, r.Succeeded)
	s.Equal(1, r.Skipped)
	s.Equal(4, rec.Increments)
	data, err := os.ReadFile(existing)
	s.Require().NoError(err)
	s.Equal("keep", string(data))
}

func (s *OperationsTestSuite) TestChangeStatusLeavesMissingFieldAlone() {
	dir := s.T().TempDir()
	coord := region.Coordinate{X: 0, Z: 0}
	trees := sparse(coord, "full")
	missing := region.Index(5, 5)
	delete(trees[missing]["Level"].(nbtree.Compound), "Status")
	path := regiontest.WriteFile(s.T(), dir, coord, trees)

	fields, err := changer.ParseFields("Status = finalized")
	s.Require().NoError(err)
	b, err := s.runner.ChangeFields(context.Background(), fields, false, nil, nil, dir, nil)
	s.Require().NoError(err)
	s.Equal(1, s.wait(b).Succeeded)

	r := regiontest.ReadFile(s.T(), path)
	s.Equal(3, r.Count())
	for _, c := range r.Chunks() {
		tree, err := c.Tree()
		s.Require().NoError(err)
		status, ok := nbtree.GetString(tree["Level"].(nbtree.Compound), "Status")
		if c.Index() == missing {
			s.False(ok, "chunk without status must stay without status")
			continue
		}
		s.True(ok)
		s.Equal("finalized", status)
	}
}

func (s *OperationsTestSuite) TestChangeForceCreatesField() {
	dir := s.T().TempDir()
	coord := region.Coordinate{X: 0, Z: 0}
	path := regiontest.WriteFile(s.T(), dir, coord, sparse(coord, ""))

	fields, err := changer.ParseFields("Status = finalized")
	s.Require().NoError(err)
	b, err := s.runner.ChangeFields(context.Background(), fields, true, s.parse("xPos = 5"), nil, dir, nil)
	s.Require().NoError(err)
	s.Equal(1, s.wait(b).Succeeded)

	r := regiontest.ReadFile(s.T(), path)
	for _, c := range r.Chunks() {
		tree, err := c.Tree()
		s.Require().NoError(err)
		_, ok := nbtree.GetString(tree["Level"].(nbtree.Compound), "Status")
		s.Equal(c.Index() == region.Index(5, 5), ok)
	}
}

func (s *OperationsTestSuite) TestChangeWithoutEffectSkipsSave() {
	dir := s.T().TempDir()
	coord := region.Coordinate{X: 0, Z: 0}
	path := regiontest.WriteFile(s.T(), dir, coord, sparse(coord, ""))
	before, err := os.ReadFile(path)
	s.Require().NoError(err)

	fields, err := changer.ParseFields("Status = finalized")
	s.Require().NoError(err)
	b, err := s.runner.ChangeFields(context.Background(), fields, false, nil, nil, dir, nil)
	s.Require().NoError(err)
	s.Equal(1, s.wait(b).Skipped)

	after, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *OperationsTestSuite) TestDeleteFilter() {
	rec := &progress.Recorder{}
	b, err := s.runner.DeleteFilter(context.Background(), s.parse("xPos = 0 OR zPos >= 32"), nil, s.src, rec)
	s.Require().NoError(err)
	r := s.wait(b)
	s.Equal(4, rec.Increments)
	s.Equal(3, r.Succeeded)
	s.Equal(1, r.Skipped, "r.1.0 has no chunk at x=0 or z>=32")

	s.Equal([][2]int{{5, 5}, {31, 31}}, s.positions(filepath.Join(s.src, "r.0.0.mca")))
	s.Equal([][2]int{{32, 0}, {37, 5}, {63, 31}}, s.positions(filepath.Join(s.src, "r.1.0.mca")))
	s.Equal([]string{"r.0.0.mca", "r.1.0.mca"}, s.files(s.src), "emptied regions are removed")
}

func (s *OperationsTestSuite) TestNoFilesFound() {
	rec := &progress.Recorder{}
	b, err := s.runner.DeleteFilter(context.Background(), nil, nil, s.T().TempDir(), rec)
	s.Require().NoError(err)
	s.wait(b)
	s.Equal([]string{pipeline.NoFilesLabel}, rec.Finished)
	s.Zero(rec.Increments)
}

func (s *OperationsTestSuite) TestBrokenFilesAreCountedNotFatal() {
	s.Require().NoError(os.WriteFile(filepath.Join(s.src, "r.7.7.mca"), make([]byte, 100), 0o644))
	s.Require().NoError(os.WriteFile(filepath.Join(s.src, "r.x.y.mca"), nil, 0o644))

	rec := &progress.Recorder{}
	b, err := s.runner.ExportFilter(context.Background(), nil, nil, s.src, s.dst, rec)
	s.Require().NoError(err)
	r := s.wait(b)

	s.Equal(6, rec.Increments)
	s.Equal(4, r.Succeeded)
	s.Equal(1, r.Failed)
	s.Equal(1, r.Skipped)
	s.ErrorIs(r.Err, common.ErrDecode)
}

func (s *OperationsTestSuite) TestInvalidInputRejectedBeforeIO() {
	bad := filter.NewGroup(filter.And)
	l, _ := filter.NewLeaf(filter.And, filter.XPos, filter.Equal, "nope")
	bad.Add(l)

	missing := filepath.Join(s.T().TempDir(), "missing")
	_, err := s.runner.ExportFilter(context.Background(), bad, nil, missing, missing, nil)
	s.ErrorIs(err, common.ErrParse)
	_, err = s.runner.DeleteFilter(context.Background(), bad, nil, missing, nil)
	s.ErrorIs(err, common.ErrParse)
	_, err = s.runner.ChangeFields(context.Background(), nil, false, nil, nil, missing, nil)
	s.ErrorIs(err, common.ErrParse)
	_, err = s.runner.ChangeFields(context.Background(), []*changer.Field{changer.New(changer.Status)}, false, nil, nil, missing, nil)
	s.ErrorIs(err, common.ErrParse)
}

func (s *OperationsTestSuite) TestExportDestinationChecks() {
	_, err := s.runner.ExportFilter(context.Background(), nil, nil, s.src, s.src, nil)
	s.ErrorIs(err, common.ErrIO)
	_, err = s.runner.ExportFilter(context.Background(), nil, nil, s.src, filepath.Join(s.dst, "nope"), nil)
	s.ErrorIs(err, common.ErrIO)
}

// gatedOp holds every load until gate is closed.
type gatedOp struct{ gate chan struct{} }

func (g gatedOp) Load(context.Context, *pipeline.LoadJob) ([]byte, error) {
	<-g.gate
	return nil, nil
}

func (g gatedOp) Process(_ context.Context, j *pipeline.ProcessJob) (*region.Region, error) {
	return region.New(j.Coord), nil
}

func (g gatedOp) Save(context.Context, *pipeline.SaveJob) error { return nil }

func (s *OperationsTestSuite) TestNewBatchCancelsQueuedWork() {
	gate := make(chan struct{})
	var stale []fileops.Entry
	for x := 10; x < 16; x++ {
		c := region.Coordinate{X: x}
		stale = append(stale, fileops.Entry{Path: filepath.Join(s.src, "old", c.Filename()), Coord: c})
	}
	first, err := s.sched.Submit(context.Background(), "stale", gatedOp{gate: gate}, stale, nil)
	s.Require().NoError(err)
	// one loading, two queued, the rest waiting for a slot
	s.Require().Eventually(func() bool { return len(s.sched.InFlight()) == 3 }, 5*time.Second, 5*time.Millisecond)

	rec := &progress.Recorder{}
	b, err := s.runner.ExportFilter(context.Background(), nil, nil, s.src, s.dst, rec)
	s.Require().NoError(err)
	close(gate)

	old := s.wait(first)
	s.Equal(6, old.Cancelled)
	s.Zero(old.Succeeded)

	r := s.wait(b)
	s.Equal(4, r.Succeeded)
	s.Len(s.files(s.dst), 4)
}

func TestOperationsTestSuite(t *testing.T) {
	suite.Run(t, new(OperationsTestSuite))
}

func TestIgnoreFileExcludesRegions(t *testing.T) {
	src := t.TempDir()
	for _, c := range []region.Coordinate{{X: 0, Z: 0}, {X: 3, Z: 3}} {
		regiontest.WriteFile(t, src, c, sparse(c, "full"))
	}
	require.NoError(t, os.WriteFile(filepath.Join(src, ".mcabignore"), []byte("r.3.3.mca\n"), 0o644))

	sched, err := pipeline.New(pipeline.DefaultConfig(), zerolog.Nop(), nil)
	require.NoError(t, err)
	defer sched.Close()
	runner := NewRunner(sched, fileops.New(zerolog.Nop()), zerolog.Nop(), ".mcabignore")

	rec := &progress.Recorder{}
	b, err := runner.DeleteFilter(context.Background(), nil, nil, src, rec)
	require.NoError(t, err)
	_, err = b.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rec.Increments)
	_, err = os.Stat(filepath.Join(src, "r.3.3.mca"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(src, "r.0.0.mca"))
	assert.True(t, os.IsNotExist(err))
}
