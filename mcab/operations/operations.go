// Package operations implements the batch operations offered to users on
// top of the pipeline: exporting, deleting and editing the chunks a filter
// selects.
package operations

import (
	"context"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/fileops"
	"github.com/ZanzyTHEbar/mca-batch/mcab/filter"
	"github.com/ZanzyTHEbar/mca-batch/mcab/pipeline"
	"github.com/ZanzyTHEbar/mca-batch/mcab/progress"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"
	"github.com/ZanzyTHEbar/mca-batch/mcab/selection"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Runner starts batch operations on a shared scheduler.
type Runner struct {
	sched      *pipeline.Scheduler
	files      *fileops.FileOps
	log        zerolog.Logger
	ignoreFile string
}

// NewRunner returns a Runner. ignoreFile names the pattern file looked up
// in every source directory; empty disables it.
func NewRunner(sched *pipeline.Scheduler, files *fileops.FileOps, log zerolog.Logger, ignoreFile string) *Runner {
	return &Runner{
		sched:      sched,
		files:      files,
		log:        log.With().Str("component", "operations").Logger(),
		ignoreFile: ignoreFile,
	}
}

// target is the part every operation shares: which regions and chunks are
// affected, and how the source file is read.
type target struct {
	filter    *filter.Group
	selection *selection.Set
	files     *fileops.FileOps
	log       zerolog.Logger
}

func newTarget(f *filter.Group, sel *selection.Set, files *fileops.FileOps, log zerolog.Logger) (target, error) {
	if f == nil {
		f = filter.NewGroup(filter.And)
	}
	if !f.Valid() {
		return target{}, errors.Wrapf(common.ErrParse, "filter %q is not valid", f.String())
	}
	return target{filter: f, selection: sel, files: files, log: log}, nil
}

// regionApplies is the cheap check made before a file is read.
func (t target) regionApplies(c region.Coordinate) bool {
	return t.selection.ContainsRegion(c) && t.filter.AppliesToRegion(c)
}

func (t target) selected(c region.Coordinate, chunk *region.Chunk) bool {
	return t.selection.Contains(c, chunk.Index()) && t.filter.Matches(filter.Data{Region: c, Chunk: chunk})
}

// Load reads the source file of regions that can contain a match.
func (t target) Load(ctx context.Context, job *pipeline.LoadJob) ([]byte, error) {
	if !t.regionApplies(job.Coord) {
		return nil, errors.Wrapf(common.ErrSkipped, "region %s outside filter", job.Coord)
	}
	return t.files.ReadFile(ctx, job.Path)
}

// decode parses the raw file and logs slot errors, which never fail the file.
func (t target) decode(job *pipeline.ProcessJob) (*region.Region, error) {
	r, err := region.Decode(job.Coord, job.Raw)
	if err != nil {
		return nil, err
	}
	if derr := r.DecodeErrors(); derr != nil {
		t.log.Warn().Str("file", job.Path).Err(derr).Msg("skipping malformed chunk slots")
	}
	return r, nil
}

// submit starts a batch over dir. Work still queued for earlier batches is
// cancelled first; their running stages finish.
func (r *Runner) submit(ctx context.Context, name, dir string, op pipeline.Operation, sink progress.Sink) (*pipeline.Batch, error) {
	entries, err := r.files.Enumerate(ctx, dir, r.ignoreFile)
	if err != nil {
		return nil, err
	}
	if n := r.sched.ClearQueues(); n > 0 {
		r.log.Info().Int("jobs", n).Str("operation", name).Msg("cancelled queued work of earlier batches")
	}
	r.log.Info().Str("dir", dir).Int("files", len(entries)).Str("operation", name).Msg("starting batch")
	return r.sched.Submit(ctx, name, op, entries, sink)
}
