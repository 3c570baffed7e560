package operations

import (
	"context"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/filter"
	"github.com/ZanzyTHEbar/mca-batch/mcab/pipeline"
	"github.com/ZanzyTHEbar/mca-batch/mcab/progress"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"
	"github.com/ZanzyTHEbar/mca-batch/mcab/selection"

	"github.com/pkg/errors"
)

type deleteOp struct {
	target
}

// DeleteFilter removes the selected chunks from the regions in dir. A
// region left without chunks is deleted; others are atomically replaced.
func (r *Runner) DeleteFilter(ctx context.Context, f *filter.Group, sel *selection.Set, dir string, sink progress.Sink) (*pipeline.Batch, error) {
	t, err := newTarget(f, sel, r.files, r.log)
	if err != nil {
		return nil, err
	}
	return r.submit(ctx, "delete", dir, &deleteOp{target: t}, sink)
}

func (op *deleteOp) Process(_ context.Context, job *pipeline.ProcessJob) (*region.Region, error) {
	reg, err := op.decode(job)
	if err != nil {
		return nil, err
	}
	removed := 0
	for _, c := range reg.Chunks() {
		if op.selected(job.Coord, c) && reg.Remove(c.Index()) {
			removed++
		}
	}
	if removed == 0 {
		return nil, errors.Wrapf(common.ErrSkipped, "no chunk of %s selected", job.Coord)
	}
	op.log.Debug().Str("file", job.Path).Int("chunks", removed).Msg("deleted chunks")
	return reg, nil
}

func (op *deleteOp) Save(ctx context.Context, job *pipeline.SaveJob) error {
	if job.Region.Count() == 0 {
		return op.files.Remove(ctx, job.Path)
	}
	return saveInPlace(ctx, op.target, job)
}

func saveInPlace(ctx context.Context, t target, job *pipeline.SaveJob) error {
	data, err := job.Region.Encode(true)
	if err != nil {
		return err
	}
	return t.files.ReplaceAtomic(ctx, job.Path, data)
}
