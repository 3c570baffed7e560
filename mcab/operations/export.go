package operations

import (
	"context"
	"path/filepath"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/fileops"
	"github.com/ZanzyTHEbar/mca-batch/mcab/filter"
	"github.com/ZanzyTHEbar/mca-batch/mcab/pipeline"
	"github.com/ZanzyTHEbar/mca-batch/mcab/progress"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"
	"github.com/ZanzyTHEbar/mca-batch/mcab/selection"

	"github.com/pkg/errors"
)

type exportOp struct {
	target
	dst string
}

// ExportFilter copies the selected chunks of every region in src into new
// compacted files in dst. Files already present in dst are left alone and
// regions without a selected chunk produce no file.
func (r *Runner) ExportFilter(ctx context.Context, f *filter.Group, sel *selection.Set, src, dst string, sink progress.Sink) (*pipeline.Batch, error) {
	t, err := newTarget(f, sel, r.files, r.log)
	if err != nil {
		return nil, err
	}
	if err := common.NewValidationUtils().ValidateDirectoryExists(dst); err != nil {
		return nil, errors.Wrapf(common.ErrIO, "export destination: %v", err)
	}
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil, errors.Wrap(common.ErrIO, "export destination must differ from the source")
	}
	return r.submit(ctx, "export", src, &exportOp{target: t, dst: dst}, sink)
}

func (op *exportOp) destination(c region.Coordinate) string {
	return filepath.Join(op.dst, c.Filename())
}

func (op *exportOp) Load(ctx context.Context, job *pipeline.LoadJob) ([]byte, error) {
	if op.files.Exists(op.destination(job.Coord)) {
		return nil, errors.Wrapf(common.ErrSkipped, "%s already exported", job.Coord.Filename())
	}
	return op.target.Load(ctx, job)
}

func (op *exportOp) Process(_ context.Context, job *pipeline.ProcessJob) (*region.Region, error) {
	src, err := op.decode(job)
	if err != nil {
		return nil, err
	}
	out := region.New(job.Coord)
	for _, c := range src.Chunks() {
		if op.selected(job.Coord, c) {
			out.Put(c)
		}
	}
	if out.Count() == 0 {
		return nil, errors.Wrapf(common.ErrSkipped, "no chunk of %s selected", job.Coord)
	}
	return out, nil
}

func (op *exportOp) Save(ctx context.Context, job *pipeline.SaveJob) error {
	data, err := job.Region.Encode(true)
	if err != nil {
		return err
	}
	err = op.files.WriteNew(ctx, op.destination(job.Coord), data)
	if errors.Is(err, fileops.ErrExists) {
		return errors.Wrap(common.ErrSkipped, err.Error())
	}
	return err
}
