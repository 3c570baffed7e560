package operations

import (
	"context"

	"github.com/ZanzyTHEbar/mca-batch/mcab/changer"
	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/filter"
	"github.com/ZanzyTHEbar/mca-batch/mcab/pipeline"
	"github.com/ZanzyTHEbar/mca-batch/mcab/progress"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"
	"github.com/ZanzyTHEbar/mca-batch/mcab/selection"

	"github.com/pkg/errors"
)

type changeOp struct {
	target
	fields []*changer.Field
	force  bool
}

// ChangeFields writes the staged field values into the selected chunks of
// every region in dir. In change mode a field is only written where it
// already exists; force creates it. Only regions where something changed
// are saved.
func (r *Runner) ChangeFields(ctx context.Context, fields []*changer.Field, force bool, f *filter.Group, sel *selection.Set, dir string, sink progress.Sink) (*pipeline.Batch, error) {
	if len(fields) == 0 {
		return nil, errors.Wrap(common.ErrParse, "no fields to change")
	}
	for _, fld := range fields {
		if _, ok := fld.Value(); !ok {
			return nil, errors.Wrapf(common.ErrParse, "field %s has no value", fld.Kind())
		}
	}
	t, err := newTarget(f, sel, r.files, r.log)
	if err != nil {
		return nil, err
	}
	return r.submit(ctx, "change", dir, &changeOp{target: t, fields: fields, force: force}, sink)
}

func (op *changeOp) Process(_ context.Context, job *pipeline.ProcessJob) (*region.Region, error) {
	reg, err := op.decode(job)
	if err != nil {
		return nil, err
	}
	changed := 0
	for _, c := range reg.Chunks() {
		if !op.selected(job.Coord, c) {
			continue
		}
		tree, err := c.Tree()
		if err != nil {
			op.log.Warn().Str("file", job.Path).Int("slot", c.Index()).Err(err).Msg("cannot edit chunk")
			continue
		}
		if changer.ApplyAll(op.fields, tree, op.force) {
			c.MarkDirty()
			changed++
		}
	}
	if changed == 0 {
		return nil, errors.Wrapf(common.ErrSkipped, "nothing changed in %s", job.Coord)
	}
	op.log.Debug().Str("file", job.Path).Int("chunks", changed).Msg("changed chunks")
	return reg, nil
}

func (op *changeOp) Save(ctx context.Context, job *pipeline.SaveJob) error {
	return saveInPlace(ctx, op.target, job)
}
