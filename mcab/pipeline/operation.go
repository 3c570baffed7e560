package pipeline

import (
	"context"

	"github.com/ZanzyTHEbar/mca-batch/mcab/region"
)

// Operation supplies the work of each stage for one batch. Its methods are
// called concurrently for different files and must treat shared state such
// as filters and selections as read-only.
//
// Returning an error wrapping common.ErrSkipped ends the file early without
// counting it as failed.
type Operation interface {
	Load(ctx context.Context, job *LoadJob) ([]byte, error)
	Process(ctx context.Context, job *ProcessJob) (*region.Region, error)
	Save(ctx context.Context, job *SaveJob) error
}
