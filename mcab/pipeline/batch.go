package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ZanzyTHEbar/mca-batch/mcab/progress"

	"github.com/ZanzyTHEbar/assert-lib"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Outcome is how a file left the pipeline.
type Outcome int

const (
	Succeeded Outcome = iota
	Skipped
	Failed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// NoFilesLabel is reported to the sink when a batch has nothing to do.
const NoFilesLabel = "no files found"

// Result summarizes a finished batch. Err aggregates the per-file errors.
type Result struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Cancelled int
	Err       error
}

// Batch tracks the files of one submitted operation.
type Batch struct {
	ID   uuid.UUID
	Name string

	ctx   context.Context
	op    Operation
	total int
	sink  progress.Sink
	log   zerolog.Logger
	// asserts reports a file recorded twice.
	asserts *assert.AssertHandler

	mu       sync.Mutex
	counts   [4]int
	errs     *multierror.Error
	finished int

	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func newBatch(ctx context.Context, name string, op Operation, total int, sink progress.Sink, log zerolog.Logger, asserts *assert.AssertHandler) *Batch {
	id := uuid.New()
	return &Batch{
		ID:      id,
		Name:    name,
		ctx:     ctx,
		op:      op,
		total:   total,
		sink:    progress.Synchronized(sink),
		log:     log.With().Str("batch", id.String()).Str("operation", name).Logger(),
		asserts: asserts,
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

// Total is the number of enumerated files.
func (b *Batch) Total() int { return b.total }

// Done is closed once every file has been accounted for.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait blocks until the batch finishes or ctx ends.
func (b *Batch) Wait(ctx context.Context) (Result, error) {
	select {
	case <-b.done:
		return b.Result(), nil
	case <-ctx.Done():
		return b.Result(), ctx.Err()
	}
}

// Result returns the counts so far.
func (b *Batch) Result() Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result()
}

func (b *Batch) result() Result {
	return Result{
		Total:     b.total,
		Succeeded: b.counts[Succeeded],
		Skipped:   b.counts[Skipped],
		Failed:    b.counts[Failed],
		Cancelled: b.counts[Cancelled],
		Err:       b.errs.ErrorOrNil(),
	}
}

func (b *Batch) stopped() bool {
	select {
	case <-b.stop:
		return true
	case <-b.ctx.Done():
		return true
	default:
		return false
	}
}

func (b *Batch) requestStop() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// start reports the batch size and the first file, or finishes an empty
// batch right away.
func (b *Batch) start(first string) {
	if b.total == 0 {
		b.sink.Done(NoFilesLabel)
		b.log.Info().Msg(NoFilesLabel)
		close(b.done)
		return
	}
	b.sink.SetMax(b.total)
	b.sink.UpdateProgress(first, 0)
}

// record accounts for one file. Every file passes here exactly once, and
// the last one closes the batch and reports true. Sink calls happen under
// the batch lock so Done always follows the final increment.
func (b *Batch) record(path string, o Outcome, err error) bool {
	b.mu.Lock()
	if b.finished >= b.total {
		b.mu.Unlock()
		b.asserts.Never(context.Background(), "file recorded after its batch finished",
			"file", path, "batch", b.ID.String(), "total", b.total)
		return false
	}
	b.counts[o]++
	if err != nil && o == Failed {
		b.errs = multierror.Append(b.errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
	}
	b.finished++
	b.sink.IncrementProgress(filepath.Base(path), 1)
	if b.finished < b.total {
		b.mu.Unlock()
		return false
	}

	r := b.result()
	label := fmt.Sprintf("completed %d files", r.Total)
	if r.Cancelled > 0 {
		label = fmt.Sprintf("cancelled after %d of %d files", r.Total-r.Cancelled, r.Total)
	}
	b.sink.Done(label)
	b.mu.Unlock()

	b.log.Info().
		Int("total", r.Total).
		Int("succeeded", r.Succeeded).
		Int("skipped", r.Skipped).
		Int("failed", r.Failed).
		Int("cancelled", r.Cancelled).
		Msg(label)
	close(b.done)
	return true
}
