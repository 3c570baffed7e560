// Package pipeline streams region files through three bounded stages:
// Load reads the raw file, Process decodes and edits it, Save writes it
// back. Each stage has its own worker pool and queue; a full queue blocks
// the upstream worker instead of dropping work.
package pipeline

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/fileops"
	"github.com/ZanzyTHEbar/mca-batch/mcab/progress"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"

	"github.com/ZanzyTHEbar/assert-lib"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("pipeline: scheduler closed")

const (
	stageLoad    = "load"
	stageProcess = "process"
	stageSave    = "save"
)

// Scheduler owns the stage pools. One scheduler serves any number of
// batches, which share its queues and its in-flight limit.
type Scheduler struct {
	cfg     Config
	log     zerolog.Logger
	metrics *Metrics
	asserts *assert.AssertHandler

	loadQ    chan *LoadJob
	processQ chan *ProcessJob
	saveQ    chan *SaveJob
	// slots holds one token per file in flight.
	slots chan struct{}

	quit      chan struct{}
	closeOnce sync.Once
	workers   *pool.Pool
	feeders   conc.WaitGroup

	mu       sync.Mutex
	inFlight map[uuid.UUID]*InFlightJob
	batches  map[uuid.UUID]*Batch
	closed   bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithAssertHandler replaces the handler that reports broken scheduler
// invariants. The default writes to stderr and exits.
func WithAssertHandler(h *assert.AssertHandler) Option {
	return func(s *Scheduler) {
		if h != nil {
			s.asserts = h
		}
	}
}

// New starts the stage workers. Metrics are registered on reg when it is
// not nil.
func New(cfg Config, log zerolog.Logger, reg prometheus.Registerer, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		cfg:      cfg,
		log:      log.With().Str("component", "pipeline").Logger(),
		metrics:  newMetrics(reg),
		loadQ:    make(chan *LoadJob, cfg.QueueSize),
		processQ: make(chan *ProcessJob, cfg.QueueSize),
		saveQ:    make(chan *SaveJob, cfg.QueueSize),
		slots:    make(chan struct{}, cfg.MaxLoadedFiles),
		quit:     make(chan struct{}),
		inFlight: make(map[uuid.UUID]*InFlightJob),
		batches:  make(map[uuid.UUID]*Batch),
		asserts:  assert.NewAssertHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.workers = pool.New().WithMaxGoroutines(cfg.LoadWorkers + cfg.ProcessWorkers + cfg.SaveWorkers)
	for i := 0; i < cfg.LoadWorkers; i++ {
		s.workers.Go(s.loadWorker)
	}
	for i := 0; i < cfg.ProcessWorkers; i++ {
		s.workers.Go(s.processWorker)
	}
	for i := 0; i < cfg.SaveWorkers; i++ {
		s.workers.Go(s.saveWorker)
	}
	s.log.Debug().
		Int("load", cfg.LoadWorkers).
		Int("process", cfg.ProcessWorkers).
		Int("save", cfg.SaveWorkers).
		Int("maxLoaded", cfg.MaxLoadedFiles).
		Msg("pipeline started")
	return s, nil
}

// Submit enqueues one job per entry and returns immediately. The sink is
// told the file count up front, receives one increment per file whatever
// its outcome, and a final Done. Entries whose name did not parse are
// skipped but still counted.
func (s *Scheduler) Submit(ctx context.Context, name string, op Operation, entries []fileops.Entry, sink progress.Sink) (*Batch, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	b := newBatch(ctx, name, op, len(entries), sink, s.log, s.asserts)
	if len(entries) > 0 {
		s.batches[b.ID] = b
	}
	s.mu.Unlock()

	if len(entries) == 0 {
		b.start("")
		return b, nil
	}
	b.start(filepath.Base(entries[0].Path))
	b.log.Info().Int("files", len(entries)).Msg("batch submitted")
	s.feeders.Go(func() { s.feed(b, entries) })
	return b, nil
}

func (s *Scheduler) feed(b *Batch, entries []fileops.Entry) {
	for i, e := range entries {
		job := Job{ID: uuid.New(), Path: e.Path, Coord: e.Coord, batch: b}
		if b.stopped() {
			s.cancelRest(b, entries[i:])
			return
		}
		if e.Err != nil {
			b.log.Warn().Err(e.Err).Str("file", e.Path).Msg("skipping file")
			s.finish(job, Skipped, e.Err, false)
			continue
		}

		select {
		case s.slots <- struct{}{}:
		case <-b.stop:
			s.cancelRest(b, entries[i:])
			return
		case <-b.ctx.Done():
			s.cancelRest(b, entries[i:])
			return
		case <-s.quit:
			s.cancelRest(b, entries[i:])
			return
		}
		s.track(job)

		select {
		case s.loadQ <- &LoadJob{Job: job}:
		case <-b.stop:
			s.cancel(job)
			s.cancelRest(b, entries[i+1:])
			return
		case <-b.ctx.Done():
			s.cancel(job)
			s.cancelRest(b, entries[i+1:])
			return
		case <-s.quit:
			s.cancel(job)
			s.cancelRest(b, entries[i+1:])
			return
		}
	}
}

func (s *Scheduler) cancelRest(b *Batch, rest []fileops.Entry) {
	for _, e := range rest {
		s.finish(Job{Path: e.Path, Coord: e.Coord, batch: b}, Cancelled, nil, false)
	}
}

func (s *Scheduler) loadWorker() {
	for {
		select {
		case <-s.quit:
			return
		case job := <-s.loadQ:
			s.runLoad(job)
		}
	}
}

func (s *Scheduler) processWorker() {
	for {
		select {
		case <-s.quit:
			return
		case job := <-s.processQ:
			s.runProcess(job)
		}
	}
}

func (s *Scheduler) saveWorker() {
	for {
		select {
		case <-s.quit:
			return
		case job := <-s.saveQ:
			s.runSave(job)
		}
	}
}

func (s *Scheduler) runLoad(job *LoadJob) {
	b := job.batch
	// Files of a cleared batch that were already queued must not start.
	if b.stopped() {
		s.cancel(job.Job)
		return
	}
	s.setStage(job.ID, Loading)
	var raw []byte
	err := s.run(stageLoad, func() (err error) {
		raw, err = b.op.Load(b.ctx, job)
		return err
	})
	if err != nil {
		s.fail(job.Job, stageLoad, err)
		return
	}
	s.count(stageLoad, Succeeded)
	s.setStage(job.ID, Loaded)

	next := &ProcessJob{Job: job.Job, Raw: raw}
	select {
	case s.processQ <- next:
	case <-s.quit:
		s.cancel(next.Job)
	}
}

func (s *Scheduler) runProcess(job *ProcessJob) {
	b := job.batch
	if b.stopped() {
		s.cancel(job.Job)
		return
	}
	s.setStage(job.ID, Processing)
	var r *region.Region
	err := s.run(stageProcess, func() (err error) {
		r, err = b.op.Process(b.ctx, job)
		return err
	})
	if err == nil && r == nil {
		err = errors.Wrap(common.ErrSkipped, "nothing to save")
	}
	if err != nil {
		s.fail(job.Job, stageProcess, err)
		return
	}
	s.count(stageProcess, Succeeded)
	s.setStage(job.ID, Processed)

	next := &SaveJob{Job: job.Job, Region: r}
	select {
	case s.saveQ <- next:
	case <-s.quit:
		s.cancel(next.Job)
	}
}

func (s *Scheduler) runSave(job *SaveJob) {
	b := job.batch
	if b.stopped() {
		s.cancel(job.Job)
		return
	}
	s.setStage(job.ID, Saving)
	err := s.run(stageSave, func() error {
		return b.op.Save(b.ctx, job)
	})
	if err != nil {
		s.fail(job.Job, stageSave, err)
		return
	}
	s.count(stageSave, Succeeded)
	s.setStage(job.ID, Done)
	s.finish(job.Job, Succeeded, nil, true)
}

// run executes one stage hook, turning a panic into an error.
func (s *Scheduler) run(stage string, f func() error) error {
	start := time.Now()
	var err error
	if r := panics.Try(func() { err = f() }); r != nil {
		err = errors.Wrapf(r.AsError(), "%s stage panicked", stage)
	}
	s.metrics.Duration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}

// fail settles a file whose stage hook returned err. Errors other than the
// file-level kinds abort as cancelled when the batch context has ended.
func (s *Scheduler) fail(job Job, stage string, err error) {
	log := job.batch.log
	switch {
	case errors.Is(err, common.ErrSkipped):
		s.count(stage, Skipped)
		log.Debug().Str("file", job.Path).Str("stage", stage).Err(err).Msg("file skipped")
		s.finish(job, Skipped, nil, true)
	case !common.IsFileLevel(err) && job.batch.ctx.Err() != nil:
		s.count(stage, Cancelled)
		log.Debug().Str("file", job.Path).Str("stage", stage).Err(err).Msg("file aborted")
		s.finish(job, Cancelled, nil, true)
	default:
		s.count(stage, Failed)
		s.setStage(job.ID, Errored)
		log.Error().
			Str("file", job.Path).
			Str("stage", stage).
			Bool("fileLevel", common.IsFileLevel(err)).
			Err(err).
			Msg("file failed")
		s.finish(job, Failed, err, true)
	}
}

func (s *Scheduler) cancel(job Job) {
	s.count("queued", Cancelled)
	s.finish(job, Cancelled, nil, true)
}

// finish releases the file's slot when it holds one and reports the file to
// its batch.
func (s *Scheduler) finish(job Job, o Outcome, err error, holdsSlot bool) {
	if holdsSlot {
		s.untrack(job.ID)
		select {
		case <-s.slots:
		default:
			s.asserts.Never(context.Background(), "slot released without being acquired",
				"file", job.Path, "batch", job.batch.ID.String())
		}
	}
	if job.batch.record(job.Path, o, err) {
		s.mu.Lock()
		delete(s.batches, job.batch.ID)
		s.mu.Unlock()
	}
}

func (s *Scheduler) count(stage string, o Outcome) {
	s.metrics.Jobs.WithLabelValues(stage, o.String()).Inc()
}

func (s *Scheduler) track(job Job) {
	s.mu.Lock()
	s.inFlight[job.ID] = &InFlightJob{ID: job.ID, Batch: job.batch.ID, Path: job.Path, Stage: Enumerated}
	s.mu.Unlock()
	s.metrics.InFlight.Inc()
}

func (s *Scheduler) untrack(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
	s.metrics.InFlight.Dec()
}

func (s *Scheduler) setStage(id uuid.UUID, st Stage) {
	s.mu.Lock()
	if j, ok := s.inFlight[id]; ok {
		j.Stage = st
	}
	s.mu.Unlock()
}

// InFlight returns a snapshot of the files currently holding a slot,
// ordered by path.
func (s *Scheduler) InFlight() []InFlightJob {
	s.mu.Lock()
	out := make([]InFlightJob, 0, len(s.inFlight))
	for _, j := range s.inFlight {
		out = append(out, *j)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ClearQueues cancels every job that has not started its next stage yet,
// and stops the batches submitted so far from enqueuing more. Jobs inside a
// stage run to completion; whatever they hand on afterwards is cancelled by
// the next stage. It returns the number of jobs drained from the queues.
func (s *Scheduler) ClearQueues() int {
	s.mu.Lock()
	for _, b := range s.batches {
		b.requestStop()
	}
	s.mu.Unlock()

	n := 0
	for drained := true; drained; {
		drained = false
		select {
		case j := <-s.loadQ:
			s.cancel(j.Job)
			n, drained = n+1, true
		case j := <-s.processQ:
			s.cancel(j.Job)
			n, drained = n+1, true
		case j := <-s.saveQ:
			s.cancel(j.Job)
			n, drained = n+1, true
		default:
		}
	}
	if n > 0 {
		s.log.Info().Int("jobs", n).Msg("cleared queues")
	}
	return n
}

// Close stops accepting batches, lets running stage hooks return, and
// cancels whatever is still queued. It blocks until the workers exit.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.quit)
		s.feeders.Wait()
		s.workers.Wait()
		s.ClearQueues()
		s.log.Debug().Msg("pipeline stopped")
	})
}
