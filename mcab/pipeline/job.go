package pipeline

import (
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"

	"github.com/google/uuid"
)

// Stage is the position of a file in the pipeline.
type Stage int

const (
	Enumerated Stage = iota
	Loading
	Loaded
	Processing
	Processed
	Saving
	Done
	Errored
)

var stageNames = [...]string{"enumerated", "loading", "loaded", "processing", "processed", "saving", "done", "errored"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Job identifies one region file of one batch. Stage structs embed it and
// are handed from queue to queue; exactly one worker owns a job at a time.
type Job struct {
	ID    uuid.UUID
	Path  string
	Coord region.Coordinate

	batch *Batch
}

// Batch returns the batch the job belongs to.
func (j Job) Batch() *Batch { return j.batch }

// LoadJob is queued for the Load stage.
type LoadJob struct {
	Job
}

// ProcessJob carries the raw file bytes to the Process stage.
type ProcessJob struct {
	Job
	Raw []byte
}

// SaveJob carries the processed region to the Save stage.
type SaveJob struct {
	Job
	Region *region.Region
}

// InFlightJob is a snapshot entry of InFlight.
type InFlightJob struct {
	ID    uuid.UUID
	Batch uuid.UUID
	Path  string
	Stage Stage
}
