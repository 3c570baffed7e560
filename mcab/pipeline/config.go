package pipeline

import (
	"fmt"

	internal "github.com/ZanzyTHEbar/mca-batch/mcab"
	"github.com/ZanzyTHEbar/mca-batch/mcab/config"
)

// Config sizes the three stage pools and the bound on files in flight.
type Config struct {
	LoadWorkers    int
	ProcessWorkers int
	SaveWorkers    int
	// QueueSize is the capacity of each stage queue.
	QueueSize int
	// MaxLoadedFiles caps the files between enumeration and completion.
	MaxLoadedFiles int
}

// DefaultConfig returns the application defaults: a serial loader, one
// process worker per CPU and four writers.
func DefaultConfig() Config {
	return Config{
		LoadWorkers:    internal.DefaultLoadThreads,
		ProcessWorkers: internal.DefaultProcessThreads,
		SaveWorkers:    internal.DefaultWriteThreads,
		QueueSize:      internal.DefaultMaxLoadedFiles,
		MaxLoadedFiles: internal.DefaultMaxLoadedFiles,
	}
}

// FromAppConfig maps the loaded application configuration onto a Config.
func FromAppConfig(c *config.Config) Config {
	return Config{
		LoadWorkers:    c.Pipeline.LoadThreads,
		ProcessWorkers: c.Pipeline.ProcessThreads,
		SaveWorkers:    c.Pipeline.WriteThreads,
		QueueSize:      c.Pipeline.QueueSize,
		MaxLoadedFiles: c.Pipeline.MaxLoadedFiles,
	}
}

// Validate rejects a config that could not make progress.
func (c Config) Validate() error {
	if c.LoadWorkers < 1 || c.ProcessWorkers < 1 || c.SaveWorkers < 1 {
		return fmt.Errorf("pipeline: every stage needs at least one worker (load=%d process=%d save=%d)",
			c.LoadWorkers, c.ProcessWorkers, c.SaveWorkers)
	}
	if c.QueueSize < 1 || c.MaxLoadedFiles < 1 {
		return fmt.Errorf("pipeline: queue size and max loaded files must be positive (queue=%d loaded=%d)",
			c.QueueSize, c.MaxLoadedFiles)
	}
	return nil
}
