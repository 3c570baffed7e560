// Package progress defines how a batch reports progress to its caller.
package progress

import (
	"sync"

	"github.com/rs/zerolog"
)

// Sink receives batch progress. Implementations need not be safe for
// concurrent use; wrap them with Synchronized.
type Sink interface {
	SetMax(n int)
	UpdateProgress(label string, done int)
	IncrementProgress(label string, count int)
	Done(label string)
}

type synchronized struct {
	mu   sync.Mutex
	sink Sink
}

// Synchronized serializes every call into s through one mutex.
func Synchronized(s Sink) Sink {
	if s == nil {
		s = Nop{}
	}
	if _, ok := s.(*synchronized); ok {
		return s
	}
	return &synchronized{sink: s}
}

func (s *synchronized) SetMax(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.SetMax(n)
}

func (s *synchronized) UpdateProgress(label string, done int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.UpdateProgress(label, done)
}

func (s *synchronized) IncrementProgress(label string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.IncrementProgress(label, count)
}

func (s *synchronized) Done(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.Done(label)
}

// Nop discards everything.
type Nop struct{}

func (Nop) SetMax(int)                    {}
func (Nop) UpdateProgress(string, int)    {}
func (Nop) IncrementProgress(string, int) {}
func (Nop) Done(string)                   {}

// LogSink writes progress lines to a zerolog logger.
type LogSink struct {
	log  zerolog.Logger
	max  int
	done int
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "progress").Logger()}
}

func (l *LogSink) SetMax(n int) {
	l.max, l.done = n, 0
	l.log.Debug().Int("max", n).Msg("batch started")
}

func (l *LogSink) UpdateProgress(label string, done int) {
	l.done = done
	l.report(label)
}

func (l *LogSink) IncrementProgress(label string, count int) {
	l.done += count
	l.report(label)
}

func (l *LogSink) Done(label string) {
	l.log.Info().Int("files", l.done).Msg(label)
}

func (l *LogSink) report(label string) {
	ev := l.log.Info().Int("done", l.done).Int("max", l.max)
	if l.max > 0 {
		ev = ev.Float64("percent", float64(l.done)*100/float64(l.max))
	}
	ev.Msg(label)
}
