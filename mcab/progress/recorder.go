package progress

// Recorder keeps every call it receives. It is meant for tests and for
// callers that poll progress; wrap it with Synchronized when shared.
type Recorder struct {
	Max        int
	Completed  int
	Increments int
	Labels     []string
	Finished   []string
}

func (r *Recorder) SetMax(n int) { r.Max = n }

func (r *Recorder) UpdateProgress(label string, done int) {
	r.Completed = done
	r.Labels = append(r.Labels, label)
}

func (r *Recorder) IncrementProgress(label string, count int) {
	r.Completed += count
	r.Increments++
	r.Labels = append(r.Labels, label)
}

func (r *Recorder) Done(label string) { r.Finished = append(r.Finished, label) }
