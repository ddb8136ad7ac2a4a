package logfile

// Fake is a test double that returns scripted line batches.
type Fake struct {
	// Batches contains the successive results of ReadNewLines. Each
	// call consumes one batch; after exhaustion calls return nothing,
	// like a quiet log.
	Batches [][]string

	// FilePath is returned by Path.
	FilePath string

	// ReadError, if set, is returned by every ReadNewLines call.
	ReadError error

	// Closed tracks whether Close was called.
	Closed bool

	index int
}

// NewFake creates a Fake that yields the given batches in order.
func NewFake(batches ...[]string) *Fake {
	return &Fake{Batches: batches, FilePath: "fake.jsonl"}
}

// Append queues one more batch.
func (f *Fake) Append(lines ...string) {
	f.Batches = append(f.Batches, lines)
}

// ReadNewLines returns the next scripted batch, or nothing when the
// script is exhausted.
func (f *Fake) ReadNewLines() ([]string, error) {
	if f.ReadError != nil {
		return nil, f.ReadError
	}
	if f.index >= len(f.Batches) {
		return nil, nil
	}
	batch := f.Batches[f.index]
	f.index++
	return batch, nil
}

// Path returns the configured fake path.
func (f *Fake) Path() string {
	return f.FilePath
}

// Close marks the fake closed.
func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
