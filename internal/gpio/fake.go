package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/garage-sensor/internal/logic"
)

// FakeReader is a test double that returns scripted levels and lets tests
// inject edge events. It is safe for concurrent use.
type FakeReader struct {
	mu sync.Mutex

	// Samples contains scripted levels. Each call to Read() consumes the next
	// sample; the last one repeats once exhausted.
	Samples []Levels

	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error

	handler Handler
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...Levels) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeReader) Read() (Levels, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return Levels{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return Levels{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Set replaces the scripted samples with a single repeating level.
func (f *FakeReader) Set(l Levels) {
	f.mu.Lock()
	f.Samples = []Levels{l}
	f.index = 0
	f.mu.Unlock()
}

// Watch records the handler for Emit.
func (f *FakeReader) Watch(h Handler) error {
	if h == nil {
		return errors.New("gpio: nil handler")
	}
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
	return nil
}

// Emit delivers sig to the installed handler as if an edge interrupt fired.
// It reports false when no handler is installed.
func (f *FakeReader) Emit(sig logic.Signal) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(sig)
	return true
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset rewinds the samples and clears the closed flag.
func (f *FakeReader) Reset() {
	f.mu.Lock()
	f.index = 0
	f.Closed = false
	f.mu.Unlock()
}
