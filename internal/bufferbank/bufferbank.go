// Package bufferbank stores named raw byte blobs (e.g. LV2 plugin
// state, wavetable definitions) with the same named/tombstoned
// lifecycle as sample.Bank.
package bufferbank

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrDuplicateName is returned by Add when the name is already in use.
	ErrDuplicateName = errors.New("bufferbank: duplicate name")
	// ErrOpenFailed is returned when the file cannot be read.
	ErrOpenFailed = errors.New("bufferbank: open failed")
)

// Bank is a named store of raw byte buffers.
type Bank struct {
	buffers [][]byte
	names   map[string]int
	marked  map[int]bool
}

// New returns an empty Bank.
func New() *Bank {
	return &Bank{
		names:  make(map[string]int),
		marked: make(map[int]bool),
	}
}

// Add reads path in full and stores it under name.
func (b *Bank) Add(name, path string) error {
	if _, exists := b.names[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrOpenFailed, path, err)
	}
	b.buffers = append(b.buffers, data)
	b.names[name] = len(b.buffers) - 1
	return nil
}

// MarkDead defers name for removal on the next Refresh.
func (b *Bank) MarkDead(name string) {
	if idx, ok := b.names[name]; ok {
		b.marked[idx] = true
	}
}

// Refresh compacts out all marked buffers, reassigning indices.
func (b *Bank) Refresh() {
	if len(b.marked) == 0 {
		return
	}
	newBuffers := make([][]byte, 0, len(b.buffers))
	newNames := make(map[string]int, len(b.names))
	for name, idx := range b.names {
		if b.marked[idx] {
			continue
		}
		newBuffers = append(newBuffers, b.buffers[idx])
		newNames[name] = len(newBuffers) - 1
	}
	b.buffers = newBuffers
	b.names = newNames
	b.marked = make(map[int]bool)
}

// GetIndex returns the current index of name, if present.
func (b *Bank) GetIndex(name string) (int, bool) {
	idx, ok := b.names[name]
	return idx, ok
}

// GetBuffer returns the buffer at index.
func (b *Bank) GetBuffer(index int) []byte {
	return b.buffers[index]
}
