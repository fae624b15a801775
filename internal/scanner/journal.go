package scanner

import (
	"bytes"
	"strings"
	"sync"
)

const journalSize = 100

// Journal keeps the most recent log lines, newest first, for the dashboard.
// It is an io.Writer so it can be teed into the logger output.
type Journal struct {
	mu      sync.RWMutex
	lines   []string
	pending []byte
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Write(p []byte) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.pending = append(j.pending, p...)
	for {
		i := bytes.IndexByte(j.pending, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimRight(string(j.pending[:i]), "\r"); line != "" {
			j.lines = append([]string{line}, j.lines...)
			if len(j.lines) > journalSize {
				j.lines = j.lines[:journalSize]
			}
		}
		j.pending = j.pending[i+1:]
	}
	return len(p), nil
}

func (j *Journal) Lines() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	lines := make([]string, len(j.lines))
	copy(lines, j.lines)
	return lines
}
