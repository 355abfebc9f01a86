package session

import (
	"strings"
	"sync"
)

// Accumulator holds the finalized transcript fragments of one session.
// Append and FullText may be called from different goroutines.
type Accumulator struct {
	mu        sync.Mutex
	fragments []string
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) Append(fragment string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fragments = append(a.fragments, fragment)
}

func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fragments)
}

// FullText returns every fragment in append order, each followed by a single
// space.
func (a *Accumulator) FullText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var b strings.Builder
	for _, f := range a.fragments {
		b.WriteString(f)
		b.WriteByte(' ')
	}
	return b.String()
}
