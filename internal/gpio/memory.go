package gpio

import "sync"

// Change is one recorded write.
type Change struct {
	Pin  int
	High bool
}

// Memory keeps pin levels in memory. It is safe for concurrent use.
type Memory struct {
	// mu protects levels and history.
	mu sync.Mutex
	// levels holds the last written level per pin.
	levels map[int]bool
	// history records every write in order.
	history []Change
}

// NewMemory returns an empty in-memory driver.
func NewMemory() *Memory {
	return &Memory{
		levels: make(map[int]bool),
	}
}

// Write records the level.
func (m *Memory) Write(pin int, high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.levels[pin] = high
	m.history = append(m.history, Change{Pin: pin, High: high})

	return nil
}

// Level returns the last level written to pin and whether it was ever written.
func (m *Memory) Level(pin int) (high, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	high, ok = m.levels[pin]

	return high, ok
}

// History returns a copy of every write so far.
func (m *Memory) History() []Change {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Change, len(m.history))
	copy(out, m.history)

	return out
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
