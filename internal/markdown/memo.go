package markdown

import "sync"

// Memo is an in-memory Cache safe for concurrent use.
type Memo struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemo creates an empty Memo.
func NewMemo() *Memo {
	return &Memo{m: make(map[string]string)}
}

func (m *Memo) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[key]
	return v, ok
}

func (m *Memo) Set(key, html string) {
	m.mu.Lock()
	m.m[key] = html
	m.mu.Unlock()
}

// Len returns the number of memoised entries.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}
