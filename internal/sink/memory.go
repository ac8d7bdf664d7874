package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"chatvault/internal/archive"
)

// MemorySink keeps bundles in memory. Useful for tests.
// Safe for concurrent use.
type MemorySink struct {
	name    string
	bundles map[string][]byte
	mu      sync.RWMutex
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink(name string) *MemorySink {
	return &MemorySink{name: name, bundles: make(map[string][]byte)}
}

func (m *MemorySink) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read bundle: %w", err)
	}
	if int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles[name] = data
	return "memory://" + m.name + "/" + name, nil
}

func (m *MemorySink) ValidateSetup(ctx context.Context) error {
	return nil
}

// Get copies a stored bundle to w.
func (m *MemorySink) Get(name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.bundles[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("bundle not found: %s", name)
	}
	_, err := io.Copy(w, bytes.NewReader(data))
	return err
}

// Names lists stored bundle names in sorted order.
func (m *MemorySink) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.bundles))
	for n := range m.bundles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var _ archive.BundleSink = (*MemorySink)(nil)
