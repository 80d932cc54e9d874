// internal/playlist/mock.go
package playlist

import "github.com/avigny/baton/internal/engine"

// Mock is a scripted Provider for controller tests.
type Mock struct {
	Items []Track

	reshuffles int
	nextCalls  []engine.ChangeFlags
}

var _ Provider = (*Mock)(nil)

// NewMock creates a mock provider over the given tracks.
func NewMock(tracks ...Track) *Mock {
	return &Mock{Items: tracks}
}

func (m *Mock) ItemAt(i int) *Item {
	if i < 0 || i >= len(m.Items) {
		return nil
	}
	return &Item{Index: i, Track: m.Items[i]}
}

func (m *Mock) NextIndex(current int, flags engine.ChangeFlags) int {
	m.nextCalls = append(m.nextCalls, flags)
	if len(m.Items) == 0 {
		return -1
	}
	if current < 0 {
		return 0
	}
	if current+1 < len(m.Items) {
		return current + 1
	}
	return -1
}

func (m *Mock) PreviousIndex(current int) int {
	if current <= 0 {
		return -1
	}
	return current - 1
}

func (m *Mock) RequestReshuffle() { m.reshuffles++ }

// Test helpers

func (m *Mock) Reshuffles() int { return m.reshuffles }

func (m *Mock) NextCalls() []engine.ChangeFlags {
	return append([]engine.ChangeFlags(nil), m.nextCalls...)
}
