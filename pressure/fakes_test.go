package pressure

import (
	"sync"
	"time"
)

type fakeMemory struct {
	mu   sync.Mutex
	heap uint64
	rss  uint64
	err  error
}

func (m *fakeMemory) ReadMemory() (uint64, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, 0, m.err
	}
	return m.heap, m.rss, nil
}

func (m *fakeMemory) set(heap, rss uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heap, m.rss = heap, rss
}

type fakeHistogram struct {
	mean   float64
	resets int
}

func (h *fakeHistogram) Mean() float64 { return h.mean }
func (h *fakeHistogram) Reset()        { h.resets++ }

type fakeMeter struct {
	value float64
}

func (m *fakeMeter) Utilization() float64 { return m.value }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testSources returns sources backed by fakes with a histogram and a
// utilization meter, so every capability is present.
func testSources() (sources, *fakeMemory, *fakeHistogram, *fakeMeter) {
	mem := &fakeMemory{}
	hist := &fakeHistogram{}
	meter := &fakeMeter{}
	return sources{
		memory:      mem,
		histogram:   hist,
		utilization: meter,
		now:         newFakeClock().Now,
	}, mem, hist, meter
}
