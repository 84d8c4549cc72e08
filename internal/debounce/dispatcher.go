package debounce

import "sync"

// dispatcher delivers queued items one at a time, in push order, without
// holding any lock while deliver runs. A push from inside deliver is
// delivered after the current item returns.
type dispatcher[E any] struct {
	mu       sync.Mutex
	queue    []E
	draining bool
	deliver  func(E)
}

func newDispatcher[E any](deliver func(E)) *dispatcher[E] {
	return &dispatcher[E]{deliver: deliver}
}

func (d *dispatcher[E]) push(e E) {
	d.mu.Lock()
	d.queue = append(d.queue, e)
	d.mu.Unlock()
}

// reset drops everything not yet delivered.
func (d *dispatcher[E]) reset() {
	d.mu.Lock()
	d.queue = nil
	d.mu.Unlock()
}

func (d *dispatcher[E]) drain() {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return
	}
	d.draining = true
	d.mu.Unlock()

	finished := false
	defer func() {
		// deliver panicked; let the next drain take over.
		if !finished {
			d.mu.Lock()
			d.draining = false
			d.mu.Unlock()
		}
	}()

	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			finished = true
			d.mu.Unlock()
			return
		}
		e := d.queue[0]
		var zero E
		d.queue[0] = zero
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.deliver(e)
	}
}
