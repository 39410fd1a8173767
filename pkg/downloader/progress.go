package downloader

import (
	"sync"

	"github.com/cubicmc/proton/pkg/entity"
)

// reporter aggregates per-category completion counters and emits them to an
// optional caller-supplied sink. Counter updates are serialized behind one
// mutex so concurrent workers never lose an increment; emission never blocks
// a worker on a slow or absent consumer.
type reporter struct {
	mu      sync.Mutex
	current map[entity.Category]int
	totals  map[entity.Category]int
	sink    chan entity.ProgressEvent
}

func newReporter(sink chan entity.ProgressEvent, totals map[entity.Category]int) *reporter {
	return &reporter{
		current: make(map[entity.Category]int, len(totals)),
		totals:  totals,
		sink:    sink,
	}
}

// advance records one terminal task state and emits the updated count for
// its category. Current never exceeds the category total.
func (r *reporter) advance(category entity.Category, name string) {
	r.mu.Lock()
	if r.current[category] < r.totals[category] {
		r.current[category]++
	}
	ev := entity.ProgressEvent{
		Category: category,
		Current:  r.current[category],
		Total:    r.totals[category],
		Name:     name,
	}
	// Emitting under the lock keeps the event sequence non-decreasing per
	// category; emit itself never blocks.
	r.emit(ev)
	r.mu.Unlock()
}

// emit delivers without blocking. When the sink is full the oldest unread
// event is dropped to make room; if a concurrent reader races the retry the
// event is dropped instead, which a progress stream tolerates.
func (r *reporter) emit(ev entity.ProgressEvent) {
	if r.sink == nil {
		return
	}

	select {
	case r.sink <- ev:
		return
	default:
	}

	select {
	case <-r.sink:
	default:
	}

	select {
	case r.sink <- ev:
	default:
	}
}
