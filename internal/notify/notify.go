package notify

import (
	"sync"

	"github.com/hearthplan/hearthplan/internal/domain"
)

// Notifier is the change-notification port the mutation service invokes
// after a successful write. Delivery is best-effort: nobody may be
// listening, and a failed consumer never fails the mutation.
type Notifier interface {
	SeriesChanged(t domain.SeriesType)
}

// Bus fans a change signal out to registered subscribers.
type Bus struct {
	mu   sync.Mutex
	subs []func(domain.SeriesType)
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a callback for series-changed signals.
func (b *Bus) Subscribe(fn func(domain.SeriesType)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

func (b *Bus) SeriesChanged(t domain.SeriesType) {
	b.mu.Lock()
	subs := make([]func(domain.SeriesType), len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
}
