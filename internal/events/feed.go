package events

import (
	"context"
	"sync"
)

// Merge multiplexes independent upstream feeds (market data, account
// feedback, operator commands) into the single ordered event source the
// engine polls. Events from one source keep their relative order; ordering
// across sources is delivery order. The output channel closes once every
// source is closed or the context is cancelled.
func Merge(ctx context.Context, buffer int, sources ...<-chan Event) <-chan Event {
	out := make(chan Event, buffer)

	var wg sync.WaitGroup
	wg.Add(len(sources))
	for _, src := range sources {
		go func(src <-chan Event) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-src:
					if !ok {
						return
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
