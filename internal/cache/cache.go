package cache

import "time"

// Cache stores values by key. Implementations may normalize keys.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically cleans the registered caches until stopped.
type Janitor struct {
	caches []Cleaner
	stop   chan struct{}
	done   chan struct{}
	onTick func(removed int)
}

// NewJanitor creates a janitor for the given caches. onTick, when not nil,
// receives the number of entries removed on each pass.
func NewJanitor(onTick func(removed int), caches ...Cleaner) *Janitor {
	return &Janitor{
		caches: caches,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		onTick: onTick,
	}
}

// Start begins periodic cleanup in a goroutine.
func (j *Janitor) Start(interval time.Duration) {
	go j.run(interval)
}

func (j *Janitor) run(interval time.Duration) {
	defer close(j.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := 0
			for _, c := range j.caches {
				removed += c.CleanExpired()
			}
			if j.onTick != nil {
				j.onTick(removed)
			}
		case <-j.stop:
			return
		}
	}
}

// Stop ends the cleanup loop and waits for it to exit. Only call after Start.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}
