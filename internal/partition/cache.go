package partition

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

type outcome struct {
	artifact string
	err      error
}

// Cache deduplicates sub-builds by canonical path for one build run.
//
// The first caller for a key runs the build; concurrent callers wait on it
// and later callers get the stored outcome, failures included. Callers that
// are themselves running a sub-build pass its key as parent so that a
// request closing a wait cycle fails fast instead of blocking forever.
type Cache struct {
	group singleflight.Group

	mu      sync.Mutex
	results map[string]outcome
	waits   map[string]map[string]struct{}
	builds  int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		results: make(map[string]outcome),
		waits:   make(map[string]map[string]struct{}),
	}
}

// Get returns the artifact for key, running build at most once per key.
// parent is the key of the sub-build issuing the request, or empty for the
// host build.
func (c *Cache) Get(key, parent string, build func() (string, error)) (string, error) {
	c.mu.Lock()
	if o, ok := c.results[key]; ok {
		c.mu.Unlock()
		return o.artifact, o.err
	}
	if parent != "" {
		if chain := c.chain(key, parent); chain != nil {
			c.mu.Unlock()
			return "", &CycleError{Chain: append([]string{parent}, chain...)}
		}
		c.addWait(parent, key)
		defer c.removeWait(parent, key)
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		if o, ok := c.results[key]; ok {
			c.mu.Unlock()
			return o.artifact, o.err
		}
		c.builds++
		c.mu.Unlock()

		artifact, err := build()

		c.mu.Lock()
		c.results[key] = outcome{artifact: artifact, err: err}
		c.mu.Unlock()
		return artifact, err
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Builds returns how many builds the cache has started since the last Reset.
func (c *Cache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

// Len returns the number of settled keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Reset drops every stored outcome. It must not be called while builds are in flight.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = make(map[string]outcome)
	c.waits = make(map[string]map[string]struct{})
	c.builds = 0
}

// chain returns the wait path from key to parent, both included, or nil when
// parent is not reachable. Caller holds mu.
func (c *Cache) chain(key, parent string) []string {
	if key == parent {
		return []string{key}
	}
	seen := map[string]bool{key: true}
	var walk func(from string) []string
	walk = func(from string) []string {
		for next := range c.waits[from] {
			if next == parent {
				return []string{from, next}
			}
			if seen[next] {
				continue
			}
			seen[next] = true
			if rest := walk(next); rest != nil {
				return append([]string{from}, rest...)
			}
		}
		return nil
	}
	return walk(key)
}

func (c *Cache) addWait(from, to string) {
	set, ok := c.waits[from]
	if !ok {
		set = make(map[string]struct{})
		c.waits[from] = set
	}
	set[to] = struct{}{}
}

func (c *Cache) removeWait(from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waits[from], to)
	if len(c.waits[from]) == 0 {
		delete(c.waits, from)
	}
}
