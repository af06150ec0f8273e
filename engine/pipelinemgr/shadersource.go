package pipelinemgr

import "sync"

// Fetcher loads WGSL source for a shader ref. A filter's shader_ref is
// typically a file path or embedded asset key; the engine is agnostic to
// which — it only needs source bytes back.
type Fetcher func(ref string) (string, error)

// sourceCache fetches each ref's source exactly once and serves every
// subsequent request (by this or another pass sharing the ref) from
// memory, per §4.5 step 1 "fetched once per URL/ref; results cached by
// ref".
type sourceCache struct {
	mu     sync.Mutex
	bySource map[string]string
}

func newSourceCache() *sourceCache {
	return &sourceCache{bySource: make(map[string]string)}
}

func (c *sourceCache) get(ref string, fetch Fetcher) (string, error) {
	c.mu.Lock()
	if src, ok := c.bySource[ref]; ok {
		c.mu.Unlock()
		return src, nil
	}
	c.mu.Unlock()

	src, err := fetch(ref)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.bySource[ref] = src
	c.mu.Unlock()
	return src, nil
}

// prefetch loads every distinct ref in refs concurrently via the supplied
// worker pool, populating the cache ahead of the per-pass build loop so
// step 1 of each pass's build is a cache hit.
func (c *sourceCache) prefetch(refs []string, fetch Fetcher, submit func(func())) {
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		c.mu.Lock()
		_, cached := c.bySource[ref]
		c.mu.Unlock()
		if cached {
			continue
		}
		r := ref
		submit(func() {
			_, _ = c.get(r, fetch)
		})
	}
}
