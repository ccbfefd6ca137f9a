package crawler

import "sync"

// Frontier owns the visited set and the current and next crawl levels.
// Admission to the visited set and the next level happens under one lock so
// concurrent extractors never admit the same URL twice.
type Frontier struct {
	mu      sync.Mutex
	visited map[string]struct{}
	current []string
	next    []string
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{visited: make(map[string]struct{})}
}

// Seed marks rawURL visited and queues it on the current level.
func (f *Frontier) Seed(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[rawURL]; ok {
		return false
	}
	f.visited[rawURL] = struct{}{}
	f.current = append(f.current, rawURL)
	return true
}

// DrainCurrent empties the current level and returns its URLs.
func (f *Frontier) DrainCurrent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.current
	f.current = nil
	return out
}

// Admit records every unseen URL as visited and buffers it for the next
// level. It returns the number admitted.
func (f *Frontier) Admit(urls []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	admitted := 0
	for _, u := range urls {
		if _, ok := f.visited[u]; ok {
			continue
		}
		f.visited[u] = struct{}{}
		f.next = append(f.next, u)
		admitted++
	}
	return admitted
}

// Advance promotes the next level into the current one and returns the new
// current size.
func (f *Frontier) Advance() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = append(f.current, f.next...)
	f.next = nil
	return len(f.current)
}

// Visited reports how many URLs were ever admitted.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Pending reports the sizes of the current and next levels.
func (f *Frontier) Pending() (current, next int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.current), len(f.next)
}
