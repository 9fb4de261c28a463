package reviews

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// Pool holds the loaded reviews and hands out random picks.
type Pool struct {
	mu      sync.RWMutex
	reviews []string
	rnd     *rand.Rand
}

// NewPool creates a pool over a copy of the provided reviews.
func NewPool(reviews []string) *Pool {
	p := &Pool{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
	p.Replace(reviews)
	return p
}

// Replace swaps the pool contents.
func (p *Pool) Replace(reviews []string) {
	cp := make([]string, len(reviews))
	copy(cp, reviews)
	p.mu.Lock()
	p.reviews = cp
	p.mu.Unlock()
}

// Len returns the number of loaded reviews.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.reviews)
}

// Random picks a review uniformly.
func (p *Pool) Random() (string, error) {
	if p == nil {
		return "", ErrNoReviews
	}
	// rand.Rand is not goroutine safe, so the write lock guards it too.
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reviews) == 0 {
		return "", ErrNoReviews
	}
	return p.reviews[p.rnd.Intn(len(p.reviews))], nil
}

// At returns the review at index i.
func (p *Pool) At(i int) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i < 0 || i >= len(p.reviews) {
		return "", errors.New("review index out of range")
	}
	return p.reviews[i], nil
}

// Page returns a window of reviews. A non-positive limit returns everything from offset.
func (p *Pool) Page(offset, limit int) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(p.reviews) {
		return []string{}
	}
	end := len(p.reviews)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]string, end-offset)
	copy(out, p.reviews[offset:end])
	return out
}
