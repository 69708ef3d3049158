package mip

import "sync"

// RowPool recycles downsampled row buffers.
//
// Buffers are grouped by length. Every mip level produces rows of a single
// length, so a chain never needs more than a couple of buffers per level.
//
// Thread safety: All methods are safe for concurrent use.
type RowPool struct {
	mu      sync.Mutex
	buckets map[int][][]byte
	maxSize int // max buffers per bucket
}

// NewPool creates a row pool retaining at most maxPerBucket buffers of each
// length. A maxPerBucket of 0 means unlimited.
func NewPool(maxPerBucket int) *RowPool {
	return &RowPool{
		buckets: make(map[int][][]byte),
		maxSize: maxPerBucket,
	}
}

// Get returns a buffer of exactly n bytes. Reused buffers are not cleared;
// callers overwrite every byte.
func (p *RowPool) Get(n int) []byte {
	p.mu.Lock()
	bucket := p.buckets[n]
	if len(bucket) > 0 {
		buf := bucket[len(bucket)-1]
		p.buckets[n] = bucket[:len(bucket)-1]
		p.mu.Unlock()
		return buf
	}
	p.mu.Unlock()

	return make([]byte, n)
}

// Put returns buf to the pool. Nil buffers and buffers beyond the bucket
// capacity are dropped.
func (p *RowPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	n := len(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.buckets[n]
	if p.maxSize > 0 && len(bucket) >= p.maxSize {
		return
	}
	p.buckets[n] = append(bucket, buf)
}

// Len returns the number of idle buffers of length n.
func (p *RowPool) Len(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buckets[n])
}
