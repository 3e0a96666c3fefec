// Package bloom provides a probabilistic pre-filter for URL membership.
package bloom

import "github.com/bits-and-blooms/bloom/v3"

// Filter is a scalable Bloom filter for the URLs of one crawl run.
// A miss proves a URL is new; a hit must be confirmed against an exact
// set. When the newest layer is full a larger one is stacked on top with
// a tighter error rate, so large sites do not drive every lookup into a
// false positive. Filter is not safe for concurrent use.
type Filter struct {
	layers []*bloom.BloomFilter
	// room is the number of additions left in the newest layer.
	room     uint
	capacity uint
	fpRate   float64
}

// NewFilter creates a filter whose first layer holds n URLs at the given
// false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	if n == 0 {
		n = 1
	}
	f := &Filter{capacity: n, fpRate: fpRate}
	f.grow()
	return f
}

func (f *Filter) grow() {
	if len(f.layers) > 0 {
		f.capacity *= 2
		f.fpRate /= 2
	}
	f.layers = append(f.layers, bloom.NewWithEstimates(f.capacity, f.fpRate))
	f.room = f.capacity
}

// Add records url. Adding a URL the filter already reports is a no-op.
func (f *Filter) Add(url string) {
	if f.Test(url) {
		return
	}
	f.insert(url)
}

func (f *Filter) insert(url string) {
	if f.room == 0 {
		f.grow()
	}
	f.layers[len(f.layers)-1].AddString(url)
	f.room--
}

// Test reports whether url might have been added.
// False positives are possible; false negatives are not.
func (f *Filter) Test(url string) bool {
	for _, l := range f.layers {
		if l.TestString(url) {
			return true
		}
	}
	return false
}

// TestAndAdd adds url and reports whether it might have been present.
func (f *Filter) TestAndAdd(url string) bool {
	if f.Test(url) {
		return true
	}
	f.insert(url)
	return false
}

// EstimatedCount returns the approximate number of URLs in the filter.
func (f *Filter) EstimatedCount() uint {
	var n uint
	for _, l := range f.layers {
		n += uint(l.ApproximatedSize())
	}
	return n
}

// Layers returns the number of stacked filters.
func (f *Filter) Layers() int {
	return len(f.layers)
}
