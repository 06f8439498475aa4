// Copyright 2024 The mbufchain Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pgalloc provides page-granular backing storage for buffer
// cells. It plays the role spec.md names "PageAllocator": a collaborator
// that hands out and reclaims fixed-size page buffers, all-or-nothing.
package pgalloc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// PageSize is the host page size in bytes, read once at init. The only
// sanity check is that it is positive; no particular size is asserted.
var PageSize = mustPageSize()

func mustPageSize() int {
	size := unix.Getpagesize()
	if size <= 0 {
		panic(fmt.Sprintf("pgalloc: invalid host page size %d", size))
	}
	return size
}

// ErrExhausted is returned by Allocate when the allocator cannot
// satisfy the full request; spec.md requires that none of the pages be
// retained in that case.
var ErrExhausted = errors.New("pgalloc: allocator exhausted")

// Page is a single fixed-size page of backing storage.
type Page struct {
	// Data is the raw byte region backing this page. It is exactly
	// PageSize bytes. Its contents are uninitialized between Free and
	// the next Allocate that hands it back out.
	Data []byte

	// Ref is an opaque back-pointer recorded by the owning cell and
	// returned unchanged on Free; it lets an Allocator implementation
	// recognize which pool a page came from without the cell needing
	// to know anything about pool internals.
	Ref any
}

// Allocator hands out and reclaims page-sized buffers. Implementations
// must make Allocate atomic: on failure, no pages from that call are
// retained by the caller, and Allocate does not need to be called again
// to "undo" a partial failure because there is no partial success.
type Allocator interface {
	// Allocate returns exactly n pages, or fails and returns none.
	Allocate(ctx context.Context, n int) ([]*Page, error)

	// Free takes ownership of every page in pages and reclaims them in
	// one batched operation.
	Free(pages []*Page)
}

// PooledAllocator is a production Allocator backed by a sync.Pool of
// page-sized slices, narrowed from the teacher's power-of-two chunk
// pool to a single fixed page size, plus a hard cap on pages
// outstanding that models a bounded physical-memory budget.
type PooledAllocator struct {
	pool sync.Pool

	mu        sync.Mutex
	limit     int
	allocated int
}

// NewPooledAllocator returns a PooledAllocator that will not allow more
// than maxPages pages to be outstanding at once. A maxPages of 0 means
// unbounded.
func NewPooledAllocator(maxPages int) *PooledAllocator {
	a := &PooledAllocator{limit: maxPages}
	a.pool.New = func() any {
		return make([]byte, PageSize)
	}
	return a
}

// Allocate implements Allocator.
func (a *PooledAllocator) Allocate(_ context.Context, n int) ([]*Page, error) {
	if n <= 0 {
		return nil, nil
	}

	a.mu.Lock()
	if a.limit > 0 && a.allocated+n > a.limit {
		a.mu.Unlock()
		return nil, ErrExhausted
	}
	a.allocated += n
	a.mu.Unlock()

	pages := make([]*Page, n)
	for i := 0; i < n; i++ {
		pages[i] = &Page{Data: a.pool.Get().([]byte)}
	}
	return pages, nil
}

// Free implements Allocator.
func (a *PooledAllocator) Free(pages []*Page) {
	if len(pages) == 0 {
		return
	}
	for _, p := range pages {
		a.pool.Put(p.Data)
		p.Data = nil
	}
	a.mu.Lock()
	a.allocated -= len(pages)
	a.mu.Unlock()
}

// Outstanding reports the number of pages currently allocated and not
// yet freed. It exists for tests and the observability layer.
func (a *PooledAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated
}
