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

package pgalloc

import (
	"context"
	"sync"
)

// FaultingAllocator wraps an Allocator and fails deterministically
// after a configured number of successful Allocate calls, regardless of
// how many pages each call requests. It exists so tests can exercise
// spec.md's datagram-rollback and stream-partial-fill paths without
// relying on real memory pressure.
type FaultingAllocator struct {
	Allocator

	mu          sync.Mutex
	callsUntil  int
	callsIssued int
}

// NewFaultingAllocator wraps next so that the (callsUntil+1)'th call to
// Allocate, and every call after it, fails with ErrExhausted. A
// callsUntil of 0 fails immediately.
func NewFaultingAllocator(next Allocator, callsUntil int) *FaultingAllocator {
	return &FaultingAllocator{Allocator: next, callsUntil: callsUntil}
}

// Allocate implements Allocator.
func (f *FaultingAllocator) Allocate(ctx context.Context, n int) ([]*Page, error) {
	f.mu.Lock()
	issued := f.callsIssued
	f.callsIssued++
	f.mu.Unlock()

	if issued >= f.callsUntil {
		return nil, ErrExhausted
	}
	return f.Allocator.Allocate(ctx, n)
}

// CountingAllocator wraps an Allocator and tracks how many pages have
// been handed out and not yet returned, for use in "no cell leak"
// property tests (spec.md P7).
type CountingAllocator struct {
	Allocator

	mu  sync.Mutex
	out int
}

// NewCountingAllocator wraps next with outstanding-page bookkeeping.
func NewCountingAllocator(next Allocator) *CountingAllocator {
	return &CountingAllocator{Allocator: next}
}

// Allocate implements Allocator.
func (c *CountingAllocator) Allocate(ctx context.Context, n int) ([]*Page, error) {
	pages, err := c.Allocator.Allocate(ctx, n)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.out += len(pages)
	c.mu.Unlock()
	return pages, nil
}

// Free implements Allocator.
func (c *CountingAllocator) Free(pages []*Page) {
	c.Allocator.Free(pages)
	c.mu.Lock()
	c.out -= len(pages)
	c.mu.Unlock()
}

// Outstanding reports the number of pages allocated and not yet freed.
func (c *CountingAllocator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out
}
