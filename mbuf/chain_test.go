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

package mbuf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outpost-systems/mbufchain/pgalloc"
	"github.com/outpost-systems/mbufchain/usercopy"
)

func newTestChain(t *testing.T) *Chain {
	t.Helper()
	return New(pgalloc.NewPooledAllocator(0), usercopy.DirectCopier{}, Options{})
}

// TestStreamFillThenDrainSingleCell is scenario S1.
func TestStreamFillThenDrainSingleCell(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	written, status := c.WriteStream(ctx, []byte("hello"))
	require.Equal(t, OK, status)
	require.Equal(t, 5, written)
	require.Equal(t, 5, c.Size(false))
	require.Equal(t, 1, c.CellCount())

	buf := make([]byte, 5)
	actual, status := c.Read(ctx, buf, false)
	require.Equal(t, OK, status)
	require.Equal(t, 5, actual)
	require.Equal(t, 0, c.Size(false))
	require.Equal(t, 0, c.CellCount())
	require.Equal(t, "hello", string(buf))
}

// TestStreamSpansCells is scenario S2.
func TestStreamSpansCells(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	n := PayloadSize + 10
	pattern := make([]byte, n)
	for i := range pattern {
		pattern[i] = byte(i % 251)
	}

	written, status := c.WriteStream(ctx, pattern)
	require.Equal(t, OK, status)
	require.Equal(t, n, written)
	require.Equal(t, 2, c.CellCount())
	require.Equal(t, uint32(PayloadSize), c.cells.Front().validLen)
	require.Equal(t, uint32(10), c.cells.Back().validLen)

	out := make([]byte, n)
	actual, status := c.Read(ctx, out, false)
	require.Equal(t, OK, status)
	require.Equal(t, n, actual)
	require.True(t, bytes.Equal(pattern, out))
	require.Equal(t, 0, c.CellCount())
}

// TestDatagramBoundaryPreserved is scenario S3.
func TestDatagramBoundaryPreserved(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	_, status := c.WriteDatagram(ctx, []byte("AAA"))
	require.Equal(t, OK, status)
	_, status = c.WriteDatagram(ctx, []byte("BBBBB"))
	require.Equal(t, OK, status)

	require.Equal(t, 3, c.Size(true))

	buf := make([]byte, 2)
	actual, status := c.Read(ctx, buf, true)
	require.Equal(t, OK, status)
	require.Equal(t, 2, actual)
	require.Equal(t, "AA", string(buf[:actual]))

	require.Equal(t, 5, c.Size(true))

	buf2 := make([]byte, 5)
	actual, status = c.Read(ctx, buf2, true)
	require.Equal(t, OK, status)
	require.Equal(t, 5, actual)
	require.Equal(t, "BBBBB", string(buf2[:actual]))
	require.True(t, c.IsEmpty())
}

// TestDatagramTooLarge is scenario S4.
func TestDatagramTooLarge(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	big := make([]byte, Capacity+1)
	written, status := c.WriteDatagram(ctx, big)
	require.Equal(t, OutOfRange, status)
	require.Equal(t, 0, written)
	require.True(t, c.IsEmpty())
	require.Equal(t, 0, c.CellCount())
}

// TestCapacityBackPressure is scenario S5.
func TestCapacityBackPressure(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	filler := make([]byte, Capacity)
	written, status := c.WriteStream(ctx, filler)
	require.Equal(t, OK, status)
	require.Equal(t, Capacity, written)
	require.True(t, c.IsFull())

	before := c.Size(false)
	beforeCells := c.CellCount()

	written, status = c.WriteStream(ctx, []byte{0x42})
	require.Equal(t, ShouldWait, status)
	require.Equal(t, 0, written)
	require.Equal(t, before, c.Size(false))
	require.Equal(t, beforeCells, c.CellCount())
}

// TestUserFaultOnDatagramRollback is scenario S6.
func TestUserFaultOnDatagramRollback(t *testing.T) {
	alloc := pgalloc.NewCountingAllocator(pgalloc.NewPooledAllocator(0))
	copier := usercopy.NewFaultingCopier(usercopy.DirectCopier{})
	copier.FailOnCall = 2 // fail while copying into the second page

	c := New(alloc, copier, Options{})
	ctx := context.Background()

	payload := make([]byte, PayloadSize+1)
	written, status := c.WriteDatagram(ctx, payload)
	require.Equal(t, InvalidArgs, status)
	require.Equal(t, 0, written)
	require.Equal(t, 0, c.Size(false))
	require.Equal(t, 0, alloc.Outstanding())
}

// TestZeroLengthDatagramRejected is property P8.
func TestZeroLengthDatagramRejected(t *testing.T) {
	alloc := pgalloc.NewCountingAllocator(pgalloc.NewPooledAllocator(0))
	c := New(alloc, usercopy.DirectCopier{}, Options{})
	ctx := context.Background()

	written, status := c.WriteDatagram(ctx, nil)
	require.Equal(t, InvalidArgs, status)
	require.Equal(t, 0, written)
	require.Equal(t, 0, alloc.Outstanding())
}

// TestByteConservationStream is property P1.
func TestByteConservationStream(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	var admitted, delivered int
	for i := 0; i < 50; i++ {
		chunk := bytes.Repeat([]byte{byte(i)}, 37)
		w, status := c.WriteStream(ctx, chunk)
		require.Equal(t, OK, status)
		admitted += w

		if i%3 == 0 {
			buf := make([]byte, 20)
			r, status := c.Read(ctx, buf, false)
			require.Equal(t, OK, status)
			delivered += r
		}
	}
	require.Equal(t, admitted-delivered, c.Size(false))
}

// TestFIFOStream is property P2.
func TestFIFOStream(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	written := []byte("the quick brown fox jumps over the lazy dog")
	_, status := c.WriteStream(ctx, written)
	require.Equal(t, OK, status)

	var read []byte
	buf := make([]byte, 7)
	for !c.IsEmpty() {
		n, status := c.Read(ctx, buf, false)
		require.Equal(t, OK, status)
		read = append(read, buf[:n]...)
	}
	require.Equal(t, written, read)
}

// TestPeekIdempotence is property P6.
func TestPeekIdempotence(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	_, status := c.WriteStream(ctx, []byte("0123456789"))
	require.Equal(t, OK, status)

	buf1 := make([]byte, 6)
	a1, status := c.Peek(ctx, buf1, false)
	require.Equal(t, OK, status)

	buf2 := make([]byte, 6)
	a2, status := c.Peek(ctx, buf2, false)
	require.Equal(t, OK, status)

	require.Equal(t, a1, a2)
	require.Equal(t, buf1, buf2)
	require.Equal(t, 10, c.Size(false))

	readBuf := make([]byte, 6)
	ar, status := c.Read(ctx, readBuf, false)
	require.Equal(t, OK, status)
	require.Equal(t, buf1[:a1], readBuf[:ar])

	peekAfter := make([]byte, 4)
	aAfter, status := c.Peek(ctx, peekAfter, false)
	require.Equal(t, OK, status)
	require.Equal(t, "6789", string(peekAfter[:aAfter]))
}

// TestNoCellLeak is property P7.
func TestNoCellLeak(t *testing.T) {
	alloc := pgalloc.NewCountingAllocator(pgalloc.NewPooledAllocator(0))
	c := New(alloc, usercopy.DirectCopier{}, Options{})
	ctx := context.Background()

	n := PayloadSize*3 + 5
	_, status := c.WriteStream(ctx, make([]byte, n))
	require.Equal(t, OK, status)
	require.True(t, alloc.Outstanding() > 0)

	out := make([]byte, n)
	_, status = c.Read(ctx, out, false)
	require.Equal(t, OK, status)

	require.Equal(t, 0, c.CellCount())
	require.Equal(t, 0, alloc.Outstanding())
}

// TestStreamPartialCommitOnFault exercises the documented legacy
// partial-commit behavior from SPEC_FULL.md / spec.md §4.3.
func TestStreamPartialCommitOnFault(t *testing.T) {
	copier := usercopy.NewFaultingCopier(usercopy.DirectCopier{})
	copier.FailOnCall = 2 // first write_stream call succeeds, second faults.

	c := New(pgalloc.NewPooledAllocator(0), copier, Options{})
	ctx := context.Background()

	w1, status := c.WriteStream(ctx, []byte("first-write-ok"))
	require.Equal(t, OK, status)
	require.Equal(t, 14, w1)

	w2, status := c.WriteStream(ctx, []byte("second-write-faults"))
	require.Equal(t, InvalidAccess, status)
	require.Equal(t, 0, w2)

	// The first write's bytes remain committed even though the second
	// call reported a fault: this is the intentional ambiguity.
	require.Equal(t, 14, c.Size(false))
}

// TestModeExclusivityPanics covers the always-on debug check added in
// SPEC_FULL.md for spec.md §9's "mode exclusivity is not enforced"
// design note.
func TestModeExclusivityPanics(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	_, _ = c.WriteStream(ctx, []byte("x"))
	require.Panics(t, func() {
		c.WriteDatagram(ctx, []byte("y"))
	})
}

func TestAccessors(t *testing.T) {
	c := newTestChain(t)
	require.True(t, c.IsEmpty())
	require.False(t, c.IsFull())
	require.Equal(t, Capacity, c.MaxSize())
	require.Equal(t, 0, c.Size(true))
}
