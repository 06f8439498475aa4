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
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/outpost-systems/mbufchain/pgalloc"
	"github.com/outpost-systems/mbufchain/usercopy"
)

// Capacity is the upper bound on a chain's Size: 128 payload-sized
// cells. It is a var rather than a const because PayloadSize is only
// known once the host page size has been read at init.
var Capacity = 128 * PayloadSize

// mode records which of the two mutually exclusive framing disciplines
// a chain has committed to. Mixing is undefined by spec; this package
// enforces it with a panic rather than leaving it silently undefined,
// per the design note that a re-implementation may add this check.
type mode int

const (
	modeUnset mode = iota
	modeStream
	modeDatagram
)

// Chain is a FIFO sequence of page-sized cells backing the data queue
// of one stream or datagram IPC endpoint. A Chain has no internal
// synchronization: every exported method presumes the caller holds the
// endpoint's own exclusive lock, matching spec.md's concurrency model.
//
// The zero value is not usable; construct with New.
type Chain struct {
	id     uuid.UUID
	alloc  pgalloc.Allocator
	copier usercopy.Copier
	obs    Observer
	log    *zap.SugaredLogger

	cells   cellList
	readOff uint32
	size    int
	mode    mode
}

// Options configures a Chain. The zero value selects a no-op Observer
// and a no-op logger, so a Chain can be constructed with nothing but an
// Allocator and a Copier.
type Options struct {
	Observer Observer
	Logger   *zap.SugaredLogger
}

// New constructs an empty Chain backed by alloc and copier.
func New(alloc pgalloc.Allocator, copier usercopy.Copier, opts Options) *Chain {
	if opts.Observer == nil {
		opts.Observer = NoopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Chain{
		id:     uuid.New(),
		alloc:  alloc,
		copier: copier,
		obs:    opts.Observer,
		log:    opts.Logger,
	}
}

// ID returns the chain's log-correlation identifier. It carries no
// semantic weight: it is never compared for equality by this package
// and never appears in any wire format.
func (c *Chain) ID() uuid.UUID {
	return c.id
}

// Close returns every remaining cell to the allocator. A Chain must
// not be used after Close.
func (c *Chain) Close() {
	if c.cells.Empty() {
		return
	}
	freeCellsList(c.alloc, c.obs, &c.cells)
	c.size = 0
	c.readOff = 0
}

// MaxSize returns the capacity shared by every chain.
func (c *Chain) MaxSize() int {
	return Capacity
}

// CellCount returns the number of cells currently linked into the
// chain. It exists for tests that assert on the physical shape of the
// chain (e.g. that a drained chain holds zero cells) and carries no
// part of the chain's public contract.
func (c *Chain) CellCount() int {
	n := 0
	for cl := c.cells.Front(); cl != nil; cl = cl.next {
		n++
	}
	return n
}

// IsEmpty reports whether the chain holds no unread bytes.
func (c *Chain) IsEmpty() bool {
	return c.size == 0
}

// IsFull reports whether the chain is at or above capacity.
func (c *Chain) IsFull() bool {
	return c.size >= Capacity
}

// Size returns the number of unread bytes in the chain. When datagram
// is true and the chain is non-empty, it returns only the length of
// the first (oldest) datagram; a stream-mode chain always reports 0
// for a datagram-mode query, per invariant I3.
func (c *Chain) Size(datagram bool) int {
	if datagram {
		if head := c.cells.Front(); head != nil {
			return int(head.frameLen)
		}
		return 0
	}
	return c.size
}

func (c *Chain) checkMode(m mode) {
	if c.mode == modeUnset {
		c.mode = m
		return
	}
	if c.mode != m {
		panic(fmt.Sprintf("mbuf: chain %s used in both stream and datagram mode", c.id))
	}
}

// WriteStream appends up to len(src) bytes of unframed stream data.
// written may be less than len(src) if the chain's remaining capacity
// was smaller, or if a copy fault occurred partway through.
//
// On a copy fault, bytes already copied into the chain before the
// fault remain committed: this is the documented legacy partial-commit
// behavior described in SPEC_FULL.md and must not be "fixed" to look
// atomic, since callers above this layer depend on the exact signaling.
func (c *Chain) WriteStream(ctx context.Context, src []byte) (written int, status Status) {
	c.checkMode(modeStream)

	length := len(src)
	if remaining := Capacity - c.size; length > remaining {
		length = remaining
	}
	if length == 0 {
		c.log.Debugw("stream write denied, no capacity", "chain", c.id)
		c.obs.WriteDenied(ShouldWait)
		return 0, ShouldWait
	}

	pos := 0
	writeInto := func(cl *cell) Status {
		copyLen := minInt(int(cl.rem()), length-pos)
		n, err := c.copier.CopyIn(ctx, cl.data()[cl.validLen:cl.validLen+uint32(copyLen)], src, pos)
		if err != nil {
			return statusFromCopyErr(err)
		}
		pos += n
		cl.validLen += uint32(n)
		c.size += n
		return OK
	}

	if tail := c.cells.Back(); tail != nil && tail.rem() > 0 {
		if st := writeInto(tail); st.isError() {
			c.obs.BytesAdmitted(pos)
			c.log.Debugw("stream write fault filling tail cell", "chain", c.id, "written", pos)
			return pos, st
		}
	}

	if pos != length {
		need := ceilDiv(length-pos, PayloadSize)
		if pages, err := c.alloc.Allocate(ctx, need); err == nil {
			newCells := make([]*cell, len(pages))
			for i, pg := range pages {
				newCells[i] = newCell(pg, c.obs)
			}
			for i, cl := range newCells {
				if st := writeInto(cl); st.isError() {
					freeCells(c.alloc, c.obs, newCells[i:])
					c.obs.BytesAdmitted(pos)
					c.log.Debugw("stream write fault filling new cell", "chain", c.id, "written", pos)
					return pos, st
				}
				c.cells.PushBack(cl)
			}
		} else if pos > 0 {
			c.log.Debugw("stream write allocator exhausted after filling tail cell", "chain", c.id, "pages", need, "written", pos)
		}
		// If allocation itself failed, the teacher's source leaves pos
		// exactly where the tail fill left it and falls through to the
		// same written==0-implies-SHOULD_WAIT check below; this is not
		// a distinct error path.
	}

	c.obs.BytesAdmitted(pos)
	if pos == 0 {
		c.log.Debugw("stream write denied, allocator exhausted", "chain", c.id)
		c.obs.WriteDenied(ShouldWait)
		return 0, ShouldWait
	}
	return pos, OK
}

// WriteDatagram appends exactly one datagram of len(src) bytes,
// atomically: on any non-OK status, the chain is unmodified.
func (c *Chain) WriteDatagram(ctx context.Context, src []byte) (written int, status Status) {
	c.checkMode(modeDatagram)

	length := len(src)
	if length == 0 {
		c.log.Debugw("datagram write denied, zero length", "chain", c.id)
		c.obs.WriteDenied(InvalidArgs)
		return 0, InvalidArgs
	}
	if length > Capacity {
		c.log.Debugw("datagram write denied, exceeds capacity", "chain", c.id, "len", length)
		c.obs.WriteDenied(OutOfRange)
		return 0, OutOfRange
	}
	if length+c.size > Capacity {
		c.log.Debugw("datagram write denied, insufficient capacity", "chain", c.id, "len", length, "size", c.size)
		c.obs.WriteDenied(ShouldWait)
		return 0, ShouldWait
	}

	need := ceilDiv(length, PayloadSize)
	pages, err := c.alloc.Allocate(ctx, need)
	if err != nil {
		c.log.Debugw("datagram write denied, allocator exhausted", "chain", c.id, "pages", need)
		c.obs.WriteDenied(ShouldWait)
		return 0, ShouldWait
	}

	cells := make([]*cell, len(pages))
	for i, pg := range pages {
		cells[i] = newCell(pg, c.obs)
	}

	pos := 0
	for _, cl := range cells {
		copyLen := minInt(PayloadSize, length-pos)
		n, err := c.copier.CopyIn(ctx, cl.data()[:copyLen], src, pos)
		if err != nil {
			freeCells(c.alloc, c.obs, cells)
			c.obs.WriteDenied(InvalidArgs)
			c.log.Debugw("datagram write fault, rolled back", "chain", c.id, "len", length)
			return 0, InvalidArgs
		}
		cl.validLen = uint32(n)
		pos += n
	}

	cells[0].frameLen = uint32(length)
	for _, cl := range cells {
		c.cells.PushBack(cl)
	}
	c.size += length
	c.obs.BytesAdmitted(length)
	return length, OK
}

// Read copies up to len(dst) bytes out of the chain and consumes them.
// When datagram is true, the read is clamped to the oldest datagram's
// length and any unread suffix of that datagram is discarded.
func (c *Chain) Read(ctx context.Context, dst []byte, datagram bool) (actual int, status Status) {
	return c.readHelper(ctx, dst, datagram, true)
}

// Peek behaves like Read but never mutates the chain, even when a copy
// fault occurs partway through.
func (c *Chain) Peek(ctx context.Context, dst []byte, datagram bool) (actual int, status Status) {
	return c.readHelper(ctx, dst, datagram, false)
}

// readHelper implements both Read (consume=true) and Peek
// (consume=false) with one traversal, mirroring the teacher's
// const-templated ReadHelper.
func (c *Chain) readHelper(ctx context.Context, dst []byte, datagram bool, consume bool) (int, Status) {
	if c.size == 0 {
		return 0, OK
	}

	length := len(dst)
	if datagram {
		if fl := int(c.cells.Front().frameLen); length > fl {
			length = fl
		}
	}

	pos := 0
	readOff := c.readOff
	cur := c.cells.Front()
	var freeList cellList
	status := OK

	for pos < length && cur != nil && status == OK {
		copyLen := minInt(int(cur.validLen)-int(readOff), length-pos)
		n, err := c.copier.CopyOut(ctx, dst, pos, cur.data()[readOff:readOff+uint32(copyLen)])
		copyOK := err == nil
		if copyOK {
			pos += n
		} else {
			status = statusFromCopyErr(err)
			c.log.Debugw("read fault copying out of cell", "chain", c.id, "consume", consume, "delivered", pos)
		}

		if !consume {
			readOff = 0
			cur = cur.next
			continue
		}

		if copyOK {
			readOff += uint32(n)
			c.size -= n
		}

		if readOff == cur.validLen || datagram {
			if datagram {
				c.size -= int(cur.validLen - readOff)
			}
			next := cur.next
			c.cells.Remove(cur)
			freeList.PushBack(cur)
			cur = next
			readOff = 0
		}
	}

	if consume && datagram {
		for !c.cells.Empty() && c.cells.Front().frameLen == 0 {
			drained := c.cells.PopFront()
			c.size -= int(drained.validLen - readOff)
			freeList.PushBack(drained)
			readOff = 0
		}
	}

	if consume {
		c.readOff = readOff
		c.obs.BytesDelivered(pos)
		if !freeList.Empty() {
			freeCellsList(c.alloc, c.obs, &freeList)
		}
	}

	return pos, status
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// freeCells destroys each cell in cells and returns their backing pages
// to alloc in one batched call.
func freeCells(alloc pgalloc.Allocator, obs Observer, cells []*cell) {
	if len(cells) == 0 {
		return
	}
	pages := make([]*pgalloc.Page, len(cells))
	for i, cl := range cells {
		pages[i] = cl.page
		cl.destroy(obs)
	}
	alloc.Free(pages)
}

// freeCellsList is freeCells for a cellList instead of a slice.
func freeCellsList(alloc pgalloc.Allocator, obs Observer, list *cellList) {
	var pages []*pgalloc.Page
	for cl := list.Front(); cl != nil; cl = list.Front() {
		list.Remove(cl)
		pages = append(pages, cl.page)
		cl.destroy(obs)
	}
	alloc.Free(pages)
}
