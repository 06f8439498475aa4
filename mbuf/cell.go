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

// Package mbuf implements a chained, page-granular buffer used to back
// the data queues of stream and datagram IPC endpoints.
package mbuf

import (
	"github.com/outpost-systems/mbufchain/pgalloc"
)

// PageSize is the size, in bytes, of a single cell's backing page. It is
// fixed at init time by pgalloc and does not change at runtime.
var PageSize = pgalloc.PageSize

// headerSize accounts for the two 8-byte linkage words (next/prev),
// two 4-byte length fields (validLen, frameLen), and the page_ref
// back-pointer, matching the header/payload split described for MBuf:
// two 8-byte linkage words, two 4-byte lengths, one pointer.
const headerSize = 8 + 8 + 4 + 4 + 8

// PayloadSize is the number of payload bytes available in a single cell:
// PageSize - headerSize.
var PayloadSize = PageSize - headerSize

func init() {
	if PayloadSize <= 0 {
		panic("mbuf: page size too small to hold a cell header")
	}
}

// cell is one page-sized link in a buffer chain. Its header and payload
// are sized so that the backing page is fully accounted for; the payload
// itself is supplied by the owning page (see pgalloc.Page), not embedded
// in this struct, since Go cannot size-assert a struct against a runtime
// page size the way a static_assert can.
//
// The data region is never zeroed by this type: it is covered by the
// subsequent user copy before anything reads from it, and reads never
// expose bytes past validLen.
type cell struct {
	cellEntry

	// page is the backing store for this cell's payload. page.Ref is the
	// page_ref back-pointer returned to pgalloc on free.
	page *pgalloc.Page

	// validLen is the number of payload bytes populated in page.Data.
	validLen uint32

	// frameLen is non-zero only for the head cell of a datagram; it
	// records that datagram's total length across all of its cells.
	// Always zero in stream mode and for every non-head cell.
	frameLen uint32
}

// newCell constructs a cell backed by page and records the allocation
// with obs. The payload region is left exactly as pgalloc returned it.
func newCell(page *pgalloc.Page, obs Observer) *cell {
	obs.CellAllocated()
	return &cell{page: page}
}

// destroy reverses the accounting done by newCell. It does not touch
// page: ownership of the page is returned to the caller, who is
// responsible for handing it back to the allocator.
func (c *cell) destroy(obs Observer) {
	obs.CellFreed()
}

// rem reports the number of free payload bytes remaining in c.
func (c *cell) rem() uint32 {
	return uint32(PayloadSize) - c.validLen
}

// data returns the full payload slice backing c.
func (c *cell) data() []byte {
	return c.page.Data
}
