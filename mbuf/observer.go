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

// Observer receives accounting events from a chain and its cells. It
// plays the role of the teacher's KCOUNTER: a side channel for
// observability that never affects chain semantics. Implementations
// must be safe to call under the caller's endpoint lock; they must not
// block or re-enter the chain.
type Observer interface {
	// CellAllocated is called once per cell constructed.
	CellAllocated()

	// CellFreed is called once per cell destroyed.
	CellFreed()

	// BytesAdmitted is called with the number of bytes newly committed
	// to a chain by a write.
	BytesAdmitted(n int)

	// BytesDelivered is called with the number of bytes newly removed
	// from a chain by a read.
	BytesDelivered(n int)

	// WriteDenied is called when an admission check rejects a write
	// before any state changes, with the status that was returned.
	WriteDenied(status Status)
}

// NoopObserver implements Observer with no-ops. It is the default
// Observer for a chain constructed without one, so importing this
// package never requires wiring a metrics backend.
type NoopObserver struct{}

func (NoopObserver) CellAllocated()          {}
func (NoopObserver) CellFreed()              {}
func (NoopObserver) BytesAdmitted(int)       {}
func (NoopObserver) BytesDelivered(int)      {}
func (NoopObserver) WriteDenied(Status)      {}

var _ Observer = NoopObserver{}
