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

package usercopy

import (
	"context"
	"sync"
)

// FaultingCopier wraps a Copier and fails deterministically on a
// configured call, or once the running byte offset of successful
// copies reaches a configured threshold. It is used to exercise
// spec.md's partial-commit-on-fault (stream) and atomic-rollback
// (datagram) paths without a real faulting address space.
type FaultingCopier struct {
	Copier

	// FailOnCall, if non-zero, is the 1-indexed call number (across
	// both CopyIn and CopyOut) that should fail; every call at or past
	// that index fails.
	FailOnCall int

	// FailAfterBytes, if non-zero, causes the first call whose
	// cumulative copied-byte count would exceed this threshold to fail
	// instead of succeeding.
	FailAfterBytes int

	mu       sync.Mutex
	calls    int
	copied   int
}

// NewFaultingCopier wraps next with no faults configured; set
// FailOnCall and/or FailAfterBytes before use.
func NewFaultingCopier(next Copier) *FaultingCopier {
	return &FaultingCopier{Copier: next}
}

func (f *FaultingCopier) shouldFail(n int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.FailOnCall != 0 && f.calls >= f.FailOnCall {
		return true
	}
	if f.FailAfterBytes != 0 && f.copied+n > f.FailAfterBytes {
		return true
	}
	f.copied += n
	return false
}

// CopyIn implements Copier.
func (f *FaultingCopier) CopyIn(ctx context.Context, dst []byte, src []byte, off int) (int, error) {
	if f.shouldFail(len(dst)) {
		return 0, ErrInvalidAccess
	}
	return f.Copier.CopyIn(ctx, dst, src, off)
}

// CopyOut implements Copier.
func (f *FaultingCopier) CopyOut(ctx context.Context, dst []byte, off int, src []byte) (int, error) {
	if f.shouldFail(len(src)) {
		return 0, ErrInvalidAccess
	}
	return f.Copier.CopyOut(ctx, dst, off, src)
}

var _ Copier = (*FaultingCopier)(nil)
