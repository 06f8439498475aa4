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

// Package usercopy provides the copy primitive spec.md names "UserCopy":
// moving bytes between a kernel buffer and a possibly faulting user
// address space, all-or-nothing per call.
package usercopy

import (
	"context"
	"errors"
)

// ErrInvalidAccess is returned when a copy call cannot be completed
// because the requested range is invalid. A real kernel implementation
// would return this when the user address range is unmapped or
// unreadable/unwritable; this in-process stand-in returns it when the
// requested range falls outside the given buffer's bounds.
var ErrInvalidAccess = errors.New("usercopy: invalid access")

// Copier moves bytes between a "user" buffer and a kernel buffer. Every
// method is all-or-nothing: on error, the destination's contents for
// that call are undefined, but no other state is touched. ctx is
// threaded through the way it is on gvisor's usermem.IO, since a real
// implementation may need to wait for a page fault to resolve.
type Copier interface {
	// CopyIn copies n bytes from src[off:off+n] into dst[:n]. It
	// returns the number of bytes actually copied, which is always
	// either n or 0 on error (no partial success within one call).
	CopyIn(ctx context.Context, dst []byte, src []byte, off int) (int, error)

	// CopyOut copies n bytes from src[:n] into dst[off:off+n].
	CopyOut(ctx context.Context, dst []byte, off int, src []byte) (int, error)
}

// DirectCopier is a production Copier that copies between two
// in-process byte slices. It is the honest stand-in for a syscall-level
// user/kernel copy in a library that has no actual user address space
// to fault against; it still enforces the same all-or-nothing, bounds
// checked contract.
type DirectCopier struct{}

// CopyIn implements Copier.
func (DirectCopier) CopyIn(ctx context.Context, dst []byte, src []byte, off int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := len(dst)
	if off < 0 || n < 0 || off+n > len(src) {
		return 0, ErrInvalidAccess
	}
	copy(dst, src[off:off+n])
	return n, nil
}

// CopyOut implements Copier.
func (DirectCopier) CopyOut(ctx context.Context, dst []byte, off int, src []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := len(src)
	if off < 0 || n < 0 || off+n > len(dst) {
		return 0, ErrInvalidAccess
	}
	copy(dst[off:off+n], src)
	return n, nil
}

var _ Copier = DirectCopier{}
