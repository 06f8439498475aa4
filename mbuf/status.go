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

import "github.com/outpost-systems/mbufchain/usercopy"

// Status is the result of a chain operation. It is a distinct type
// rather than the built-in error interface so that callers cannot lose
// track of which specific condition occurred by comparing against the
// generic error interface. The zero value of Status is OK.
type Status struct {
	name string
}

// isError reports whether s represents anything other than success.
func (s Status) isError() bool {
	return s != OK
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if s.name == "" {
		return "OK"
	}
	return s.name
}

// Sentinel statuses. These mirror spec.md's status taxonomy exactly:
// admission denial, resource exhaustion, and user-memory fault.
var (
	// OK indicates the operation succeeded as reported.
	OK = Status{}

	// ShouldWait indicates a bounded resource is exhausted: either the
	// chain has no spare capacity, or the page allocator is empty. The
	// caller should retry later.
	ShouldWait = Status{name: "SHOULD_WAIT"}

	// OutOfRange indicates a single datagram write larger than
	// CAPACITY was requested.
	OutOfRange = Status{name: "OUT_OF_RANGE"}

	// InvalidArgs indicates a zero-length datagram write, or a
	// user-copy fault that occurred during a datagram write (which is
	// rolled back atomically and therefore reported as a plain
	// argument error rather than as InvalidAccess).
	InvalidArgs = Status{name: "INVALID_ARGS"}

	// InvalidAccess is the pass-through of a UserCopy access fault
	// encountered during a stream write, a read, or a peek.
	InvalidAccess = Status{name: "INVALID_ACCESS"}
)

// statusFromCopyErr translates a usercopy.Copier fault into the
// InvalidAccess status. It panics if err is nil, since callers are
// expected to check the error first.
func statusFromCopyErr(err error) Status {
	if err == nil {
		panic("mbuf: statusFromCopyErr called with nil error")
	}
	if err == usercopy.ErrInvalidAccess {
		return InvalidAccess
	}
	// Any other error from the copier is still reported as an access
	// fault at this layer; the chain has no narrower vocabulary for it.
	return InvalidAccess
}
