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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectCopierCopyIn(t *testing.T) {
	ctx := context.Background()
	src := []byte("hello world")
	dst := make([]byte, 5)

	n, err := DirectCopier{}.CopyIn(ctx, dst, src, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(dst))
}

func TestDirectCopierCopyOut(t *testing.T) {
	ctx := context.Background()
	dst := make([]byte, 11)

	n, err := DirectCopier{}.CopyOut(ctx, dst, 0, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	n, err = DirectCopier{}.CopyOut(ctx, dst, 5, []byte(" world"))
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, "hello world", string(dst))
}

func TestDirectCopierOutOfBounds(t *testing.T) {
	ctx := context.Background()
	src := []byte("short")
	dst := make([]byte, 10)

	_, err := DirectCopier{}.CopyIn(ctx, dst, src, 0)
	require.ErrorIs(t, err, ErrInvalidAccess)
}

func TestDirectCopierRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DirectCopier{}.CopyIn(ctx, make([]byte, 4), make([]byte, 4), 0)
	require.Error(t, err)
	_, err = DirectCopier{}.CopyOut(ctx, make([]byte, 4), 0, make([]byte, 4))
	require.Error(t, err)
}

func TestFaultingCopierFailsOnConfiguredCall(t *testing.T) {
	f := NewFaultingCopier(DirectCopier{})
	f.FailOnCall = 2
	ctx := context.Background()
	buf := make([]byte, 4)
	src := []byte("abcd")

	_, err := f.CopyIn(ctx, buf, src, 0)
	require.NoError(t, err)

	_, err = f.CopyIn(ctx, buf, src, 0)
	require.ErrorIs(t, err, ErrInvalidAccess)
}

func TestFaultingCopierFailsAfterByteThreshold(t *testing.T) {
	f := NewFaultingCopier(DirectCopier{})
	f.FailAfterBytes = 4
	ctx := context.Background()
	src := []byte("abcdefgh")

	_, err := f.CopyIn(ctx, make([]byte, 4), src, 0)
	require.NoError(t, err)

	_, err = f.CopyIn(ctx, make([]byte, 4), src, 4)
	require.ErrorIs(t, err, ErrInvalidAccess)
}
