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

package main

import (
	"bufio"
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/outpost-systems/mbufchain/mbuf"
	"github.com/outpost-systems/mbufchain/pgalloc"
	"github.com/outpost-systems/mbufchain/usercopy"
)

func init() {
	rootCmd.AddCommand(newDatagramDemoCmd())
}

func newDatagramDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datagram-demo",
		Short: "Feed stdin lines into a datagram-mode chain, one datagram per line",
		Long: `datagram-demo writes each stdin line as one datagram via
write_datagram, printing size(datagram=true) before and after draining
each one with read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatagramDemo()
		},
	}
	return cmd
}

func runDatagramDemo() error {
	chain := mbuf.New(
		pgalloc.NewPooledAllocator(0),
		usercopy.DirectCopier{},
		mbuf.Options{Logger: loggerForVerbosity()},
	)

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := []byte(scanner.Text())
		written, status := chain.WriteDatagram(ctx, line)
		if status != mbuf.OK {
			printError("write_datagram: %s\n", status)
			continue
		}
		printInfo("queued datagram of %d bytes, head datagram size is %d\n", written, chain.Size(true))

		out := make([]byte, written)
		actual, status := chain.Read(ctx, out, true)
		if status != mbuf.OK {
			printError("read: %s\n", status)
			continue
		}
		printInfo("drained datagram: %s\n", out[:actual])
		printInfo("head datagram size is now %d\n", chain.Size(true))
	}
	return scanner.Err()
}
