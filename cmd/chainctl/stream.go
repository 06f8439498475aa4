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
	"go.uber.org/zap"

	"github.com/outpost-systems/mbufchain/logging"
	"github.com/outpost-systems/mbufchain/mbuf"
	"github.com/outpost-systems/mbufchain/pgalloc"
	"github.com/outpost-systems/mbufchain/usercopy"
)

func init() {
	rootCmd.AddCommand(newStreamDemoCmd())
}

func newStreamDemoCmd() *cobra.Command {
	var maxPages int
	cmd := &cobra.Command{
		Use:   "stream-demo",
		Short: "Feed stdin lines into a stream-mode chain and echo them back",
		Long: `stream-demo reads lines from stdin, writes each one into a
stream-mode chain with write_stream, then drains the chain with read
and prints what came back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStreamDemo(maxPages)
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "cap on pages outstanding (0 = unbounded)")
	return cmd
}

func runStreamDemo(maxPages int) error {
	logger := loggerForVerbosity()
	chain := mbuf.New(
		pgalloc.NewPooledAllocator(maxPages),
		usercopy.DirectCopier{},
		mbuf.Options{Logger: logger},
	)

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	var totalWritten int
	for scanner.Scan() {
		line := append([]byte(scanner.Text()), '\n')
		written, status := chain.WriteStream(ctx, line)
		totalWritten += written
		if status != mbuf.OK {
			printError("write_stream: %s (wrote %d of %d bytes)\n", status, written, len(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	printInfo("wrote %d bytes, chain size is now %d\n", totalWritten, chain.Size(false))

	out := make([]byte, totalWritten)
	actual, status := chain.Read(ctx, out, false)
	if status != mbuf.OK {
		printError("read: %s (read %d of %d bytes)\n", status, actual, totalWritten)
	}
	printInfo("%s", out[:actual])
	return nil
}

func loggerForVerbosity() *zap.SugaredLogger {
	if verbose {
		return logging.NewDevelopment()
	}
	return logging.NewProduction()
}
