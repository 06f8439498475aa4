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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/outpost-systems/mbufchain/mbuf"
	"github.com/outpost-systems/mbufchain/metrics"
	"github.com/outpost-systems/mbufchain/pgalloc"
	"github.com/outpost-systems/mbufchain/usercopy"
)

func init() {
	rootCmd.AddCommand(newBenchCmd())
}

func newBenchCmd() *cobra.Command {
	var chains int
	var writesPerChain int
	var writeSize int
	var withMetrics bool

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive N independent chains concurrently and report aggregate throughput",
		Long: `bench runs N chains, each single-threaded internally as spec'd,
with one goroutine per chain coordinated by an errgroup. This is the
one place genuine concurrency is exercised: the chain itself assumes
an external lock and performs no synchronization of its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(chains, writesPerChain, writeSize, withMetrics)
		},
	}
	cmd.Flags().IntVar(&chains, "chains", 8, "number of concurrent chains")
	cmd.Flags().IntVar(&writesPerChain, "writes", 1000, "stream writes issued per chain")
	cmd.Flags().IntVar(&writeSize, "write-size", 256, "bytes per write")
	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "wire a Prometheus observer into every chain and dump counters on exit")
	return cmd
}

func runBench(numChains, writesPerChain, writeSize int, withMetrics bool) error {
	ctx := context.Background()
	group, gctx := errgroup.WithContext(ctx)

	var reg *prometheus.Registry
	var obs mbuf.Observer
	if withMetrics {
		reg = prometheus.NewRegistry()
		obs = metrics.NewObserver(reg)
	}

	payload := make([]byte, writeSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	start := time.Now()
	for i := 0; i < numChains; i++ {
		group.Go(func() error {
			chain := mbuf.New(
				pgalloc.NewPooledAllocator(0),
				usercopy.DirectCopier{},
				mbuf.Options{Observer: obs},
			)
			drain := make([]byte, writeSize)
			for w := 0; w < writesPerChain; w++ {
				if _, status := chain.WriteStream(gctx, payload); status != mbuf.OK && status != mbuf.ShouldWait {
					return fmt.Errorf("write_stream: %s", status)
				}
				chain.Read(gctx, drain, false)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	totalBytes := int64(numChains) * int64(writesPerChain) * int64(writeSize)
	printInfo("moved %d bytes across %d chains in %s (%.1f MB/s)\n",
		totalBytes, numChains, elapsed, float64(totalBytes)/elapsed.Seconds()/1e6)

	if withMetrics {
		if err := dumpMetrics(reg); err != nil {
			return err
		}
	}
	return nil
}

// dumpMetrics gathers reg's families and writes them in Prometheus text
// exposition format to stdout, the same encoding promhttp.Handler would
// serve, without standing up an HTTP listener for a one-shot CLI run.
func dumpMetrics(reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(os.Stdout, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
