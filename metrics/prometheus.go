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

// Package metrics provides a Prometheus-backed implementation of
// mbuf.Observer, the role the teacher's KCOUNTER/StatCounter play for
// the chain's per-cell and per-byte accounting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/outpost-systems/mbufchain/mbuf"
)

// Observer implements mbuf.Observer by publishing to a Prometheus
// registry, grounded on the retrieval pack's own
// promauto.NewCounterVec/NewGauge usage for service-level metrics.
type Observer struct {
	cellsInUse       prometheus.Gauge
	bytesInUse       prometheus.Gauge
	bytesAdmitted    prometheus.Counter
	bytesDelivered   prometheus.Counter
	writesDenied     *prometheus.CounterVec
}

// NewObserver registers a chain-accounting Observer against reg. If reg
// is nil, the default Prometheus registry is used.
func NewObserver(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Observer{
		cellsInUse: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mbufchain_cells_in_use",
			Help: "Number of buffer cells currently allocated across all chains.",
		}),
		bytesInUse: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mbufchain_bytes_in_use",
			Help: "Number of payload bytes currently admitted and not yet delivered.",
		}),
		bytesAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "mbufchain_bytes_admitted_total",
			Help: "Total bytes successfully written into a chain.",
		}),
		bytesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "mbufchain_bytes_delivered_total",
			Help: "Total bytes successfully read out of a chain.",
		}),
		writesDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mbufchain_writes_denied_total",
			Help: "Total writes denied at admission, by status.",
		}, []string{"status"}),
	}
}

// CellAllocated implements mbuf.Observer.
func (o *Observer) CellAllocated() {
	o.cellsInUse.Inc()
}

// CellFreed implements mbuf.Observer.
func (o *Observer) CellFreed() {
	o.cellsInUse.Dec()
}

// BytesAdmitted implements mbuf.Observer.
func (o *Observer) BytesAdmitted(n int) {
	if n <= 0 {
		return
	}
	o.bytesInUse.Add(float64(n))
	o.bytesAdmitted.Add(float64(n))
}

// BytesDelivered implements mbuf.Observer.
func (o *Observer) BytesDelivered(n int) {
	if n <= 0 {
		return
	}
	o.bytesInUse.Sub(float64(n))
	o.bytesDelivered.Add(float64(n))
}

// WriteDenied implements mbuf.Observer.
func (o *Observer) WriteDenied(status mbuf.Status) {
	o.writesDenied.WithLabelValues(status.String()).Inc()
}

var _ mbuf.Observer = (*Observer)(nil)
