// Copyright 2023 Electra Labs
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/electra-labs/electra/models/electra"
)

const namespaceElectra = "electra"

// MetricsWriter wraps the index writer and records metrics for the blocks it
// applies and retracts.
type MetricsWriter struct {
	write       electra.Writer
	applied     prometheus.Counter
	retracted   prometheus.Counter
	transaction prometheus.Counter
	height      prometheus.Gauge
}

// NewMetricsWriter creates an index writer that exposes the progress of the
// index as prometheus metrics.
func NewMetricsWriter(write electra.Writer) *MetricsWriter {
	appliedOpts := prometheus.CounterOpts{
		Name:      "applied_blocks",
		Namespace: namespaceElectra,
		Help:      "number of blocks applied to the index",
	}
	applied := promauto.NewCounter(appliedOpts)

	retractedOpts := prometheus.CounterOpts{
		Name:      "retracted_blocks",
		Namespace: namespaceElectra,
		Help:      "number of blocks retracted from the index",
	}
	retracted := promauto.NewCounter(retractedOpts)

	transactionOpts := prometheus.CounterOpts{
		Name:      "indexed_transactions",
		Namespace: namespaceElectra,
		Help:      "number of indexed transactions",
	}
	transaction := promauto.NewCounter(transactionOpts)

	heightOpts := prometheus.GaugeOpts{
		Name:      "cursor_height",
		Namespace: namespaceElectra,
		Help:      "height of the sync cursor",
	}
	height := promauto.NewGauge(heightOpts)

	w := MetricsWriter{
		write:       write,
		applied:     applied,
		retracted:   retracted,
		transaction: transaction,
		height:      height,
	}

	return &w
}

func (w *MetricsWriter) Apply(block *electra.Block) error {
	err := w.write.Apply(block)
	if err != nil {
		return err
	}
	w.applied.Inc()
	w.transaction.Add(float64(len(block.Transactions)))
	w.height.Set(float64(block.Header.Height))
	return nil
}

func (w *MetricsWriter) Retract(block *electra.Block) error {
	err := w.write.Retract(block)
	if err != nil {
		return err
	}
	w.retracted.Inc()
	// Retracting the first indexed block leaves no cursor behind; report
	// zero instead of wrapping around.
	if block.Header.Height == 0 {
		w.height.Set(0)
		return nil
	}
	w.height.Set(float64(block.Header.Height - 1))
	return nil
}

func (w *MetricsWriter) Close() error {
	return w.write.Close()
}
