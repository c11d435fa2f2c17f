// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"errors"
	"time"

	"github.com/luxfi/metric"
)

const (
	resultLabel = "result"
	opLabel     = "op"
	kindLabel   = "kind"

	succeededLabel = "succeeded"
	failedLabel    = "failed"
	canceledLabel  = "canceled"
	exhaustedLabel = "exhausted"
	missingLabel   = "missing"
	refusedLabel   = "refused"

	activeHeadsOp  = "active_heads"
	chunkRequestOp = "chunk_request"
	dataRequestOp  = "data_request"
)

var (
	resultLabels = []string{resultLabel}
	opLabels     = []string{opLabel}
	kindLabels   = []string{kindLabel}
)

type Metrics struct {
	FetchedChunks metric.CounterVec // result
	FetchedBytes  metric.Counter
	FetchTime     metric.Gauge
	LiveFetches   metric.Gauge

	ServedChunks metric.CounterVec // result
	ServedData   metric.CounterVec // result

	InboundMessages metric.CounterVec // op
	AbsorbedErrors  metric.CounterVec // kind
	MailboxDepth    metric.Gauge
}

func NewMetrics(registerer metric.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		FetchedChunks: metric.NewCounterVec(
			metric.CounterOpts{
				Namespace: namespace,
				Name:      "fetched_chunks",
				Help:      "number of finished chunk fetches",
			},
			resultLabels,
		),
		FetchedBytes: metric.NewCounter(metric.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_bytes",
			Help:      "number of chunk bytes fetched",
		}),
		FetchTime: metric.NewGauge(metric.GaugeOpts{
			Namespace: namespace,
			Name:      "fetch_time",
			Help:      "duration of the last successful chunk fetch (ns)",
		}),
		LiveFetches: metric.NewGauge(metric.GaugeOpts{
			Namespace: namespace,
			Name:      "live_fetches",
			Help:      "number of chunk fetches in flight",
		}),
		ServedChunks: metric.NewCounterVec(
			metric.CounterOpts{
				Namespace: namespace,
				Name:      "served_chunks",
				Help:      "number of answered chunk requests",
			},
			resultLabels,
		),
		ServedData: metric.NewCounterVec(
			metric.CounterOpts{
				Namespace: namespace,
				Name:      "served_data",
				Help:      "number of answered data requests",
			},
			resultLabels,
		),
		InboundMessages: metric.NewCounterVec(
			metric.CounterOpts{
				Namespace: namespace,
				Name:      "inbound_msgs",
				Help:      "number of mailbox messages handled",
			},
			opLabels,
		),
		AbsorbedErrors: metric.NewCounterVec(
			metric.CounterOpts{
				Namespace: namespace,
				Name:      "absorbed_errors",
				Help:      "number of recoverable errors absorbed",
			},
			kindLabels,
		),
		MailboxDepth: metric.NewGauge(metric.GaugeOpts{
			Namespace: namespace,
			Name:      "mailbox_depth",
			Help:      "number of buffered mailbox messages",
		}),
	}
	return m, errors.Join()
}

// FetchSucceeded updates the metrics for a chunk fetch that returned a
// verified chunk.
func (m *Metrics) FetchSucceeded(numBytes int, elapsed time.Duration) {
	m.FetchedChunks.With(metric.Labels{resultLabel: succeededLabel}).Inc()
	m.FetchedBytes.Add(float64(numBytes))
	m.FetchTime.Set(float64(elapsed))
}

// FetchEnded updates the metrics for a chunk fetch that ended without a
// chunk.
func (m *Metrics) FetchEnded(result string) {
	m.FetchedChunks.With(metric.Labels{resultLabel: result}).Inc()
}

func (m *Metrics) ErrorAbsorbed(kind string) {
	m.AbsorbedErrors.With(metric.Labels{kindLabel: kind}).Inc()
}
