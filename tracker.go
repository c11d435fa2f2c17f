// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/metric"

	safemath "github.com/luxfi/math"
)

const bandwidthHalflife = 5 * time.Minute

// ProviderTracker records the response bandwidth of chunk providers so
// that fetch tasks try fast validators first.
type ProviderTracker struct {
	lock sync.RWMutex
	// Bandwidth of providers that we have measured.
	bandwidth map[ids.NodeID]safemath.Averager
	// Providers that responded to the last request they were sent.
	responsive set.Set[ids.NodeID]
	// Average bandwidth is only used for metrics.
	averageBandwidth safemath.Averager

	log     log.Logger
	metrics providerTrackerMetrics
}

type providerTrackerMetrics struct {
	numResponsiveProviders metric.Gauge
	averageBandwidth       metric.Gauge
}

func NewProviderTracker(
	log log.Logger,
	metricsNamespace string,
	registerer metric.Registerer,
) (*ProviderTracker, error) {
	t := &ProviderTracker{
		bandwidth:        make(map[ids.NodeID]safemath.Averager),
		responsive:       set.NewSet[ids.NodeID](0),
		averageBandwidth: safemath.NewAverager(0, bandwidthHalflife, time.Now()),
		log:              log,
		metrics: providerTrackerMetrics{
			numResponsiveProviders: metric.NewGauge(
				metric.GaugeOpts{
					Namespace: metricsNamespace,
					Name:      "responsive_providers",
					Help:      "number of providers that answered their last request",
				},
			),
			averageBandwidth: metric.NewGauge(
				metric.GaugeOpts{
					Namespace: metricsNamespace,
					Name:      "average_provider_bandwidth",
					Help:      "average chunk response bandwidth of providers",
				},
			),
		},
	}

	err := errors.Join()
	return t, err
}

// Order returns candidates arranged in the order a fetch task should
// try them. Providers without a measured bandwidth come first, in
// random order, so new validators get exercised; measured providers
// follow, fastest first.
func (p *ProviderTracker) Order(candidates []ids.NodeID) []ids.NodeID {
	p.lock.RLock()
	defer p.lock.RUnlock()

	var (
		unknown  = make([]ids.NodeID, 0, len(candidates))
		measured = make([]ids.NodeID, 0, len(candidates))
	)
	for _, nodeID := range candidates {
		if _, ok := p.bandwidth[nodeID]; ok {
			measured = append(measured, nodeID)
		} else {
			unknown = append(unknown, nodeID)
		}
	}

	rand.Shuffle(len(unknown), func(i, j int) { // #nosec G404
		unknown[i], unknown[j] = unknown[j], unknown[i]
	})
	sort.SliceStable(measured, func(i, j int) bool {
		return p.bandwidth[measured[i]].Read() > p.bandwidth[measured[j]].Read()
	})

	return append(unknown, measured...)
}

// Responsive returns the number of providers that answered their most
// recent request.
func (p *ProviderTracker) Responsive() int {
	p.lock.RLock()
	defer p.lock.RUnlock()

	return p.responsive.Len()
}

// RegisterResponse records that we observed that [nodeID]'s bandwidth
// is [bandwidth].
func (p *ProviderTracker) RegisterResponse(nodeID ids.NodeID, bandwidth float64) {
	p.updateBandwidth(nodeID, bandwidth, true)
}

// RegisterFailure records that a request to [nodeID] failed or timed
// out.
func (p *ProviderTracker) RegisterFailure(nodeID ids.NodeID) {
	p.updateBandwidth(nodeID, 0, false)
}

func (p *ProviderTracker) updateBandwidth(nodeID ids.NodeID, bandwidth float64, responsive bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	now := time.Now()
	providerBandwidth, ok := p.bandwidth[nodeID]
	if ok {
		providerBandwidth.Observe(bandwidth, now)
	} else {
		providerBandwidth = safemath.NewAverager(bandwidth, bandwidthHalflife, now)
		p.bandwidth[nodeID] = providerBandwidth
	}
	p.averageBandwidth.Observe(bandwidth, now)

	if responsive {
		p.responsive.Add(nodeID)
	} else {
		p.responsive.Remove(nodeID)
		p.log.Debug("provider unresponsive",
			log.Stringer("nodeID", nodeID),
			log.Float64("bandwidth", providerBandwidth.Read()),
		)
	}

	p.metrics.numResponsiveProviders.Set(float64(p.responsive.Len()))
	p.metrics.averageBandwidth.Set(p.averageBandwidth.Read())
}

// Forget drops all state for [nodeID]. Called when the node
// disconnects.
func (p *ProviderTracker) Forget(nodeID ids.NodeID) {
	p.lock.Lock()
	defer p.lock.Unlock()

	delete(p.bandwidth, nodeID)
	p.responsive.Remove(nodeID)

	p.metrics.numResponsiveProviders.Set(float64(p.responsive.Len()))
}
