// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

const (
	rttAlphaValue = 0.2
	minSamples    = 10
	maxSamples    = 500

	// minRTTWindow is the window over which the minimum RTT is computed.
	minRTTWindow = 5 * time.Minute
)

// rttStats tracks the round trip times of successful heartbeats. It is owned by
// a single server monitor goroutine and is not safe for concurrent use.
type rttStats struct {
	samples       []time.Duration
	offset        int
	minRTT        time.Duration
	rtt90         time.Duration
	averageRTT    time.Duration
	averageRTTSet bool
}

func newRTTStats(interval time.Duration) *rttStats {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	// Keep enough samples to cover minRTTWindow, bounded to [10, 500].
	numSamples := int(math.Max(minSamples, math.Min(maxSamples, float64(minRTTWindow/interval))))

	return &rttStats{
		samples: make([]time.Duration, numSamples),
	}
}

// reset clears all samples. It is called when a heartbeat fails.
func (r *rttStats) reset() {
	for i := range r.samples {
		r.samples[i] = 0
	}
	r.offset = 0
	r.minRTT = 0
	r.rtt90 = 0
	r.averageRTT = 0
	r.averageRTTSet = false
}

func (r *rttStats) addSample(rtt time.Duration) {
	// A zero sample would be indistinguishable from an empty slot.
	if rtt <= 0 {
		rtt = time.Nanosecond
	}

	r.samples[r.offset] = rtt
	r.offset = (r.offset + 1) % len(r.samples)

	// Require at least minSamples before reporting the min and 90th percentile
	// so noisy samples on startup do not skew them.
	r.minRTT = minimum(r.samples, minSamples)
	r.rtt90 = percentile(90.0, r.samples, minSamples)

	if !r.averageRTTSet {
		r.averageRTT = rtt
		r.averageRTTSet = true
		return
	}

	r.averageRTT = time.Duration(rttAlphaValue*float64(rtt) + (1-rttAlphaValue)*float64(r.averageRTT))
}

func floatSamples(samples []time.Duration) []float64 {
	floats := make([]float64, 0, len(samples))
	for _, sample := range samples {
		if sample > 0 {
			floats = append(floats, float64(sample))
		}
	}
	return floats
}

// minimum returns the minimum non-zero sample, or 0 if fewer than minSamples
// samples were collected.
func minimum(samples []time.Duration, minSamples int) time.Duration {
	floats := floatSamples(samples)
	if len(floats) == 0 || len(floats) < minSamples {
		return 0
	}

	m, err := stats.Min(floats)
	if err != nil {
		return 0
	}
	return time.Duration(m)
}

// percentile returns the specified percentile of the non-zero samples, or 0 if
// fewer than minSamples samples were collected.
func percentile(perc float64, samples []time.Duration, minSamples int) time.Duration {
	floats := floatSamples(samples)
	if len(floats) == 0 || len(floats) < minSamples {
		return 0
	}

	p, err := stats.Percentile(floats, perc)
	if err != nil {
		return 0
	}
	return time.Duration(p)
}
