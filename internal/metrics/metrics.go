/*
Copyright 2025 The Portfolio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "portfolio"

	// StatusLabel is the solver status of a finished solve.
	StatusLabel = "status"

	// ReasonLabel is the enumeration stop reason.
	ReasonLabel = "reason"
)

// Recorder publishes solve metrics. A nil *Recorder records nothing.
type Recorder struct {
	solves        *prometheus.CounterVec
	stops         *prometheus.CounterVec
	duration      prometheus.Histogram
	rounds        prometheus.Histogram
	rejected      prometheus.Counter
	requestedPool prometheus.Gauge
	achievedPool  prometheus.Gauge
}

// NewRecorder creates the solve metrics and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	var err error
	r := &Recorder{}
	if r.solves, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "solves_total",
		Help:      "Number of finished solve requests by status.",
	}, []string{StatusLabel})); err != nil {
		return nil, err
	}
	if r.stops, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enumeration_stops_total",
		Help:      "Number of solution pool enumerations by stop reason.",
	}, []string{ReasonLabel})); err != nil {
		return nil, err
	}
	if r.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "solve_duration_seconds",
		Help:      "Wall time of solve requests, including enumeration.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})); err != nil {
		return nil, err
	}
	if r.rounds, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "enumeration_rounds",
		Help:      "Capability calls made by the enumerator per solve request.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})); err != nil {
		return nil, err
	}
	if r.rejected, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejected_solves_total",
		Help:      "Solve requests rejected because another solve was active.",
	})); err != nil {
		return nil, err
	}
	if r.requestedPool, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "requested_pool_size",
		Help:      "Requested pool size of the last solve.",
	})); err != nil {
		return nil, err
	}
	if r.achievedPool, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "achieved_pool_size",
		Help:      "Achieved pool size of the last solve.",
	})); err != nil {
		return nil, err
	}
	return r, nil
}

// register returns the collector already registered under the same descriptor, if any,
// so that several recorders on one registry share their series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Solve is what gets recorded for a finished solve.
type Solve struct {
	Status     string
	StopReason string
	Elapsed    time.Duration
	Rounds     int
	Requested  int
	Achieved   int
}

// ObserveSolve records a finished solve.
func (r *Recorder) ObserveSolve(s Solve) {
	if r == nil {
		return
	}
	r.solves.WithLabelValues(s.Status).Inc()
	if s.StopReason != "" {
		r.stops.WithLabelValues(s.StopReason).Inc()
	}
	r.duration.Observe(s.Elapsed.Seconds())
	r.rounds.Observe(float64(s.Rounds))
	r.requestedPool.Set(float64(s.Requested))
	r.achievedPool.Set(float64(s.Achieved))
}

// RejectedSolve records a solve refused because the session was busy.
func (r *Recorder) RejectedSolve() {
	if r == nil {
		return
	}
	r.rejected.Inc()
}
