// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/luxfi/metric"

	utilmetric "github.com/luxfi/lendvm/utils/metric"
	"github.com/luxfi/lendvm/utils/timer/mockable"
	"github.com/luxfi/lendvm/utils/wrappers"
)

const (
	OpLabel     = "op"
	ResultLabel = "result"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

var _ Metrics = (*metricsImpl)(nil)

type Metrics interface {
	utilmetric.APIInterceptor

	// Mark that an operation finished, failing if err is non-nil.
	MarkOperation(op string, err error)
	// Mark that this many assets are allowed.
	SetAllowedAssets(count uint64)
	// Mark that this many events have been recorded.
	SetEvents(count uint64)
}

func New(registerer metric.Registerer, clock *mockable.Clock) (Metrics, error) {
	m := &metricsImpl{
		operations: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "lending_operations",
				Help: "Number of lending operations by kind and result",
			},
			[]string{OpLabel, ResultLabel},
		),
		allowedAssets: metric.NewGauge(metric.GaugeOpts{
			Name: "lending_allowed_assets",
			Help: "Number of assets accepted by the pool",
		}),
		events: metric.NewGauge(metric.GaugeOpts{
			Name: "lending_events",
			Help: "Number of events in the audit trail",
		}),
	}

	apiRequestMetrics, err := utilmetric.NewAPIInterceptor(registerer, clock)
	errs := wrappers.Errs{Err: err}
	m.APIInterceptor = apiRequestMetrics

	errs.Add(
		registerer.Register(metric.AsCollector(m.operations)),
		registerer.Register(metric.AsCollector(m.allowedAssets)),
		registerer.Register(metric.AsCollector(m.events)),
	)
	return m, errs.Err
}

type metricsImpl struct {
	utilmetric.APIInterceptor

	operations    metric.CounterVec
	allowedAssets metric.Gauge
	events        metric.Gauge
}

func (m *metricsImpl) MarkOperation(op string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.operations.With(metric.Labels{
		OpLabel:     op,
		ResultLabel: result,
	}).Inc()
}

func (m *metricsImpl) SetAllowedAssets(count uint64) {
	m.allowedAssets.Set(float64(count))
}

func (m *metricsImpl) SetEvents(count uint64) {
	m.events.Set(float64(count))
}
