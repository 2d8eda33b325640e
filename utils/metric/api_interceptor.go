// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utilmetric

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/luxfi/metric"

	"github.com/luxfi/lendvm/utils/timer/mockable"
	"github.com/luxfi/lendvm/utils/wrappers"
)

const methodLabel = "method"

// APIInterceptor records per-method request counts, cumulative latency and
// errors for a gorilla/rpc server.
type APIInterceptor interface {
	InterceptRequest(i *rpc.RequestInfo) *http.Request
	AfterRequest(i *rpc.RequestInfo)
}

type contextKey int

const requestTimestampKey contextKey = iota

type apiInterceptor struct {
	clock *mockable.Clock

	requestCount       metric.CounterVec
	requestDurationSum metric.GaugeVec
	requestErrors      metric.CounterVec
}

// NewAPIInterceptor registers the request metrics on registerer. If clock is
// nil the wall clock is used.
func NewAPIInterceptor(registerer metric.Registerer, clock *mockable.Clock) (APIInterceptor, error) {
	if clock == nil {
		clock = &mockable.Clock{}
	}
	a := &apiInterceptor{
		clock: clock,
		requestCount: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "rpc_request_count",
				Help: "Number of times this type of request was made",
			},
			[]string{methodLabel},
		),
		requestDurationSum: metric.NewGaugeVec(
			metric.GaugeOpts{
				Name: "rpc_request_duration_sum",
				Help: "Amount of time in nanoseconds that has been spent handling this type of request",
			},
			[]string{methodLabel},
		),
		requestErrors: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "rpc_request_error_count",
				Help: "Number of request errors",
			},
			[]string{methodLabel},
		),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(metric.AsCollector(a.requestCount)),
		registerer.Register(metric.AsCollector(a.requestDurationSum)),
		registerer.Register(metric.AsCollector(a.requestErrors)),
	)
	return a, errs.Err
}

func (a *apiInterceptor) InterceptRequest(i *rpc.RequestInfo) *http.Request {
	ctx := context.WithValue(i.Request.Context(), requestTimestampKey, a.clock.Time())
	return i.Request.WithContext(ctx)
}

func (a *apiInterceptor) AfterRequest(i *rpc.RequestInfo) {
	start, ok := i.Request.Context().Value(requestTimestampKey).(time.Time)
	if !ok {
		return
	}

	labels := metric.Labels{methodLabel: i.Method}
	a.requestCount.With(labels).Inc()
	a.requestDurationSum.With(labels).Add(float64(a.clock.Time().Sub(start)))
	if i.Error != nil {
		a.requestErrors.With(labels).Inc()
	}
}
