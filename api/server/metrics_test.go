// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/metric"
)

func TestNewMetrics(t *testing.T) {
	require := require.New(t)

	m, err := newMetrics(metric.NewRegistry())
	require.NoError(err)
	require.NotNil(m.requests)
	require.NotNil(m.duration)
	require.NotNil(m.inflight)
}

func TestMetricsRegistrationFailure(t *testing.T) {
	require := require.New(t)

	reg := metric.NewRegistry()
	_, err := newMetrics(reg)
	require.NoError(err)

	m, err := newMetrics(reg)
	require.Error(err) //nolint:forbidigo // duplicate registration error is not exported
	require.Nil(m)
}

func TestWrapHandlerServes(t *testing.T) {
	require := require.New(t)

	m, err := newMetrics(metric.NewRegistry())
	require.NoError(err)

	calls := 0
	h := m.wrapHandler("lend", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	}))

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(method, "/ext/lend", nil))
		require.Equal(http.StatusAccepted, w.Code)
	}
	require.Equal(2, calls)
}
