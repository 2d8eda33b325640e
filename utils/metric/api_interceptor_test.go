// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utilmetric

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/lendvm/utils/timer/mockable"
)

func TestAPIInterceptorDuplicateRegistration(t *testing.T) {
	require := require.New(t)

	reg := metric.NewRegistry()
	_, err := NewAPIInterceptor(reg, nil)
	require.NoError(err)

	_, err = NewAPIInterceptor(reg, nil)
	require.Error(err)
}

func TestAPIInterceptorRecordsRequest(t *testing.T) {
	require := require.New(t)

	clock := &mockable.Clock{}
	clock.Set(time.Unix(1_000, 0))

	reg := metric.NewRegistry()
	interceptor, err := NewAPIInterceptor(reg, clock)
	require.NoError(err)

	info := &rpc.RequestInfo{
		Method:  "lend.deposit",
		Request: httptest.NewRequest("POST", "/", nil),
	}
	info.Request = interceptor.InterceptRequest(info)
	clock.Advance(time.Millisecond)
	info.Error = errors.New("boom")
	interceptor.AfterRequest(info)

	families, err := reg.Gather()
	require.NoError(err)

	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.Name)
	}
	require.Contains(names, "rpc_request_count")
	require.Contains(names, "rpc_request_error_count")
}

func TestAPIInterceptorSkipsUntimedRequest(t *testing.T) {
	interceptor, err := NewAPIInterceptor(metric.NewRegistry(), nil)
	require.NoError(t, err)

	interceptor.AfterRequest(&rpc.RequestInfo{
		Method:  "lend.ping",
		Request: httptest.NewRequest("POST", "/", nil),
	})
}
