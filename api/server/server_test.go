// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"
)

func newTestServer(t *testing.T, listener net.Listener, allowedHosts ...string) Server {
	s, err := New(
		log.NewNoOpLogger(),
		listener,
		[]string{"*"},
		allowedHosts,
		time.Second,
		metric.NewRegistry(),
		HTTPConfig{ReadHeaderTimeout: time.Second},
	)
	require.NoError(t, err)
	return s
}

func teapot(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func TestRoutes(t *testing.T) {
	require := require.New(t)

	s := newTestServer(t, nil)
	require.NoError(s.AddRoute(http.HandlerFunc(teapot), "lend", ""))
	require.NoError(s.AddAliases("lend", "lending"))
	require.NoError(s.Handle("/health", http.HandlerFunc(teapot)))

	tests := []struct {
		path string
		code int
	}{
		{path: "/ext/lend", code: http.StatusTeapot},
		{path: "/ext/lending", code: http.StatusTeapot},
		{path: "/health", code: http.StatusTeapot},
		{path: "/ext/unknown", code: http.StatusNotFound},
	}
	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, test.path, nil))
			require.Equal(test.code, w.Code)
		})
	}
}

func TestRouteConflicts(t *testing.T) {
	require := require.New(t)

	s := newTestServer(t, nil)
	require.NoError(s.AddRoute(http.HandlerFunc(teapot), "lend", ""))
	require.ErrorIs(s.AddRoute(http.HandlerFunc(teapot), "lend", ""), errRouteExists)
	require.ErrorIs(s.AddAliases("lend", "lend"), errRouteExists)
	require.ErrorIs(s.AddAliases("missing", "other"), errUnknownRoute)
}

func TestFilterInvalidHosts(t *testing.T) {
	tests := []struct {
		name         string
		allowedHosts []string
		host         string
		code         int
	}{
		{
			name: "no filter",
			host: "example.com",
			code: http.StatusTeapot,
		},
		{
			name:         "wildcard",
			allowedHosts: []string{"*"},
			host:         "example.com",
			code:         http.StatusTeapot,
		},
		{
			name:         "allowed host with port",
			allowedHosts: []string{"localhost"},
			host:         "LOCALHOST:9650",
			code:         http.StatusTeapot,
		},
		{
			name:         "ip address",
			allowedHosts: []string{"localhost"},
			host:         "127.0.0.1:9650",
			code:         http.StatusTeapot,
		},
		{
			name:         "rejected host",
			allowedHosts: []string{"localhost"},
			host:         "example.com",
			code:         http.StatusForbidden,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := filterInvalidHosts(http.HandlerFunc(teapot), test.allowedHosts)
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = test.host
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			require.Equal(t, test.code, w.Code)
		})
	}
}

func TestDispatchAndShutdown(t *testing.T) {
	require := require.New(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)

	s := newTestServer(t, listener)
	require.NoError(s.Handle("/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})))

	done := make(chan error, 1)
	go func() {
		done <- s.Dispatch()
	}()

	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get("http://" + listener.Addr().String() + "/ping")
	require.NoError(err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(err)
	require.NoError(resp.Body.Close())
	require.Equal("pong", string(body))

	client.CloseIdleConnections()
	require.NoError(s.Shutdown())
	require.NoError(<-done)
}
