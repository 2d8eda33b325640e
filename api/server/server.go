// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"
)

const baseURL = "/ext"

var (
	_ PathAdder = (*server)(nil)
	_ Server    = (*server)(nil)

	errRouteExists  = errors.New("route already exists")
	errUnknownRoute = errors.New("unknown route")
)

type PathAdder interface {
	// AddRoute registers a route to a handler under [baseURL].
	AddRoute(handler http.Handler, base, endpoint string) error

	// AddAliases registers aliases to an existing route
	AddAliases(endpoint string, aliases ...string) error
}

// Server maintains the HTTP router
type Server interface {
	PathAdder
	// Handle registers a handler at an absolute path, outside of [baseURL].
	Handle(path string, handler http.Handler) error
	// Handler returns the fully wrapped handler served by Dispatch.
	Handler() http.Handler
	// Dispatch starts the API server
	Dispatch() error
	// Shutdown this server
	Shutdown() error
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"readTimeout"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout"`
	WriteTimeout      time.Duration `json:"writeTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout"`
}

type server struct {
	// log this server writes to
	log log.Logger

	shutdownTimeout time.Duration

	metrics *serverMetrics

	// lock guards router and routes. Routes are added under the write lock
	// and requests are served under the read lock.
	lock   sync.RWMutex
	router *mux.Router
	// url -> handler, used to resolve aliases
	routes map[string]http.Handler

	handler http.Handler
	srv     *http.Server

	// Listener used to serve traffic
	listener net.Listener
}

// New returns an instance of a Server.
func New(
	log log.Logger,
	listener net.Listener,
	allowedOrigins []string,
	allowedHosts []string,
	shutdownTimeout time.Duration,
	registerer metric.Registerer,
	httpConfig HTTPConfig,
) (Server, error) {
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}

	s := &server{
		log:             log,
		shutdownTimeout: shutdownTimeout,
		metrics:         m,
		router:          mux.NewRouter(),
		routes:          make(map[string]http.Handler),
		listener:        listener,
	}
	s.handler = wrapHandler(http.HandlerFunc(s.serveHTTP), allowedOrigins, allowedHosts)
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       httpConfig.ReadTimeout,
		ReadHeaderTimeout: httpConfig.ReadHeaderTimeout,
		WriteTimeout:      httpConfig.WriteTimeout,
		IdleTimeout:       httpConfig.IdleTimeout,
	}

	log.Info("API created with allowed origins: " + strings.Join(allowedOrigins, ","))
	return s, nil
}

func (s *server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	s.router.ServeHTTP(w, r)
}

func (s *server) Handler() http.Handler {
	return s.handler
}

func (s *server) Dispatch() error {
	s.log.Info("HTTP API server listening",
		log.Stringer("address", s.listener.Addr()),
	)
	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *server) AddRoute(handler http.Handler, base, endpoint string) error {
	url := fmt.Sprintf("%s/%s", baseURL, base)
	s.log.Info("adding route",
		log.String("url", url),
		log.String("endpoint", endpoint),
	)
	return s.addRoute(url+endpoint, s.metrics.wrapHandler(base, handler))
}

func (s *server) Handle(path string, handler http.Handler) error {
	s.log.Info("adding route",
		log.String("url", path),
	)
	return s.addRoute(path, s.metrics.wrapHandler(strings.TrimPrefix(path, "/"), handler))
}

func (s *server) addRoute(url string, handler http.Handler) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, exists := s.routes[url]; exists {
		return fmt.Errorf("%w: %q", errRouteExists, url)
	}
	s.routes[url] = handler
	s.router.Handle(url, handler)
	return nil
}

func (s *server) AddAliases(endpoint string, aliases ...string) error {
	url := fmt.Sprintf("%s/%s", baseURL, endpoint)

	s.lock.Lock()
	defer s.lock.Unlock()

	handler, ok := s.routes[url]
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownRoute, url)
	}
	for _, alias := range aliases {
		aliasURL := fmt.Sprintf("%s/%s", baseURL, alias)
		if _, exists := s.routes[aliasURL]; exists {
			return fmt.Errorf("%w: %q", errRouteExists, aliasURL)
		}
		s.routes[aliasURL] = handler
		s.router.Handle(aliasURL, handler)
	}
	return nil
}

func (s *server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	err := s.srv.Shutdown(ctx)
	cancel()

	// If shutdown times out, make sure the server is still shutdown.
	_ = s.srv.Close()
	return err
}

func wrapHandler(
	handler http.Handler,
	allowedOrigins []string,
	allowedHosts []string,
) http.Handler {
	h := filterInvalidHosts(handler, allowedHosts)
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
	}).Handler(h)
}

// filterInvalidHosts rejects requests whose Host header is not in
// allowedHosts. An empty list or a "*" entry allows every host.
func filterInvalidHosts(handler http.Handler, allowedHosts []string) http.Handler {
	allowed := make(map[string]struct{}, len(allowedHosts))
	for _, host := range allowedHosts {
		if host == "*" {
			return handler
		}
		allowed[strings.ToLower(host)] = struct{}{}
	}
	if len(allowed) == 0 {
		return handler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		// Requests addressed by IP are always allowed.
		if net.ParseIP(host) != nil {
			handler.ServeHTTP(w, r)
			return
		}
		if _, ok := allowed[strings.ToLower(host)]; !ok {
			http.Error(w, "invalid host specified", http.StatusForbidden)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
