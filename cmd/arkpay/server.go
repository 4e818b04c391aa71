package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitwit/arkpay"
	"github.com/vitwit/arkpay/logger"
	"github.com/vitwit/arkpay/utils"
)

type statusServer struct {
	server  *http.Server
	router  *mux.Router
	gateway *arkpay.Gateway
	log     logger.Logger
}

func newStatusServer(addr string, gw *arkpay.Gateway, gatherer prometheus.Gatherer, log logger.Logger) *statusServer {
	router := mux.NewRouter()
	s := &statusServer{
		server:  &http.Server{Addr: addr, Handler: router},
		router:  router,
		gateway: gw,
		log:     log,
	}

	router.HandleFunc("/version", func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(rw, version)
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)

	return s
}

func (s *statusServer) handleSession(rw http.ResponseWriter, r *http.Request) {
	body, err := utils.SerializeSession(s.gateway.ToObject())
	if err != nil {
		s.log.Error("session serialization failed", map[string]any{"error": err})
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.Write(body)
}

func (s *statusServer) Start() {
	s.log.Info("status server listening", map[string]any{"addr": s.server.Addr})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("status server failed", map[string]any{"error": err})
	}
}

func (s *statusServer) Shutdown(ctx context.Context) {
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Error("status server shutdown failed", map[string]any{"error": err})
	}
}
