// Package api exposes the relayer's read-only HTTP lookup surface: a
// client can ask what AMB messages were produced for a given source
// transaction. It follows the same Start/Dispose server lifecycle the
// teacher's own api package uses, simplified to the single endpoint this
// module needs.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"

	"github.com/ambridge-relay/relayer/core"
)

// Config holds the api server's listen address.
type Config struct {
	Addr string `json:"addr"` // empty means disabled
}

// Server serves the relayer's read-only lookup endpoints over HTTP.
type Server struct {
	server *http.Server
	config Config
	logger hclog.Logger
}

func New(config Config, store core.Store, logger hclog.Logger) *Server {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/api/getAMBs", newGetAMBsHandler(store, logger)).Methods(http.MethodGet)

	return &Server{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) IsEnabled() bool {
	return s.config.Addr != ""
}

func (s *Server) Start() error {
	if !s.IsEnabled() {
		return nil
	}

	go s.run()

	return nil
}

func (s *Server) run() {
	s.logger.Info("api: server started", "addr", s.config.Addr)

	if err := s.server.ListenAndServe(); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api: server error", "err", err)
		}
	}
}

func (s *Server) Close(ctx context.Context) error {
	if !s.IsEnabled() {
		return nil
	}

	s.logger.Info("api: server stopping", "addr", s.config.Addr)

	return s.server.Shutdown(ctx)
}
