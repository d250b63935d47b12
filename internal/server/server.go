package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/lox/pokerbench/internal/game"
	"github.com/lox/pokerbench/internal/ledger"
	"github.com/lox/pokerbench/internal/store"
)

// Records is the read side of the ledger exposed over HTTP.
type Records interface {
	Settlements(ctx context.Context, gameID string) ([]game.SettlementEntry, error)
	Standings(ctx context.Context) ([]ledger.Standing, error)
}

// Server exposes the runner over HTTP and accepts bot connections.
type Server struct {
	runner   *Runner
	store    store.Store
	hub      *BotHub
	records  Records
	defaults game.Config
	logger   *log.Logger
	engine   *gin.Engine
	http     *http.Server
}

// NewServer builds the router. records may be nil, in which case
// settlements are computed from the stored game.
func NewServer(addr string, runner *Runner, st store.Store, hub *BotHub, records Records, defaults game.Config, logger *log.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		runner:   runner,
		store:    st,
		hub:      hub,
		records:  records,
		defaults: defaults,
		logger:   logger.WithPrefix("server"),
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.http.Shutdown(ctx)
}
