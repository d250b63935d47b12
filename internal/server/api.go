package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lox/pokerbench/internal/game"
	"github.com/lox/pokerbench/internal/ledger"
	"github.com/lox/pokerbench/internal/phh"
	"github.com/lox/pokerbench/internal/store"
)

// CreateGameRequest is the body of POST /games. Zero fields fall back to
// the server's default game config.
type CreateGameRequest struct {
	Players       []string `json:"players" binding:"required,min=2,max=8"`
	BuyIn         int      `json:"buy_in"`
	SmallBlind    int      `json:"small_blind"`
	BigBlind      int      `json:"big_blind"`
	MaxHands      int      `json:"max_hands"`
	TurnTimeoutMs int64    `json:"turn_timeout_ms"`
	Seed          int64    `json:"seed"`
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine.POST("/games", s.handleCreateGame)
	s.engine.GET("/games", s.handleListGames)
	s.engine.GET("/games/:id", s.handleGetGame)
	s.engine.GET("/games/:id/settlement", s.handleSettlement)
	s.engine.GET("/games/:id/hands/last", s.handleLastHand)
	s.engine.POST("/games/:id/cancel", s.handleCancel)
	s.engine.GET("/standings", s.handleStandings)

	if s.hub != nil {
		s.engine.GET("/bots", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"connected": s.hub.Connected()})
		})
		s.engine.GET("/bots/ws", gin.WrapH(s.hub))
	}
}

func (s *Server) handleCreateGame(c *gin.Context) {
	var req CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := s.defaults
	if req.BuyIn > 0 {
		cfg.BuyIn = req.BuyIn
	}
	if req.SmallBlind > 0 {
		cfg.SmallBlind = req.SmallBlind
	}
	if req.BigBlind > 0 {
		cfg.BigBlind = req.BigBlind
	}
	if req.MaxHands > 0 {
		cfg.MaxHands = req.MaxHands
	}
	if req.TurnTimeoutMs > 0 {
		cfg.TurnTimeout = time.Duration(req.TurnTimeoutMs) * time.Millisecond
	}

	g, err := s.runner.Play(c.Request.Context(), GameSpec{Players: req.Players, Config: cfg, Seed: req.Seed})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": g.ID, "seed": g.Seed, "config": g.Config})
}

func (s *Server) handleListGames(c *gin.Context) {
	ids, err := s.store.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": ids})
}

func (s *Server) handleGetGame(c *gin.Context) {
	g, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	reveal, _ := strconv.ParseBool(c.Query("reveal"))
	c.JSON(http.StatusOK, g.PublicView(reveal || g.Done()))
}

func (s *Server) handleSettlement(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	g, err := s.store.Get(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !g.Done() {
		c.JSON(http.StatusConflict, gin.H{"error": "game is " + string(g.Status)})
		return
	}

	entries := g.Settlement()
	if s.records != nil {
		recorded, err := s.records.Settlements(ctx, id)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if len(recorded) > 0 {
			entries = recorded
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": g.Status, "settlement": entries})
}

// handleLastHand returns the most recent finished hand as PHH text. Hole
// cards not shown at showdown stay hidden unless ?reveal=true.
func (s *Server) handleLastHand(c *gin.Context) {
	g, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if g.LastHand == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no finished hand"})
		return
	}
	reveal, _ := strconv.ParseBool(c.Query("reveal"))
	h, err := phh.FromHand(g, g.LastHand, phh.Options{HideMucked: !reveal && !g.Done(), At: g.UpdatedAt})
	if err != nil {
		s.writeError(c, err)
		return
	}
	body, err := phh.EncodeToBytes(h)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/toml; charset=utf-8", body)
}

func (s *Server) handleCancel(c *gin.Context) {
	if err := s.runner.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": game.StatusCancelled})
}

func (s *Server) handleStandings(c *gin.Context) {
	if s.records == nil {
		c.JSON(http.StatusOK, gin.H{"standings": []ledger.Standing{}})
		return
	}
	standings, err := s.records.Standings(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"standings": standings})
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, phh.ErrNoRecord):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrInvalidConfig):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, game.ErrNotActive):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
