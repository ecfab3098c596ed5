// Package httpapi exposes the agent prediction endpoint, the execution
// commands and account snapshots over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/fxbot/internal/application/controller"
	"github.com/alejandrodnm/fxbot/internal/ports"
	"github.com/alejandrodnm/fxbot/internal/strategy"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configura el servidor HTTP.
type Config struct {
	Addr             string
	DefaultModel     strategy.Name
	PredictorTimeout time.Duration
	ShutdownTimeout  time.Duration
}

// Server contiene los handlers y sus dependencias.
type Server struct {
	cfg         Config
	controllers map[string]*controller.Controller // accountID → controller
	predictor   ports.Predictor                   // nil → solo estrategias locales
	strategies  strategy.Registry
}

// NewServer crea el servidor sobre los controllers de cada cuenta.
func NewServer(cfg Config, controllers []*controller.Controller, predictor ports.Predictor, strategies strategy.Registry) *Server {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = strategy.NameCrossover
	}
	if cfg.PredictorTimeout <= 0 {
		cfg.PredictorTimeout = 2 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	byID := make(map[string]*controller.Controller, len(controllers))
	for _, c := range controllers {
		byID[c.Account().ID()] = c
	}
	return &Server{cfg: cfg, controllers: byID, predictor: predictor, strategies: strategies}
}

// Router construye el gin.Engine con todas las rutas.
//
//	POST /api/agent/predict
//	GET  /api/accounts/:id/snapshot
//	POST /api/accounts/:id/trades
//	POST /api/accounts/:id/trades/:tradeId/close
//	GET  /health
//	GET  /metrics
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	api := router.Group("/api")
	{
		api.POST("/agent/predict", s.HandlePredict)

		accounts := api.Group("/accounts/:id")
		{
			accounts.GET("/snapshot", s.HandleSnapshot)
			accounts.POST("/trades", s.HandleOpenTrade)
			accounts.POST("/trades/:tradeId/close", s.HandleCloseTrade)
		}
	}

	router.GET("/health", HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// Run sirve HTTP hasta que el contexto se cancele y luego hace shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http api listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi.Run: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi.Run: shutdown: %w", err)
	}
	slog.Info("http api stopped")
	return nil
}

// HandleHealth responde a GET /health.
func HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
		)
	}
}
