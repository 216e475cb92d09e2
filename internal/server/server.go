package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"webAgent/internal/config"
	"webAgent/internal/database"
	"webAgent/internal/delegate"
	"webAgent/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// Store - чтение эпизодов для API. Может быть nil, тогда доступен только запуск.
type Store interface {
	GetEpisodeByID(ctx context.Context, id uint) (*database.Episode, error)
	ListEpisodes(ctx context.Context, limit, offset int) ([]database.Episode, error)
	ListCycles(ctx context.Context, episodeID uint) ([]database.Cycle, error)
}

type Server struct {
	cfg    config.App
	log    *logger.Zap
	store  Store
	runner delegate.Runner
}

func New(cfg config.App, log *logger.Zap, store Store, runner delegate.Runner) *Server {
	return &Server{
		cfg:    cfg,
		log:    log,
		store:  store,
		runner: runner,
	}
}

// Handler собирает маршруты API.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	// Простейший лог-мидлвар
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("HTTP",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST(delegate.EpisodesPath, s.runEpisode)
	r.GET(delegate.EpisodesPath, s.listEpisodes)
	r.GET(delegate.EpisodesPath+"/:id", s.getEpisode)

	return r
}

// Выполнить эпизод синхронно. Этот же маршрут вызывает HTTPDelegate.
func (s *Server) runEpisode(c *gin.Context) {
	var req delegate.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.URL == "" || req.Task == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url и task обязательны"})
		return
	}

	resp := s.runner.RunEpisode(c.Request.Context(), req)
	resp.ID = req.ID
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listEpisodes(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	episodes, err := s.store.ListEpisodes(c.Request.Context(), limit, offset)
	if err != nil {
		s.log.Error("db list episodes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, episodes)
}

func (s *Server) getEpisode(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return
	}

	ctx := c.Request.Context()
	episode, err := s.store.GetEpisodeByID(ctx, uint(id64))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		s.log.Error("db get episode", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	cycles, err := s.store.ListCycles(ctx, episode.ID)
	if err != nil {
		s.log.Error("db list cycles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"episode": episode, "cycles": cycles})
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database is not configured"})
		return false
	}
	return true
}

// Run слушает до отмены ctx, затем дожидается завершения активных запросов.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("Сервер запущен", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		s.log.Info("Остановка сервера")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
