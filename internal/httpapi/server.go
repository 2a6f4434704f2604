package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"adportal/internal/config"
	"adportal/internal/quote"
	"adportal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// RateLimiter counts actions per subject in fixed windows.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, subject, action string, limit int64, window time.Duration) (bool, error)
}

// Notifier tells staff and customers about quote events. Implementations
// must not block for long.
type Notifier interface {
	NotifyNewQuote(ctx context.Context, q *quote.Quote)
	NotifyStatusChange(ctx context.Context, q *quote.Quote)
}

type Server struct {
	cfg      config.HTTPConfig
	quotes   *quote.Service
	limiter  RateLimiter
	notifier Notifier
	logger   *zap.Logger
	engine   *gin.Engine
}

// New builds the router. limiter and notifier may be nil.
func New(cfg config.HTTPConfig, quotes *quote.Service, limiter RateLimiter, notifier Notifier, log *zap.Logger) *Server {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := quote.RegisterValidators(v); err != nil {
			log.Warn("Failed to register validators", zap.Error(err))
		}
	}

	s := &Server{
		cfg:      cfg,
		quotes:   quotes,
		limiter:  limiter,
		notifier: notifier,
		logger:   log,
	}

	r := gin.New()
	r.Use(logger.RequestID(), logger.Gin(log), logger.Recovery(log))
	s.routes(r)
	s.engine = r
	return s
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/areas", s.listAreas)
		v1.GET("/ratecard", s.rateCard)
		v1.POST("/quotes/calculate", s.calculate)
		v1.POST("/schedule/validate", s.validateSchedule)
		v1.POST("/vouchers/check", s.checkVoucher)
		v1.POST("/quotes", s.rateLimit("submit_quote"), s.submitQuote)
		v1.GET("/quotes/:ref", s.getQuote)
		v1.GET("/quotes/:ref/export", s.exportQuote)
	}

	if s.cfg.WebhookSecret != "" {
		r.POST("/webhooks/backend", s.backendWebhook)
	}
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	return nil
}

// rateLimit rejects clients that exceed the configured submit limit. Limiter
// failures let the request through.
func (s *Server) rateLimit(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		limited, err := s.limiter.CheckRateLimit(c.Request.Context(), c.ClientIP(), action, s.cfg.SubmitLimit, s.cfg.SubmitWindow)
		if err != nil {
			s.logger.Error("Rate limit check failed",
				zap.String("request_id", logger.RequestIDFrom(c)),
				zap.Error(err))
			c.Next()
			return
		}
		if limited {
			c.Header("Retry-After", fmt.Sprintf("%d", int(s.cfg.SubmitWindow.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, please try again later"})
			return
		}
		c.Next()
	}
}
