package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/roSievers/worksheet-elm/handlers"
	"github.com/roSievers/worksheet-elm/internal/config"
	"github.com/roSievers/worksheet-elm/internal/sheet/handler"
	"github.com/roSievers/worksheet-elm/pkg/logger"
	"github.com/roSievers/worksheet-elm/pkg/middleware"
)

// shutdownGrace bounds how long in-flight requests may drain on shutdown.
const shutdownGrace = 10 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options are the pieces NewRouter assembles.
type Options struct {
	RateLimit config.RateLimitConfig
	Handler   *handler.Handler
	// Redis backs the rate limiter when RateLimit.UseRedis is set; may be nil.
	Redis *redis.Client
	// Ready maps dependency names to their readiness checks.
	Ready    map[string]Pinger
	Gatherer prometheus.Gatherer
}

// NewRouter builds the gin engine with middleware, ops endpoints and the API.
func NewRouter(o Options) *gin.Engine {
	started := time.Now()

	r := gin.New()
	r.Use(middleware.CORS(), middleware.RequestLogger(), gin.Recovery())

	if o.RateLimit.Enabled {
		if o.RateLimit.UseRedis && o.Redis != nil {
			win := time.Duration(o.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(o.Redis, o.RateLimit.RPS, o.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(o.RateLimit.RPS, o.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		ready := true
		deps := map[string]bool{}
		for name, p := range o.Ready {
			err := p.Ping(ctx)
			deps[name] = err == nil
			if err != nil {
				logger.Warnf("readiness: %s: %v", name, err)
				ready = false
			}
		}
		uptime := time.Since(started).Round(time.Second).String()
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
	})

	gatherer := o.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	handlers.RegisterSwagger(r)
	if o.Handler != nil {
		o.Handler.Register(r)
	}
	return r
}

// Run serves h on cfg.Addr() until ctx is cancelled, then drains in-flight
// requests for up to shutdownGrace.
func Run(ctx context.Context, cfg config.ServerConfig, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	logger.Infof("shutting down, draining for up to %s", shutdownGrace)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
