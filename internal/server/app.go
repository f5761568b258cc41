package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/roSievers/worksheet-elm/internal/config"
	"github.com/roSievers/worksheet-elm/internal/database"
	"github.com/roSievers/worksheet-elm/internal/render"
	"github.com/roSievers/worksheet-elm/internal/sheet/handler"
	"github.com/roSievers/worksheet-elm/internal/sheet/repository"
	"github.com/roSievers/worksheet-elm/internal/sheet/service"
	"github.com/roSievers/worksheet-elm/internal/storage"
	"github.com/roSievers/worksheet-elm/pkg/logger"
	"github.com/roSievers/worksheet-elm/pkg/metrics"
)

const mongoConnectAttempts = 5

// App holds the long-lived components built from a Config.
type App struct {
	Config   *config.Config
	Store    repository.Store
	Service  service.Service
	Renderer *render.Renderer
	Archive  *render.Archiver
	Redis    *redis.Client
	Objects  *storage.MinIOStorage
	Registry *prometheus.Registry
}

// Open connects the configured backends. Optional dependencies (Redis,
// MinIO) that fail to connect are logged and left out.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	jobs, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Service = service.New(a.Store)

	if cfg.Redis.Host != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis %s:%s unreachable, limiter will fail open: %v", cfg.Redis.Host, cfg.Redis.Port, err)
		} else {
			logger.Infof("connected to redis %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	var objects render.ObjectStore
	if storage.Enabled(cfg.MinIO) {
		s, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("minio disabled: %v", err)
		} else {
			a.Objects = s
			objects = s
			logger.Infof("archiving renders to minio bucket %s", cfg.MinIO.Bucket)
		}
	}
	a.Archive = render.NewArchiver(jobs, objects)

	a.Renderer = render.NewRenderer(
		render.NewPandocCompiler(cfg.Render.Binary, cfg.Render.Engine),
		render.Options{WorkDir: cfg.Render.WorkDir, Timeout: cfg.Render.Timeout, MaxConcurrent: cfg.Render.MaxConcurrent},
	)

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(a.Registry)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (render.JobStore, error) {
	cfg := a.Config
	switch cfg.Store.Driver {
	case config.DriverMemory:
		a.Store = repository.NewMemoryStore()
	case config.DriverFile:
		s, err := repository.NewFileStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.Store = s
	case config.DriverMongo:
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoConnectAttempts)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDB.Database)
		a.Store = repository.NewMongoStore(db)
		jobs, err := render.NewMongoJobStore(ctx, db.Collection("render_jobs"))
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.Infof("using mongo database %s", cfg.MongoDB.Database)
		return jobs, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	logger.Infof("using %s record store", cfg.Store.Driver)
	return render.NewMemoryJobStore(), nil
}

// Router wires the App into a gin engine.
func (a *App) Router() *gin.Engine {
	ready := map[string]Pinger{"store": a.Store}
	if a.Objects != nil {
		ready["objects"] = a.Objects
	}
	if a.Redis != nil && a.Config.RateLimit.UseRedis {
		ready["redis"] = redisPinger{a.Redis}
	}
	return NewRouter(Options{
		RateLimit: a.Config.RateLimit,
		Handler:   handler.New(a.Service, a.Renderer, a.Archive, a.Config.Server.MaxBodyBytes),
		Redis:     a.Redis,
		Ready:     ready,
		Gatherer:  a.Registry,
	})
}

// Close releases every connection Open made. The mongo client is owned by
// the store and disconnected through it.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close(ctx))
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}

type redisPinger struct{ c *redis.Client }

func (r redisPinger) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }
