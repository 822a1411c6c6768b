package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/notebins/notebins/handlers"
	"github.com/notebins/notebins/internal/config"
	"github.com/notebins/notebins/internal/gateway"
	nhandler "github.com/notebins/notebins/internal/note/handler"
	"github.com/notebins/notebins/internal/note/service"
	"github.com/notebins/notebins/internal/password"
	"github.com/notebins/notebins/internal/rooms"
	"github.com/notebins/notebins/internal/shortid"
	"github.com/notebins/notebins/internal/stores"
	"github.com/notebins/notebins/internal/sweeper"
	"github.com/notebins/notebins/pkg/logger"
	"github.com/notebins/notebins/pkg/metrics"
	"github.com/notebins/notebins/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// raw env until the config is loaded
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	logger.Infof("config loaded: backend=%s redis=%v env=%s", cfg.Store.Backend, cfg.Redis.Host != "", cfg.Server.Environment)

	if !cfg.Server.Development() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := stores.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open note store: %v", err)
	}

	ids, err := shortid.New(cfg.Notes.IDLength)
	if err != nil {
		logger.Fatalf("id generator: %v", err)
	}
	svc := service.New(st.Notes, st.Saved, password.NewHasher(cfg.Notes.BcryptCost), ids, cfg.Notes.TTL)

	origins := middleware.ParseOrigins(cfg.CORS.Origin)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.ErrorHandler(cfg.Server.Development()))
	r.Use(middleware.CORS(origins))

	checks := map[string]handlers.Check{"store": st.Ping}
	handlers.RegisterHealth(r, checks, 0)
	handlers.RegisterSwagger(r)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.Use(middleware.BodyLimit(middleware.DefaultBodyLimit))
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && st.Redis != nil {
			logger.Infof("rate limiter: redis, %d requests per %s", cfg.RateLimit.Requests, cfg.RateLimit.Window)
			api.Use(middleware.RedisRateLimitMiddleware(st.Redis, cfg.RateLimit.Requests, cfg.RateLimit.Window))
		} else {
			logger.Infof("rate limiter: memory, %.3f rps burst %d", cfg.RateLimit.RPS(), cfg.RateLimit.Burst)
			api.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS(), cfg.RateLimit.Burst))
		}
	}
	nhandler.RegisterNoteRoutes(api, svc, cfg.Notes.PublicBaseURL)

	registry := rooms.New()
	go registry.Run(ctx, cfg.Cleanup.RoomSweepInterval)

	gw := gateway.New(registry, gateway.Config{
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		SendBuffer:      cfg.Realtime.SendBuffer,
		PingInterval:    cfg.Realtime.PingInterval,
		PongWait:        cfg.Realtime.PongWait,
		CheckOrigin:     origins.Allowed,
	})
	r.GET("/ws", gin.WrapH(gw))

	r.NoRoute(middleware.NotFound)

	sw := sweeper.New(cfg.Cleanup.Interval).
		Add("notes", st.Notes).
		Add("savednotes", st.Saved)
	sw.Start(ctx)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	go func() {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"notebins": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				var errs []error
				if err := srv.Shutdown(ctx); err != nil {
					errs = append(errs, err)
				}
				if err := gw.Shutdown(ctx); err != nil {
					errs = append(errs, err)
				}
				if err := sw.Stop(ctx); err != nil {
					errs = append(errs, err)
				}
				cancel()
				if err := st.Close(ctx); err != nil {
					errs = append(errs, err)
				}
				return errors.Join(errs...)
			},
		},
	)

	exitCode := <-wait
	logger.Infof("exited with code %d", exitCode)
	os.Exit(exitCode)
}
