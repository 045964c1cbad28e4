package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tatidev/opms-erp-sync/internal/changedetect"
	"github.com/tatidev/opms-erp-sync/internal/config"
	"github.com/tatidev/opms-erp-sync/internal/configgate"
	"github.com/tatidev/opms-erp-sync/internal/database"
	"github.com/tatidev/opms-erp-sync/internal/dispatcher"
	"github.com/tatidev/opms-erp-sync/internal/dryrun"
	"github.com/tatidev/opms-erp-sync/internal/erpclient"
	"github.com/tatidev/opms-erp-sync/internal/extractor"
	"github.com/tatidev/opms-erp-sync/internal/logger"
	"github.com/tatidev/opms-erp-sync/internal/metrics"
	"github.com/tatidev/opms-erp-sync/internal/middleware"
	"github.com/tatidev/opms-erp-sync/internal/payload"
	"github.com/tatidev/opms-erp-sync/internal/queuestore"
	"github.com/tatidev/opms-erp-sync/internal/ratelimit"
	"github.com/tatidev/opms-erp-sync/internal/supervisor"
	"github.com/tatidev/opms-erp-sync/internal/vendormap"
	"github.com/tatidev/opms-erp-sync/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Log.Level)
	log.Infow("starting opms-erp-sync", "app_env", cfg.AppEnv)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	if cfg.Monitoring.MetricsEnabled {
		metrics.Register()
	}

	gate := configgate.New(db, log)
	vendors := vendormap.New(db, log)
	ext := extractor.New(db, log)
	builder := payload.New(cfg.ERP.DefaultTaxSchedID)
	store := queuestore.New(db, log)
	limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.MinSpacing)

	erp := erpclient.New(erpclient.Config{
		SigningPassphrase:  cfg.ERP.SigningPassphrase,
		ConsumerKey:        cfg.ERP.ConsumerKey,
		TokenKey:           cfg.ERP.TokenKey,
		UpsertURLProd:      cfg.ERP.UpsertURLProd,
		UpsertURLNonProd:   cfg.ERP.UpsertURLNonProd,
		DefaultEnvironment: cfg.ERP.Environment,
		ScriptID:           cfg.ERP.ScriptID,
		DeploymentID:       cfg.ERP.DeploymentID,
		Timeout:            cfg.ERP.UpsertTimeout,
		BreakerThreshold:   cfg.ERP.BreakerThreshold,
		BreakerTimeout:     cfg.ERP.BreakerTimeout,
	}, log)

	detect := changedetect.New(db, log, gate, store, cfg.Polling.Interval, cfg.Polling.BatchLimit)

	retry := dispatcher.RetryPolicy{
		Base:       cfg.Retry.BaseDelay,
		Max:        cfg.Retry.MaxDelay,
		Multiplier: cfg.Retry.Multiplier,
		MaxRetries: cfg.Retry.MaxRetries,
	}
	disp := dispatcher.New(db, log, gate, store, ext, vendors, builder, erp, limiter, retry, cfg.Dispatcher.WakeInterval)

	sup := supervisor.New(log, gate, detect, store, disp, cfg.Supervisor.LeaseTTL, cfg.Supervisor.MaxAutoRestarts)

	sim := dryrun.New(db, ext, vendors, builder)
	applier := webhook.New(db, log, cfg.Webhook.RateLimit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.Start(ctx)

	router := buildRouter(log, cfg, sup, detect, applier, sim)

	httpServer := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start operational server", "error", err)
		}
	}()
	log.Infow("server started", "addr", httpServer.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")

	sup.Shutdown(cfg.Supervisor.ShutdownGracePeriod)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Supervisor.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("operational server forced to shutdown", "error", err)
	}
	log.Info("shutdown complete")
}

// buildRouter assembles the inbound webhook endpoint plus the
// Non-goal-scoped operational surface (pause/resume/trigger/status) —
// never a dashboard, just the minimal control plane the Supervisor needs.
func buildRouter(log *logger.Logger, cfg *config.Config, sup *supervisor.Supervisor, detect changedetect.Detector, applier webhook.Applier, sim dryrun.Simulator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())

	r.POST("/webhooks/erp/pricing",
		middleware.WebhookSecurityHeaders(),
		middleware.ERPWebhookValidation(log),
		webhook.Handler(applier, log, cfg.Webhook.SigningSecret),
	)

	if cfg.Monitoring.MetricsEnabled {
		r.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	ops := r.Group("/")
	{
		ops.POST("/pause", func(c *gin.Context) {
			sup.Pause()
			c.JSON(200, gin.H{"paused": true})
		})
		ops.POST("/resume", func(c *gin.Context) {
			sup.Resume(c.Request.Context())
			c.JSON(200, gin.H{"paused": false})
		})
		ops.POST("/trigger/item/:id", func(c *gin.Context) {
			id, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil {
				c.JSON(400, gin.H{"error": "invalid item id"})
				return
			}
			if err := detect.TriggerItem(uint(id), "operator", "manual trigger", "", true, true); err != nil {
				c.JSON(422, gin.H{"error": err.Error()})
				return
			}
			c.JSON(202, gin.H{"triggered": true})
		})
		ops.POST("/trigger/product/:id", func(c *gin.Context) {
			id, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil {
				c.JSON(400, gin.H{"error": "invalid product id"})
				return
			}
			if err := detect.TriggerProduct(uint(id), "operator", "manual trigger", "", true, true); err != nil {
				c.JSON(422, gin.H{"error": err.Error()})
				return
			}
			c.JSON(202, gin.H{"triggered": true})
		})
		ops.POST("/dry-run/:id", func(c *gin.Context) {
			id, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil {
				c.JSON(400, gin.H{"error": "invalid item id"})
				return
			}
			record, err := sim.Run(uint(id))
			if err != nil {
				c.JSON(422, gin.H{"error": err.Error(), "record": record})
				return
			}
			c.JSON(200, record)
		})
		ops.GET("/status", func(c *gin.Context) {
			c.JSON(200, sup.Status())
		})
	}

	return r
}
