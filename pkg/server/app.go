package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TradeGate/internal/handler/api"
	mid "TradeGate/internal/middleware"
	"TradeGate/internal/ratelimit"
	"TradeGate/internal/usecase"
	"TradeGate/pkg/cache"
	pkgch "TradeGate/pkg/clickhouse"
	"TradeGate/pkg/config"
	xhttp "TradeGate/pkg/http"
	pkgkafka "TradeGate/pkg/kafka"
	applogger "TradeGate/pkg/logger"
)

// App encapsulates the application lifecycle: the HTTP server with the
// admission pipeline in front, the limiter's idle sweep, and the optional
// audit delivery machinery.
type App struct {
	cfg           *config.Config
	log           *applogger.Logger
	limiter       *ratelimit.Limiter
	admission     *mid.Admission
	tradeHandler  *api.TradeHandler
	limitsHandler *api.LimitsHandler
	auditProc     *usecase.AuditProcessor
	consumer      *pkgkafka.Consumer
	kh            *usecase.KafkaAuditHandler
	chClient      *pkgch.Client
	strikeCache   cache.Service
	httpServer    *xhttp.Server
}

// New creates an App with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	limiter *ratelimit.Limiter,
	admission *mid.Admission,
	tradeHandler *api.TradeHandler,
	limitsHandler *api.LimitsHandler,
	auditProc *usecase.AuditProcessor,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaAuditHandler,
	chClient *pkgch.Client,
	strikeCache cache.Service,
) *App {
	return &App{
		cfg:           cfg,
		log:           log,
		limiter:       limiter,
		admission:     admission,
		tradeHandler:  tradeHandler,
		limitsHandler: limitsHandler,
		auditProc:     auditProc,
		consumer:      consumer,
		kh:            kh,
		chClient:      chClient,
		strikeCache:   strikeCache,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handlers := xhttp.Handlers{a.tradeHandler, a.limitsHandler}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}

	a.httpServer = xhttp.NewServer(handlers, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(a.cfg.CORS.AllowOrigins),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithAdmission(a.admission.Middleware()),
	)

	// Idle-client eviction keeps limiter memory bounded over long runs.
	go a.limiter.Run(ctx)

	if a.auditProc != nil {
		go a.auditProc.Run(ctx)
		a.log.Info("audit processor started",
			applogger.String("backend", a.cfg.Audit.Backend))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Int("burst_limit", a.cfg.RateLimit.BurstLimit),
		applogger.Int("sustained_limit", a.cfg.RateLimit.SustainedLimit))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.auditProc != nil {
		// Run flushes pending events when its context is cancelled.
		a.auditProc.Wait()
		a.auditProc.Close()
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.strikeCache != nil {
		if err := a.strikeCache.Close(); err != nil {
			a.log.Warn("strike cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
