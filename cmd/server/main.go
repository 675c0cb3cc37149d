// Server runs the auth HTTP API and the gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldbook/backend/internal/audit"
	authhandler "fieldbook/backend/internal/auth/handler"
	authsvc "fieldbook/backend/internal/auth/service"
	"fieldbook/backend/internal/blacklist"
	"fieldbook/backend/internal/cleanup"
	"fieldbook/backend/internal/clock"
	"fieldbook/backend/internal/config"
	healthhandler "fieldbook/backend/internal/health/handler"
	"fieldbook/backend/internal/logging"
	"fieldbook/backend/internal/policy/engine"
	"fieldbook/backend/internal/security"
	"fieldbook/backend/internal/server"
	"fieldbook/backend/internal/server/middleware"
	sessionsvc "fieldbook/backend/internal/session/service"
	"fieldbook/backend/internal/telemetry"
	oteladapter "fieldbook/backend/internal/telemetry/otel"
	"fieldbook/backend/internal/telemetry/producer"
)

const (
	serviceName         = "fieldbook-auth"
	readinessInterval   = 10 * time.Second
	rateLimiterSweep    = time.Minute
	httpShutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewJSON(os.Stdout, cfg.LogLevel).With("service", serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := oteladapter.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("stores: %v", err)
	}
	defer st.Close()

	blStore, rdb, redisCheck, err := openBlacklist(cfg)
	if err != nil {
		log.Fatalf("blacklist: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	codec, err := newTokenCodec(cfg)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	policy, err := engine.NewOPAEvaluator(ctx, nil)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	clk := clock.System{}
	registry := sessionsvc.NewRegistry(st.sessions, clk, cfg.SessionTTL(), cfg.StoreTimeout(), logger)
	guard := blacklist.NewGuard(blStore, clk, cfg.StoreTimeout(), logger)

	otelEvents, err := oteladapter.NewEventEmitter(providers.LoggerProvider, providers.MeterProvider)
	if err != nil {
		log.Fatalf("otel events: %v", err)
	}
	events := telemetry.Fanout{otelEvents}
	kafkaProducer := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if kafkaProducer != nil {
		events = append(events, kafkaProducer)
		logger.Info(ctx, "security events published to kafka", "topic", cfg.TelemetryKafkaTopic)
	}

	svc := authsvc.NewAuthService(authsvc.Deps{
		Users:         st.users,
		RefreshTokens: st.tokens,
		Sessions:      registry,
		Blacklist:     guard,
		Tokens:        codec,
		Hasher:        security.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost),
		Clock:         clk,
		Audit:         audit.NewLogger(st.audit, middleware.ClientIPFromContext, clk, logger),
		Events:        events,
		ClientIP:      middleware.ClientIPFromContext,
		Log:           logger,
	}, cfg.RefreshTTL(), cfg.StoreTimeout())

	var checks []healthhandler.Check
	if st.conn != nil {
		checks = append(checks, healthhandler.PingerCheck("postgres", st.conn))
	}
	if redisCheck != nil {
		checks = append(checks, *redisCheck)
	}
	checks = append(checks, healthhandler.PolicyCheck(policy))
	checker := healthhandler.NewChecker(cfg.StoreTimeout(), checks...)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	router := server.NewRouter(server.HTTPDeps{
		Auth: authhandler.NewHandler(svc, cfg.CookieSecure, logger),
		Guards: authhandler.Guards{
			RateLimit: limiter.Limit,
			Auth:      middleware.RequireAuth(svc),
			Admin:     middleware.RequirePolicy(policy),
		},
		Health:  healthhandler.NewHTTP(checker),
		Metrics: middleware.NewMetrics(),
		Log:     logger,
	})
	httpSrv := server.NewHTTPServer(cfg.HTTPAddr, router)

	sweeper := cleanup.NewJob(st.tokens, registry, guard, clk, cfg.StoreTimeout(), logger)
	go cleanup.TickerScheduler{Interval: cfg.CleanupInterval()}.Run(ctx, sweeper.Run)
	go cleanup.TickerScheduler{Interval: rateLimiterSweep}.Run(ctx, func(context.Context) { limiter.Sweep() })

	hs := healthhandler.NewGRPCHealth()
	go healthhandler.RunSync(ctx, hs, checker, readinessInterval, logger)

	var grpcSrv interface{ GracefulStop() }
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("listen grpc: %v", err)
		}
		s := server.NewGRPCServer(hs)
		grpcSrv = s
		go func() {
			logger.Info(ctx, "gRPC health server listening", "addr", cfg.GRPCAddr)
			if err := s.Serve(lis); err != nil {
				log.Fatalf("serve grpc: %v", err)
			}
		}()
	}

	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "http shutdown", "error", err)
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	// Let in-flight async event emits finish before closing their sinks.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.Warn(shutdownCtx, "kafka producer close", "error", err)
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "otel shutdown", "error", err)
	}
	logger.Info(context.Background(), "stopped")
}
