package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uhyunpark/orderflood/params"
	"github.com/uhyunpark/orderflood/pkg/api"
	"github.com/uhyunpark/orderflood/pkg/dispatch"
	"github.com/uhyunpark/orderflood/pkg/metrics"
	"github.com/uhyunpark/orderflood/pkg/order"
	"github.com/uhyunpark/orderflood/pkg/sender"
	"github.com/uhyunpark/orderflood/pkg/util"
)

func main() {
	// Load config from .env file and environment variables; flags win.
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	target := flag.String("target", cfg.Target.URL, "order endpoint URL")
	orders := flag.Int("orders", cfg.Dispatch.Orders, "number of orders to generate and send")
	batch := flag.Int("batch", cfg.Dispatch.BatchSize, "orders claimed per tick")
	tick := flag.Duration("tick", cfg.Dispatch.TickInterval, "tick interval (<=0 runs as fast as possible)")
	mode := flag.String("mode", string(cfg.Dispatch.Mode), "dispatch mode: fire-and-forget | await")
	maxInflight := flag.Int("max-inflight", cfg.Dispatch.MaxInFlight, "cap on concurrent sends in fire-and-forget mode (0 = unbounded)")
	sendTimeout := flag.Duration("send-timeout", cfg.Target.SendTimeout, "per-request timeout (0 = none)")
	seed := flag.Int64("seed", cfg.Dispatch.Seed, "order generator seed (0 = time based)")
	statusAddr := flag.String("status-addr", cfg.Node.StatusAddr, "serve /api/v1/status, /metrics and /ws on this address")
	logFile := flag.String("log-file", cfg.Node.LogFile, "also write logs to this file")
	verbose := flag.Bool("v", cfg.Node.Verbose, "log every tick")
	flag.Parse()

	cfg.Target.URL = *target
	cfg.Target.SendTimeout = *sendTimeout
	cfg.Dispatch.Orders = *orders
	cfg.Dispatch.BatchSize = *batch
	cfg.Dispatch.TickInterval = *tick
	cfg.Dispatch.MaxInFlight = *maxInflight
	cfg.Dispatch.Seed = *seed
	cfg.Node.StatusAddr = *statusAddr
	cfg.Node.LogFile = *logFile
	cfg.Node.Verbose = *verbose
	if cfg.Dispatch.Mode, err = params.ParseMode(*mode); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.Verbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("config_invalid", "err", err)
	}

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	// Orders are materialized before the first tick.
	genStart := time.Now()
	batchOrders := order.NewSeededGenerator(cfg.Dispatch.Seed).GenerateBatch(cfg.Dispatch.Orders)
	logger.Info("orders_generated",
		zap.Int("count", len(batchOrders)),
		zap.Int64("seed", cfg.Dispatch.Seed),
		zap.Duration("took", time.Since(genStart)))

	snd, err := sender.NewHTTPSender(cfg.Target.URL, sender.WithTimeout(cfg.Target.SendTimeout))
	if err != nil {
		sugar.Fatalw("sender_init_failed", "err", err)
	}
	rec := metrics.NewRecorder()

	var status *api.Server
	sched, err := dispatch.New(batchOrders, snd, dispatch.ConfigFrom(cfg.Dispatch),
		dispatch.WithLogger(logger),
		dispatch.WithRecorder(rec),
		dispatch.WithTickObserver(func(ti dispatch.TickInfo) {
			if status != nil {
				status.BroadcastProgress(ti)
			}
		}))
	if err != nil {
		sugar.Fatalw("scheduler_init_failed", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Status API (optional) ----
	if cfg.Node.StatusAddr != "" {
		status = api.NewServer(sched, rec.Registry(), runID, cfg.Target.URL, logger)
		go func() {
			if err := status.Start(cfg.Node.StatusAddr); err != nil {
				logger.Error("status_server_failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = status.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("run_starting", zap.String("target", cfg.Target.URL), zap.Int("orders", sched.Total()))

	rep, err := sched.Run(ctx)
	if err != nil {
		logger.Warn("run_interrupted", zap.Error(err), zap.Int("requests_sent", rep.Initiated))
		logger.Sync()
		os.Exit(1)
	}
	sugar.Infof("%d requests sent in %v (%d ok, %d failed)", rep.Initiated, rep.Elapsed, rep.Succeeded, rep.Failed)
}
