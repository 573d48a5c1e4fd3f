package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/orderflood/params"
	"github.com/uhyunpark/orderflood/pkg/sink"
	"github.com/uhyunpark/orderflood/pkg/util"
)

// Local stand-in for the order-ingestion endpoint.
// SINK_DELAY_MS slows every response down.
func main() {
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.Verbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	srv := sink.NewServer(logger)
	srv.Delay = cfg.Node.SinkDelay

	httpSrv := &http.Server{
		Addr:              cfg.Node.SinkAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("sink_listening", zap.String("addr", cfg.Node.SinkAddr), zap.Duration("delay", srv.Delay))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("sink_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	st := srv.Snapshot()
	logger.Info("sink_stopped", zap.Int64("accepted", st.Accepted), zap.Int64("rejected", st.Rejected))
}
