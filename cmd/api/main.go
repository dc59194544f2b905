package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/TrendingRelay/internal/api"
	"github.com/LJTian/TrendingRelay/internal/app"
	"github.com/LJTian/TrendingRelay/internal/config"
	"github.com/LJTian/TrendingRelay/internal/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	a, err := app.New(cfg)
	if err != nil {
		logging.L().Fatalf("init app failed: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Scheduler.Start()

	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(api.NewServer(a.Store, a.Scheduler), api.RouterOptions{
		BasicAuthUser: cfg.BasicAuthUser,
		BasicAuthPass: cfg.BasicAuthPass,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.L().Infof("starting api server at %s ...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Errorf("server exit: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logging.L().Info("shutting down ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.L().Warnf("http shutdown: %v", err)
	}

	// 等待正在执行的采集收尾
	select {
	case <-a.Scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logging.L().Warn("scheduler did not stop in time")
	}
	logging.L().Info("bye")
}
