package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/api"
	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/collection"
	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/postgresql"
	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/sampler"
)

var buildtime string

func main() {
	InitLogging()
	zap.S().Infof("This is archive-monitor build date: %s", buildtime)
	InitPrometheus()

	db, err := postgresql.New(context.Background())
	if err != nil {
		zap.S().Fatalf("Failed to set up postgres: %s", err)
	}

	devices := sampler.NewSimulated(db)
	freq := collection.NewController(db)
	sched := collection.NewScheduler(freq, db, devices, clock.New())

	InitHealthCheck(db)

	autostart, err := env.GetAsBool("COLLECTION_AUTOSTART", false, false)
	if err != nil {
		zap.S().Errorf("Failed to get COLLECTION_AUTOSTART from env: %s", err)
	}
	if autostart {
		result := sched.Start(context.Background())
		if !result.Success {
			zap.S().Warnf("Autostart skipped: %s", result.Message)
		}
	}

	apiPort, err := env.GetAsInt("API_PORT", false, 80)
	if err != nil {
		zap.S().Fatalf("Failed to get API_PORT from env: %s", err)
	}
	router := api.NewRouter(freq, sched, db)
	go func() {
		if err := router.Run(fmt.Sprintf(":%d", apiPort)); err != nil {
			zap.S().Fatalf("Failed to run REST API: %s", err)
		}
	}()

	awaitShutdown(sched, db)
}

func awaitShutdown(sched *collection.Scheduler, db *postgresql.Connection) {
	// Allow graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigs
	zap.S().Infof("Received SIG %v", sig)

	sched.Stop(context.Background())
	db.Close()
	os.Exit(0)
}

func InitLogging() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	_ = logger.New(logLevel)
}

func InitPrometheus() {
	metricsPath := "/metrics"
	metricsPort := ":2112"
	zap.S().Debugf("Setting up metrics %s %v", metricsPath, metricsPort)

	http.Handle(metricsPath, promhttp.Handler())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(metricsPort, nil)
		if err != nil {
			zap.S().Errorf("Error starting metrics: %s", err)
		}
	}()
}

func InitHealthCheck(db *postgresql.Connection) {
	zap.S().Debugf("Setting up healthcheck")

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	health.AddReadinessCheck("database", db.HealthCheck())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe("0.0.0.0:8086", health)
		if err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()
}
