// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matrixorigin/chainmap/pkg/config"
	"github.com/matrixorigin/chainmap/pkg/logutil"
)

var (
	configFile  = flag.String("cfg", "./chainmap.toml", "toml configuration used to run hashtable-bench")
	metricsAddr = flag.String("metrics", "", "serve prometheus metrics on this address while running")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config from %s, error: %s", *configFile, err.Error()))
	}
	setupLogger(cfg)

	reg := prometheus.NewRegistry()
	if *metricsAddr != "" {
		srv := startMetricsServer(*metricsAddr, reg)
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	report, err := Run(ctx, cfg, reg)
	if err != nil {
		logutil.Error("bench failed", zap.Error(err))
		os.Exit(1)
	}
	var entries, resizes int
	for _, r := range report.Results {
		entries += r.Stats.Size
		resizes += r.Stats.Resizes
	}
	logutil.Info("bench done",
		zap.Int("tables", len(report.Results)),
		zap.Int("entries", entries),
		zap.Int("resizes", resizes),
		zap.Uint64("peak-bucket-bytes", report.Peak.Bytes),
		zap.Time("peak-at", report.Peak.Time),
	)
}

func setupLogger(cfg *config.Config) {
	logutil.SetupMOLogger(&cfg.Log)
}

func startMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
