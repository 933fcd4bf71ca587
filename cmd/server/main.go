// cmd/server/main.go
// atomicwriterd – serves a rooted atomic file store over gRPC, with
// Prometheus metrics and an optional catalog snapshot mode.

package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dattu/atomicwriter/pkg/config"
	"github.com/dattu/atomicwriter/pkg/logging"
	"github.com/dattu/atomicwriter/pkg/metrics"
	"github.com/dattu/atomicwriter/pkg/rpc"
	"github.com/dattu/atomicwriter/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

/* ------------------------------------------------------------------------ */
/* main                                                                     */
/* ------------------------------------------------------------------------ */

func main() {
	/* flags */
	cfgPath := flag.String("config", "", "YAML config file (optional)")
	snapshot := flag.String("snapshot", "", "write a catalog snapshot to this path & exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	collectors := metrics.New()
	collectors.MustRegister(prometheus.DefaultRegisterer)

	store, err := storage.Open(storage.Options{
		Root:     cfg.Storage.Root,
		Catalog:  cfg.Storage.Catalog,
		FileMode: cfg.Storage.FileMode,
		DirMode:  cfg.Storage.DirMode,
		SyncDir:  cfg.Storage.SyncDir,
		Metrics:  collectors,
	})
	if err != nil {
		log.Fatalf("storage.Open: %v", err)
	}
	defer store.Close()

	if *snapshot != "" {
		if _, err := store.Snapshot(*snapshot); err != nil {
			log.Fatalf("snapshot: %v", err)
		}
		return
	}

	/* /metrics endpoint */
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Infof("Prometheus metrics on %s/metrics", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics listener: %v", err)
		}
	}()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	grpcServer := grpc.NewServer()
	rpc.Register(grpcServer, rpc.NewServer(store, cfg.Storage.Overwrite))

	/* graceful stop so the catalog batcher gets flushed */
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.WithField("signal", s.String()).Info("shutting down")
		grpcServer.GracefulStop()
	}()

	log.WithFields(log.Fields{
		"root":      store.Root(),
		"catalog":   cfg.Storage.Catalog,
		"grpc_port": cfg.Server.GRPCPort,
		"overwrite": cfg.Storage.Overwrite,
	}).Info("atomicwriterd serving")
	if err := grpcServer.Serve(lis); err != nil {
		log.Errorf("serve: %v", err)
	}
}
