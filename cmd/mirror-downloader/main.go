package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openmirror/mirror-downloader/internal/checkpoint"
	"github.com/openmirror/mirror-downloader/internal/config"
	"github.com/openmirror/mirror-downloader/internal/downloader"
	"github.com/openmirror/mirror-downloader/internal/logging"
	"github.com/openmirror/mirror-downloader/internal/metrics"
	"github.com/openmirror/mirror-downloader/internal/objstore"
	"github.com/openmirror/mirror-downloader/internal/stop"
	"github.com/openmirror/mirror-downloader/internal/streamfile"
)

func main() {
	configPath := flag.String("config", "./config/downloader.yaml", "path to YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging)
	log := logging.Component("main")
	log.Info("mirror downloader starting",
		"version", downloader.Version, "git_sha", downloader.GitSHA)

	if cfg.Metrics.Enabled {
		metrics.Init("")
		go func() {
			log.Info("metrics listening", "address", cfg.Metrics.Address)
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := stop.New(cfg.Download.StopFile)

	// First signal requests a cooperative stop: scans end at the next
	// loop boundary and in-flight downloads complete. A second signal
	// cancels outright.
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		s := <-ch
		log.Info("received signal, stopping cooperatively", "signal", s.String())
		sig.Raise()
		s = <-ch
		log.Info("received second signal, cancelling", "signal", s.String())
		cancel()
	}()

	bucket, err := objstore.Open(ctx, cfg.Storage)
	if err != nil {
		log.Error("failed to open bucket", "error", err)
		os.Exit(1)
	}
	defer bucket.Close()

	cps, err := checkpoint.Open(cfg.Download.CheckpointDir, cfg.Download.LegacyConfigFile)
	if err != nil {
		log.Error("failed to open checkpoint store", "error", err)
		bucket.Close()
		os.Exit(1)
	}

	dl := downloader.New(cfg, bucket, cps, sig)

	for {
		runCycle(ctx, dl, log)

		if sig.Raised() || ctx.Err() != nil || cfg.Download.CycleInterval <= 0 {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(cfg.Download.CycleInterval):
		}
		if ctx.Err() != nil {
			break
		}
	}

	log.Info("mirror downloader stopped")
}

// runCycle runs one full download cycle: signature scans for every
// stream type, then the balance payload scan. Groupings are handed to
// the downstream verifier; failures within a cycle are already logged
// and isolated, so the loop always proceeds to the next stream.
func runCycle(ctx context.Context, dl *downloader.Downloader, log *slog.Logger) {
	for _, st := range streamfile.All() {
		groups, err := dl.RunSignatureCycle(ctx, st)
		if err != nil {
			log.Error("signature cycle did not complete",
				"stream", st.String(), "error", err)
		}
		log.Info("signature files grouped for verification",
			"stream", st.String(), "groups", len(groups))
	}

	if err := dl.RunBalanceCycle(ctx); err != nil {
		log.Error("balance cycle did not complete", "error", err)
	}
}
