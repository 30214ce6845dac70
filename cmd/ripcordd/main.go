// Command ripcordd is the ripcord daemon: it watches optical drives,
// inspects inserted discs, and runs queued rip jobs.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"ripcord/internal/config"
	"ripcord/internal/daemon"
	"ripcord/internal/drives"
	"ripcord/internal/executor"
	"ripcord/internal/inspection"
	"ripcord/internal/ipc"
	"ripcord/internal/logging"
	"ripcord/internal/notifications"
	"ripcord/internal/queue"
	"ripcord/internal/services/makemkv"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	outputDir := flag.String("output-dir", "", "override the configured output directory")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *outputDir != "" {
		expanded, err := config.ExpandPath(*outputDir)
		if err != nil {
			log.Fatalf("resolve output dir: %v", err)
		}
		cfg.Paths.OutputDir = expanded
		if err := cfg.EnsureDirectories(); err != nil {
			log.Fatalf("create output dir: %v", err)
		}
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return
	}

	client, err := makemkv.New(cfg.MakemkvBinary(), cfg.MakeMKV.InfoTimeout, cfg.MakeMKV.RipTimeout, cfg.MakeMKV.MinTitleSeconds)
	if err != nil {
		logger.Error("init makemkv client", logging.Error(err))
		return
	}

	notifier := notifications.NewService(cfg)
	registry := drives.NewRegistry(client, logger)
	inspector := inspection.NewInspector(client, logger)
	exec := executor.New(cfg, store, registry, client, notifier, logger)

	d, err := daemon.New(cfg, store, registry, inspector, exec, notifier, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("ripcordd shutting down")
}
