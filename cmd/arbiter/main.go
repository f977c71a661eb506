// Command arbiter runs the competition server: HTTP API, websocket fan-out
// and the sandboxed judging pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"arbiter/internal/auth"
	"arbiter/internal/clock"
	"arbiter/internal/events"
	"arbiter/internal/history"
	"arbiter/internal/judge"
	"arbiter/internal/mq"
	"arbiter/internal/packet"
	"arbiter/internal/sandbox/engine"
	"arbiter/internal/sandbox/runner"
	"arbiter/internal/sandbox/security"
	"arbiter/internal/server"
	"arbiter/internal/status"
	"arbiter/internal/storage"
	"arbiter/internal/ws"
	"arbiter/pkg/utils/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "arbiter: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logger); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pkt, err := loadPacket(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info(ctx, "competition packet loaded",
		zap.String("name", pkt.Name),
		zap.Int("problems", len(pkt.Problems)),
		zap.Int("languages", len(pkt.Languages)))

	langs, err := runner.NewStaticLanguages(pkt.Languages)
	if err != nil {
		return err
	}
	resolver := security.NewStaticResolver(cfg.Profiles)
	eng, err := engine.NewEngine(cfg.Engine, resolver)
	if err != nil {
		return err
	}
	sbRunner, err := runner.NewDefaultRunner(cfg.Runner, eng, langs)
	if err != nil {
		return err
	}

	hist, err := history.NewStore(cfg.History)
	if err != nil {
		return err
	}
	defer hist.Close()
	if err := hist.Ping(ctx); err != nil {
		return err
	}
	if err := hist.EnsureSchema(ctx); err != nil {
		return err
	}

	stat := status.NewRepository(cfg.Status)
	defer stat.Close()
	if err := stat.Ping(ctx); err != nil {
		return err
	}

	bus := events.NewDispatcher(0)
	bus.Start(ctx)
	defer bus.Stop()

	hub := ws.NewHub()
	bus.Subscribe(hub)

	hooks, err := loadHooks(pkt)
	if err != nil {
		return err
	}
	bus.Subscribe(hooks)

	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(cfg.Kafka.Config)
		if err != nil {
			return err
		}
		defer producer.Close()
		bus.Subscribe(producer)
	}

	registry := judge.NewRegistry(cfg.Judge.MaxInFlight)
	executor := judge.NewExecutor(sbRunner, pkt.Judge.TrimOutput)
	pipeline := judge.NewPipeline(cfg.Judge, pkt, registry, sbRunner, executor, hist, stat, hist, bus)
	defer pipeline.Shutdown()

	clk := clock.New(time.Duration(pkt.DurationMinutes) * time.Minute)
	go clk.NotifyFinished(ctx, time.Second, func() {
		logger.Info(ctx, "competition finished")
		bus.Publish(events.Event{Kind: events.KindCompetitionComplete})
	})

	authSvc, err := auth.NewService(cfg.Auth, pkt)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, pkt, pipeline, registry, hist, stat, clk, authSvc, hub, bus)
	return srv.Run(ctx)
}

func loadPacket(ctx context.Context, cfg *Config) (*packet.Packet, error) {
	path := cfg.Packet.Path
	if cfg.Packet.ObjectKey != "" {
		store, err := storage.NewMinioStorage(cfg.Storage.Config)
		if err != nil {
			return nil, err
		}
		cacheDir := cfg.Packet.CacheDir
		if cacheDir == "" {
			cacheDir = filepath.Join(os.TempDir(), "arbiter-packets")
		}
		fetcher := storage.NewPacketFetcher(store, cfg.Storage.Bucket, cacheDir)
		root, err := fetcher.Fetch(ctx, cfg.Packet.ObjectKey)
		if err != nil {
			return nil, err
		}
		path = filepath.Join(root, "packet.yaml")
	}
	return packet.Load(path)
}

func loadHooks(pkt *packet.Packet) (*events.HookRunner, error) {
	hooks := events.NewHookRunner()
	bindings := []struct {
		kind events.Kind
		path string
	}{
		{events.KindCompetitionComplete, pkt.Hooks.OnComplete},
		{events.KindCompetitionPause, pkt.Hooks.OnPause},
		{events.KindCompetitionUnpause, pkt.Hooks.OnUnpause},
		{events.KindTestEvaluation, pkt.Hooks.OnTestEvaluation},
		{events.KindSubmissionEvaluated, pkt.Hooks.OnSubmissionEvaluation},
		{events.KindAnnouncement, pkt.Hooks.OnAnnouncement},
		{events.KindCheckIn, pkt.Hooks.OnCheckIn},
	}
	for _, b := range bindings {
		if err := hooks.LoadScript(b.kind, b.path); err != nil {
			return nil, err
		}
	}
	return hooks, nil
}
