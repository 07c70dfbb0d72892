package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/gaze-engine/internal/api"
	"github.com/your-org/gaze-engine/internal/api/ws"
	"github.com/your-org/gaze-engine/internal/artifacts"
	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/config"
	"github.com/your-org/gaze-engine/internal/events"
	"github.com/your-org/gaze-engine/internal/executors"
	"github.com/your-org/gaze-engine/internal/faces"
	"github.com/your-org/gaze-engine/internal/observability"
	"github.com/your-org/gaze-engine/internal/pipeline"
	"github.com/your-org/gaze-engine/internal/scanner"
	"github.com/your-org/gaze-engine/internal/scheduler"
	"github.com/your-org/gaze-engine/internal/search"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := observability.SetupLogger(cfg.DataDir, cfg.Logging.Level)
	log.Info("starting gaze-engine", "port", cfg.Server.Port, "data_dir", cfg.DataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := catalog.Open(ctx, filepath.Join(cfg.DataDir, "gaze.db"), log)
	if err != nil {
		log.Error("open catalog", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	art, err := artifacts.Open(cfg.DataDir)
	if err != nil {
		log.Error("open artifacts store", "error", err)
		os.Exit(1)
	}

	bus, err := events.Open(ctx, cfg.DataDir, log)
	if err != nil {
		log.Error("open event bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		log.Error("onnx runtime init", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	shards := artifacts.NewShardCache(art, 64)

	matcher := faces.NewMatcher(store)
	if err := matcher.Reload(ctx); err != nil {
		log.Warn("initial face matcher reload", "error", err)
	}

	pipe, err := pipeline.NewPipeline(pipeline.Config{
		ModelsDir:         cfg.Vision.ModelsDir,
		WhisperBinaryPath: cfg.Vision.WhisperBinaryPath,
		IntraOpThreads:    cfg.Vision.IntraOpThreads,
		InterOpThreads:    cfg.Vision.InterOpThreads,
	}, store, art, shards, matcher, bus, log)
	if err != nil {
		log.Error("init pipeline", "error", err)
		os.Exit(1)
	}

	embedder, err := executors.NewImageEmbedder(cfg.Vision.ModelsDir)
	if err != nil {
		log.Warn("image embedder init failed — visual search will be unavailable", "error", err)
	}

	scan := scanner.New(store, art, log)
	planner := search.NewPlanner(store, embedder, shards)

	sched := scheduler.New(store, pipe, log)
	sched.Start(ctx)
	defer sched.Stop()

	hub := ws.NewHub(bus, cfg.Server.BearerToken, log)

	router := api.NewRouter(api.RouterConfig{
		BearerToken: cfg.Server.BearerToken,
		Store:       store,
		Artifacts:   art,
		Scanner:     scan,
		Scheduler:   sched,
		Matcher:     matcher,
		Planner:     planner,
		Hub:         hub,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.BindAddr, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gaze-engine...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	log.Info("gaze-engine stopped")
}

func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
