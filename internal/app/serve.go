package app

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"

	"github.com/mscrnt/streamops-go/internal/actions"
	"github.com/mscrnt/streamops-go/internal/api"
	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/config"
	"github.com/mscrnt/streamops-go/internal/guardrail"
	"github.com/mscrnt/streamops-go/internal/jobs"
	"github.com/mscrnt/streamops-go/internal/logger"
	"github.com/mscrnt/streamops-go/internal/mediatool"
	"github.com/mscrnt/streamops-go/internal/metrics"
	"github.com/mscrnt/streamops-go/internal/rules"
	"github.com/mscrnt/streamops-go/internal/store"
	"github.com/mscrnt/streamops-go/internal/watcher"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watcher, dispatcher, rule engine, and API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
}

func runServe(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fatalf("load config: %w", err)
	}

	logDir, _ := cfg.GetString("log_dir")
	logLevel, _ := cfg.GetString("log_level")
	if logDir != "" {
		logger.InitFile(logLevel, logDir, "streamops")
	} else {
		logger.Init(logLevel)
	}

	metricsAddr, _ := cfg.GetString("metrics_listen_addr")
	if metricsAddr != "" {
		metrics.Init(metricsAddr)
	}

	dbPath, _ := cfg.GetString("db_path")
	db, err := store.Open(dbPath)
	if err != nil {
		return fatalf("open database: %w", err)
	}
	defer db.Close()

	assetStore := assets.NewStore(db)
	roleStore := assets.NewRoleStore(db)
	ruleStore := rules.NewStore(db)

	jobQueue, err := jobs.NewQueue(db)
	if err != nil {
		return fatalf("init job queue: %w", err)
	}

	ffmpegPath, _ := cfg.GetString("ffmpeg_path")
	ffprobePath, _ := cfg.GetString("ffprobe_path")
	cacheDir, _ := cfg.GetString("cache_dir")

	prober := mediatool.NewProber(ffprobePath)
	cachingProber := mediatool.NewCachingProber(prober)
	runner := mediatool.NewRunner(ffmpegPath).WithSpawnLimit(mediatool.NewSpawnLimiter(2, 2))

	library := actions.NewLibrary(assetStore, jobQueue, cachingProber, runner, cacheDir, "")

	jobRegistry := jobs.NewRegistry()
	library.RegisterJobs(jobRegistry)

	workers := cfg.GetInt("job_workers", 2)
	dispatcher := jobs.NewDispatcher(jobQueue, jobRegistry, workers)

	guardSampleSec := cfg.GetInt("guardrail_sample_sec", 2)
	sampler := guardrail.NewSampler(time.Duration(guardSampleSec) * time.Second)

	ruleRegistry := rules.NewRegistry()
	library.RegisterRules(ruleRegistry)
	recorder := assets.NewErrorRecorder(assetStore)
	executor := rules.NewExecutor(ruleRegistry, sampler, recorder, 2*time.Second, 2*time.Minute)

	quietPeriod := time.Duration(cfg.GetInt("watcher_quiet_period", 45)) * time.Second
	reconcileInterval := time.Duration(cfg.GetInt("watcher_poll_interval", 5)) * time.Second
	fileWatcher := watcher.New(roleStore, quietPeriod, reconcileInterval)

	engine := NewRuleEngine(ruleStore, executor, fileWatcher.Files)

	apiListenAddr, _ := cfg.GetString("api_listen_addr")
	handler := &api.Handler{
		Assets:     assetStore,
		Jobs:       jobQueue,
		Dispatcher: dispatcher,
		Rules:      ruleStore,
		Config:     cfg,
		Guard:      sampler,
	}
	httpServer := &http.Server{Addr: apiListenAddr, Handler: api.NewRouter(handler)}

	sup := suture.NewSimple("streamops")
	sup.Add(fileWatcher)
	sup.Add(sampler)
	sup.Add(engine)
	sup.Add(dispatcherService{dispatcher})
	sup.Add(httpServerService{httpServer})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("streamops starting", "api_addr", apiListenAddr, "workers", workers)
	err = sup.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// dispatcherService adapts jobs.Dispatcher's Start/Stop lifecycle to
// suture.Service's ctx-driven Serve.
type dispatcherService struct {
	d *jobs.Dispatcher
}

func (s dispatcherService) Serve(ctx context.Context) error {
	s.d.Start()
	<-ctx.Done()
	s.d.Stop()
	return ctx.Err()
}

// httpServerService adapts http.Server's ListenAndServe/Shutdown lifecycle
// to suture.Service's ctx-driven Serve.
type httpServerService struct {
	server *http.Server
}

func (s httpServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	}
}
