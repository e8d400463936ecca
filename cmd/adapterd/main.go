package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"adapterd/internal/config"
	"adapterd/internal/consensus"
	"adapterd/internal/gguf"
	"adapterd/internal/host"
	"adapterd/internal/httpapi"
	"adapterd/internal/orchestrator"
	"adapterd/internal/router"
	"adapterd/internal/store"
	"adapterd/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		logLevel    string
		corsEnabled bool
		corsOrigins []string
	)
	cfg := config.Config{}

	cmd := &cobra.Command{
		Use:           "adapterd",
		Short:         "Personal assistant daemon composing one base model with swappable adapters",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fileCfg := config.Config{}
			if configPath != "" {
				var err error
				fileCfg, err = config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			merged := mergeConfig(fileCfg, cfg, cmd)
			logger := newLogger(logLevel)
			httpapi.SetCORSOptions(corsEnabled, corsOrigins,
				[]string{"GET", "POST", "DELETE", "OPTIONS"}, []string{"Content-Type"})
			return run(cmd.Context(), merged, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "Config file (.yaml, .json or .toml)")
	f.StringVar(&cfg.Addr, "addr", ":8090", "HTTP listen address")
	f.StringVar(&cfg.BaseModel, "base-model", "", "Path to the base model *.gguf")
	f.StringVar(&cfg.AdaptersDir, "adapters-dir", "~/models/adapters", "Directory to scan for adapter *.gguf files")
	f.Float64Var(&cfg.ConfidenceThreshold, "confidence-threshold", 0, "Minimum routing confidence (0=default)")
	f.StringSliceVar(&cfg.DomainPriority, "domain-priority", nil, "Domain priority order override")
	f.IntVar(&cfg.MaxQueueDepth, "max-queue-depth", 0, "Inference queue depth (0=default)")
	f.IntVar(&cfg.MaxWaitMs, "max-wait-ms", 0, "Max queue wait in milliseconds (0=default)")
	f.IntVar(&cfg.EngineCtx, "engine-ctx", 0, "Engine context size (0=engine default)")
	f.IntVar(&cfg.EngineThreads, "engine-threads", 0, "Engine thread count (0=engine default)")
	f.IntVar(&cfg.MaxTokens, "max-tokens", 0, "Default max tokens per answer")
	f.Float64Var(&cfg.Temperature, "temperature", 0, "Default sampling temperature")
	f.Float64Var(&cfg.TopP, "top-p", 0, "Default nucleus sampling cutoff")
	f.Float64Var(&cfg.DefaultScale, "default-scale", 0, "Delta scale for adapters without one")
	f.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.BoolVar(&corsEnabled, "cors-enabled", false, "Enable CORS for browser frontends")
	f.StringSliceVar(&corsOrigins, "cors-origins", nil, "Allowed CORS origins")

	return cmd
}

// mergeConfig lays explicitly-set flags over the file config.
func mergeConfig(file, flags config.Config, cmd *cobra.Command) config.Config {
	out := file
	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if set("addr") || out.Addr == "" {
		out.Addr = flags.Addr
	}
	if set("base-model") {
		out.BaseModel = flags.BaseModel
	}
	if set("adapters-dir") || out.AdaptersDir == "" {
		out.AdaptersDir = flags.AdaptersDir
	}
	if set("confidence-threshold") {
		out.ConfidenceThreshold = flags.ConfidenceThreshold
	}
	if set("domain-priority") {
		out.DomainPriority = flags.DomainPriority
	}
	if set("max-queue-depth") {
		out.MaxQueueDepth = flags.MaxQueueDepth
	}
	if set("max-wait-ms") {
		out.MaxWaitMs = flags.MaxWaitMs
	}
	if set("engine-ctx") {
		out.EngineCtx = flags.EngineCtx
	}
	if set("engine-threads") {
		out.EngineThreads = flags.EngineThreads
	}
	if set("max-tokens") {
		out.MaxTokens = flags.MaxTokens
	}
	if set("temperature") {
		out.Temperature = flags.Temperature
	}
	if set("top-p") {
		out.TopP = flags.TopP
	}
	if set("default-scale") {
		out.DefaultScale = flags.DefaultScale
	}
	return out
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if cfg.BaseModel == "" {
		return fmt.Errorf("--base-model is required (or base_model in the config file)")
	}

	// The base header pins the constraints adapters are validated against.
	hdr, err := gguf.ReadFile(cfg.BaseModel)
	if err != nil {
		return fmt.Errorf("base model: %w", err)
	}
	st := store.New(store.Config{
		BaseArch:     hdr.Architecture(),
		HiddenSize:   hdr.EmbeddingLength(),
		DefaultScale: float32(cfg.DefaultScale),
		Logger:       logger.With().Str("component", "store").Logger(),
	})
	if cfg.AdaptersDir != "" {
		n, err := st.ScanDir(cfg.AdaptersDir)
		if err != nil {
			logger.Warn().Err(err).Str("dir", cfg.AdaptersDir).Msg("adapter scan failed; starting with empty catalog")
		} else {
			logger.Info().Int("adapters", n).Str("dir", cfg.AdaptersDir).Msg("adapter catalog loaded")
		}
	}

	h := host.New(host.Config{
		Engine:        host.NewLlamaEngine(),
		EngineOptions: host.EngineOptions{CtxSize: cfg.EngineCtx, Threads: cfg.EngineThreads},
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       time.Duration(cfg.MaxWaitMs) * time.Millisecond,
		Logger:        logger.With().Str("component", "host").Logger(),
	})
	if err := h.Load(cfg.BaseModel); err != nil {
		// No base model means no service.
		return fmt.Errorf("load base model: %w", err)
	}
	defer h.Release()

	mgr := host.NewAttachmentManager(st, h)
	rt := router.New(router.Config{
		Store:     st,
		Threshold: cfg.ConfidenceThreshold,
		Priority:  parsePriority(cfg.DomainPriority),
		Logger:    logger.With().Str("component", "router").Logger(),
	})
	orch := orchestrator.New(orchestrator.Config{
		Store:      st,
		Host:       h,
		Attacher:   mgr,
		Router:     rt,
		Aggregator: consensus.New(consensus.HighestConfidence{}, logger.With().Str("component", "consensus").Logger()),
		Sink:       orchestrator.ZerologSink{Logger: logger.With().Str("component", "log").Logger()},
		DefaultSampling: types.SamplingConfig{
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		},
		Logger: logger.With().Str("component", "orchestrator").Logger(),
	})

	baseCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetLogger(logger.With().Str("component", "http").Logger())
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(orch)}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("base_model", cfg.BaseModel).Msg("adapterd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-baseCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	return nil
}

func parsePriority(names []string) []types.Domain {
	if len(names) == 0 {
		return nil
	}
	out := make([]types.Domain, 0, len(names))
	for _, n := range names {
		out = append(out, types.ParseDomain(n))
	}
	return out
}
