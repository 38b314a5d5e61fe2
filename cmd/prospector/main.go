package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/CZERTAINLY/Prospector/internal/api"
	"github.com/CZERTAINLY/Prospector/internal/config"
	"github.com/CZERTAINLY/Prospector/internal/dispatch"
	"github.com/CZERTAINLY/Prospector/internal/fetch"
	"github.com/CZERTAINLY/Prospector/internal/lang"
	"github.com/CZERTAINLY/Prospector/internal/log"
	"github.com/CZERTAINLY/Prospector/internal/pipeline"
	"github.com/CZERTAINLY/Prospector/internal/store"
	"github.com/CZERTAINLY/Prospector/internal/workspace"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfg        *config.Config
	configPath string // actual config file used (if loaded)

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is prospector.yaml in current directory")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	// never print messages
	rootCmd.SilenceErrors = true

	rootCmd.PersistentPreRunE = initProspector

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("prospector failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "prospector",
	Short:        "Scans git repositories for cryptographic assets and builds a CBOM",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve runs the HTTP API accepting and reporting scans",
	RunE:  doServe,
}

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "work runs the scan worker processing queued jobs",
	RunE:  doWork,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides the version of prospector",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("prospector: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:     %s\n", configPath)
		}
		fmt.Printf("prospector: %s\n", info.Main.Version)
		fmt.Printf("go:         %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:     %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:       %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:      %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func doServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = log.ContextAttrs(ctx, slog.Group("prospector",
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	))

	jobs, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer jobs.Close()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.Router(jobs, cfg.Database.Channel),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "api listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "shutting down api", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down api: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func doWork(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateWork(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = log.ContextAttrs(ctx, slog.Group("prospector",
		slog.String("cmd", "work"),
		slog.Int("pid", os.Getpid()),
	))

	jobs, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer jobs.Close()

	listener := store.NewListener(cfg.Database.URL, cfg.Database.Channel)
	defer listener.Close(context.Background())

	p := pipeline.New(
		jobs,
		workspace.Manager{Root: cfg.Worker.WorkspaceRoot},
		fetch.New(cfg.Git.Binary, cfg.Git.Timeout),
		lang.New(cfg.Detector.Command, cfg.Scanner.RulesDir, cfg.Detector.Timeout),
		pipeline.Scanner{
			Command: cfg.Scanner.Command,
			Timeout: cfg.Scanner.Timeout,
		},
		cfg.Worker.JobTimeout,
	)

	d := dispatch.New(listener, jobs, p,
		cfg.Worker.Concurrency,
		cfg.Worker.WaitTimeout,
		cfg.Worker.SweepInterval,
	)

	slog.InfoContext(ctx, "worker started",
		"concurrency", cfg.Worker.Concurrency,
		"channel", cfg.Database.Channel,
	)
	return d.Run(ctx)
}

func initProspector(_ *cobra.Command, _ []string) error {
	// a missing .env is fine, it only has to win over nothing
	_ = godotenv.Load()

	if envConfig, ok := os.LookupEnv("PROSPECTOR_CONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else if exists("prospector.yaml") {
		configPath = "prospector.yaml"
	}

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	// --verbose has a precedence over config file
	level := log.ParseLevel(cfg.Logging.Level)
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(level, cfg.Logging.Format))

	slog.Debug("prospector starting", "configPath", configPath)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
