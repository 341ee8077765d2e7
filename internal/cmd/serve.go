package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/offloadhq/offload/internal/config"
	"github.com/offloadhq/offload/internal/observability"
	"github.com/offloadhq/offload/internal/server"
	"github.com/offloadhq/offload/internal/server/handlers"
	"github.com/offloadhq/offload/pkg/jobstore"
	"github.com/offloadhq/offload/pkg/mirror"
	"github.com/offloadhq/offload/pkg/orchestrator"
	"github.com/offloadhq/offload/pkg/remote/kaggle"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job API server",
	Long: `Run the HTTP server exposing job submission, status, and result
retrieval, plus health and version endpoints.

Configuration is read from offload.yaml, OFFLOAD_* environment
variables, and the flags below (highest precedence).`,
	RunE: runServe,
}

var (
	serveHost     string
	servePort     int
	serveJobsRoot string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveJobsRoot, "jobs-root", "", "Job working directory root (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	overrides := map[string]any{}
	if serveHost != "" {
		overrides["server"] = map[string]any{"host": serveHost}
	}
	if servePort != 0 {
		srv, _ := overrides["server"].(map[string]any)
		if srv == nil {
			srv = map[string]any{}
		}
		srv["port"] = servePort
		overrides["server"] = srv
	}
	if serveJobsRoot != "" {
		overrides["jobs_root"] = serveJobsRoot
	}

	cfg, err := config.Load(ctx, overrides)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := os.MkdirAll(cfg.JobsRoot, 0o755); err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot create jobs root", err)
	}

	platform, err := kaggle.New(kaggle.Config{
		BaseURL:     cfg.Kaggle.BaseURL,
		HTTPTimeout: cfg.Kaggle.HTTPTimeout,
	})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Cannot initialize remote platform client", err)
	}
	defer func() { _ = platform.Close() }()

	workspace := jobstore.NewWorkspace(cfg.JobsRoot)
	orch := orchestrator.New(jobstore.NewRegistry(), workspace, platform, logger, orchestrator.Config{
		GraceWait:      cfg.Orchestrator.GraceWait,
		PollInterval:   cfg.Orchestrator.PollInterval,
		PollBudget:     cfg.Orchestrator.PollBudget,
		OutputPattern:  cfg.Orchestrator.OutputPattern,
		RateLimit:      cfg.Orchestrator.RateLimit,
		EnableGPU:      cfg.Orchestrator.EnableGPU,
		EnableInternet: cfg.Orchestrator.EnableInternet,
	})

	if cfg.Mirror.Enabled {
		m, err := mirror.New(ctx, mirror.Config{
			Bucket:         cfg.Mirror.Bucket,
			Prefix:         cfg.Mirror.Prefix,
			Region:         cfg.Mirror.Region,
			Endpoint:       cfg.Mirror.Endpoint,
			Profile:        cfg.Mirror.Profile,
			ForcePathStyle: cfg.Mirror.ForcePathStyle,
		})
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Cannot initialize output mirror", err)
		}
		orch.WithArchiver(m)
		logger.Info("output mirroring enabled", zap.String("bucket", cfg.Mirror.Bucket))
	}

	handlers.InitHealthManager(versionInfo.Version)
	manager := handlers.GetHealthManager()
	manager.RegisterChecker("platform", platformHealthChecker{account: platform.Account()})
	manager.RegisterChecker("workspace", workspaceHealthChecker{root: cfg.JobsRoot})

	srv := server.New(cfg.Server.Host, cfg.Server.Port,
		server.WithOrchestrator(orch),
		server.WithLogger(logger),
		server.WithVersionInfo(handlers.VersionInfo{
			Version: versionInfo.Version,
			Commit:  versionInfo.Commit,
			Date:    versionInfo.BuildDate,
		}),
	)

	logger.Info("starting offload server",
		zap.String("addr", srv.Addr()),
		zap.String("jobs_root", cfg.JobsRoot),
		zap.String("version", versionInfo.Version))

	serveErr := srv.Start(ctx)

	// Give in-flight job goroutines a bounded window to observe the
	// cancellation and record terminal states.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("orchestrator shutdown incomplete", zap.Error(err))
	}

	if serveErr != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", serveErr)
	}
	return nil
}

// platformHealthChecker verifies the remote platform client resolved an
// account at startup.
type platformHealthChecker struct {
	account string
}

func (c platformHealthChecker) CheckHealth(ctx context.Context) error {
	if c.account == "" {
		return fmt.Errorf("remote platform account not configured")
	}
	return nil
}

// workspaceHealthChecker verifies the jobs root is still present and
// a directory.
type workspaceHealthChecker struct {
	root string
}

func (c workspaceHealthChecker) CheckHealth(ctx context.Context) error {
	info, err := os.Stat(c.root)
	if err != nil {
		return fmt.Errorf("jobs root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("jobs root is not a directory: %s", c.root)
	}
	return nil
}
