package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/offloadhq/offload/internal/config"
	"github.com/offloadhq/offload/pkg/jobstore"
	"github.com/offloadhq/offload/pkg/manifest"
	"github.com/offloadhq/offload/pkg/orchestrator"
	"github.com/offloadhq/offload/pkg/remote/kaggle"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Run a single job from a manifest and wait for the result",
	Long: `Submit one job described by a YAML or JSON manifest, wait for the
remote run to finish, and copy the result next to the input.

Example:
  offload submit --job job.yaml
  offload submit --job job.yaml --output ./result.mp4
  offload submit --input clip.mov --directive "transcode to 720p"`,
	RunE: runSubmit,
}

var (
	submitJobPath   string
	submitInput     string
	submitDirective string
	submitOutput    string
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&submitJobPath, "job", "j", "", "Path to job manifest")
	submitCmd.Flags().StringVarP(&submitInput, "input", "i", "", "Input file (alternative to --job)")
	submitCmd.Flags().StringVarP(&submitDirective, "directive", "d", "", "Processing directive (alternative to --job)")
	submitCmd.Flags().StringVarP(&submitOutput, "output", "o", "", "Where to copy the result (default: next to input)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := submitManifest()
	if err != nil {
		return err
	}

	input, err := os.ReadFile(m.Job.Input)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot read input file", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
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
	orch := orchestrator.New(jobstore.NewRegistry(), workspace, platform, cliLog, orchestrator.Config{
		GraceWait:      cfg.Orchestrator.GraceWait,
		PollInterval:   cfg.Orchestrator.PollInterval,
		PollBudget:     cfg.Orchestrator.PollBudget,
		OutputPattern:  m.Result.OutputPattern,
		RateLimit:      cfg.Orchestrator.RateLimit,
		EnableGPU:      m.Kernel.EnableGPU,
		EnableInternet: m.Kernel.EnableInternet,
	})

	filename := m.Job.Filename
	if filename == "" {
		filename = filepath.Base(m.Job.Input)
	}

	jobID, err := orch.Submit(ctx, input, m.Job.Directive, filename, m.Job.Params)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Submission rejected", err)
	}

	fmt.Printf("job %s submitted (%d bytes, %q)\n", jobID, len(input), m.Job.Directive)

	status, err := waitForJob(cmd, orch, jobID)
	if err != nil {
		return err
	}

	if status.Status == "error" {
		return exitError(foundry.ExitExternalServiceUnavailable, "Job failed", fmt.Errorf("%s", status.Error))
	}

	resultPath, err := orch.ResultPath(jobID)
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Result missing after completion", err)
	}

	dest := submitOutput
	if dest == "" {
		dest = filepath.Join(filepath.Dir(m.Job.Input), jobID+"-"+filepath.Base(resultPath))
	}
	if err := copyResult(resultPath, dest); err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot copy result", err)
	}

	fmt.Printf("job %s done: %s\n", jobID, dest)
	return nil
}

// submitManifest resolves the effective manifest from --job or from the
// --input/--directive shorthand.
func submitManifest() (*manifest.Manifest, error) {
	if submitJobPath != "" {
		m, err := manifest.Load(submitJobPath)
		if err != nil {
			cliLog.Error("Failed to load manifest",
				zap.String("path", submitJobPath),
				zap.Error(err))
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
		}
		m.ApplyDefaults()
		return m, nil
	}

	if submitInput == "" || submitDirective == "" {
		return nil, exitError(foundry.ExitInvalidArgument, "Missing arguments",
			fmt.Errorf("either --job or both --input and --directive are required"))
	}

	m := &manifest.Manifest{
		Version: manifest.DefaultVersion,
		Job: manifest.JobConfig{
			Input:     submitInput,
			Directive: submitDirective,
		},
	}
	m.ApplyDefaults()
	return m, nil
}

// waitForJob polls the job projection until it reaches a terminal state,
// reporting transitions on stdout.
func waitForJob(cmd *cobra.Command, orch *orchestrator.Orchestrator, jobID string) (*orchestrator.ExternalStatus, error) {
	ctx := cmd.Context()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastStatus := ""
	for {
		select {
		case <-ctx.Done():
			return nil, exitError(foundry.ExitSignalInt, "Interrupted", ctx.Err())
		case <-ticker.C:
		}

		status, err := orch.Project(jobID)
		if err != nil {
			return nil, exitError(foundry.ExitExternalServiceUnavailable, "Cannot query job", err)
		}
		if status.Status != lastStatus {
			fmt.Printf("job %s: %s (%.0fs elapsed)\n", jobID, status.Status, status.ElapsedSec)
			lastStatus = status.Status
		}
		if status.Status == "done" || status.Status == "error" {
			return status, nil
		}
	}
}

func copyResult(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
