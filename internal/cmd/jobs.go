package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offloadhq/offload/pkg/jobstore"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect local job directories",
	Long: `Inspect the on-disk job workspace.

This command group is designed to be script-friendly:

- stable job ids
- predictable on-disk locations
- optional JSON output for machine parsing

It reads the local workspace only; it does not contact the remote
platform. Use the server API for live status.`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs in the local workspace",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Show on-disk status for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsLogsCmd = &cobra.Command{
	Use:   "logs <job_id>",
	Short: "Show the event log for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsLogs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsLogsCmd)

	jobsCmd.PersistentFlags().String("jobs-root", "", "Job working directory root (default from config)")
	jobsListCmd.Flags().Bool("json", false, "Output as JSON")
	jobsStatusCmd.Flags().Bool("json", false, "Output as JSON")
	jobsLogsCmd.Flags().Int("tail", 0, "Show last N events (0 = all)")
}

func jobsWorkspace(cmd *cobra.Command) *jobstore.Workspace {
	root, _ := cmd.Flags().GetString("jobs-root")
	if root == "" {
		root = viper.GetString("jobs_root")
	}
	return jobstore.NewWorkspace(root)
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ws := jobsWorkspace(cmd)
	dirs, err := ws.ListDirs()
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot read jobs root", err)
	}
	if len(dirs) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "No jobs found")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dirs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "JOB ID\tCREATED\tOUTPUT\tDIRECTIVE")
	for _, d := range dirs {
		output := "-"
		if d.HasOutput {
			output = "yes"
		}
		directive := d.Directive
		if directive == "" {
			directive = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			d.JobID,
			d.CreatedAt.UTC().Format(time.RFC3339),
			output,
			shortDirective(directive),
		)
	}

	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	jobID := strings.TrimSpace(args[0])
	if jobID == "" {
		return exitError(foundry.ExitInvalidArgument, "Invalid arguments", fmt.Errorf("job_id is required"))
	}

	ws := jobsWorkspace(cmd)
	dirs, err := ws.ListDirs()
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot read jobs root", err)
	}

	for _, d := range dirs {
		if d.JobID != jobID {
			continue
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		}

		_, _ = fmt.Fprintf(os.Stdout, "job_id=%s\n", d.JobID)
		_, _ = fmt.Fprintf(os.Stdout, "created_at=%s\n", d.CreatedAt.UTC().Format(time.RFC3339))
		_, _ = fmt.Fprintf(os.Stdout, "has_output=%v\n", d.HasOutput)
		if d.Directive != "" {
			_, _ = fmt.Fprintf(os.Stdout, "directive=%s\n", d.Directive)
		}
		if d.HasOutput {
			_, _ = fmt.Fprintf(os.Stdout, "output_path=%s\n", ws.OutputPath(d.JobID))
		}
		return nil
	}

	return exitError(foundry.ExitFileNotFound, "Job not found", fmt.Errorf("no job directory for %s", jobID))
}

func runJobsLogs(cmd *cobra.Command, args []string) error {
	tail, _ := cmd.Flags().GetInt("tail")
	jobID := strings.TrimSpace(args[0])
	if jobID == "" {
		return exitError(foundry.ExitInvalidArgument, "Invalid arguments", fmt.Errorf("job_id is required"))
	}

	ws := jobsWorkspace(cmd)
	f, err := os.Open(ws.EventsPath(jobID))
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "No event log for job", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot read event log", err)
	}

	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(os.Stdout, line)
	}
	return nil
}

func shortDirective(d string) string {
	d = strings.TrimSpace(d)
	if len(d) <= 48 {
		return d
	}
	return d[:45] + "..."
}
