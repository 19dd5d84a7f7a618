package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/stimtools/stimopt/pkg/config"
	"github.com/stimtools/stimopt/pkg/engine"
	"github.com/stimtools/stimopt/pkg/logger"
	"github.com/stimtools/stimopt/pkg/report"
	"github.com/stimtools/stimopt/pkg/runs"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect past optimization runs",
	Long:  `List, inspect, export and delete runs recorded in the local history`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	RunE:  listRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a recorded run",
	Long:  `Show the montage and achieved fields of a recorded run. The ID may be any unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  showRun,
}

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a recorded run to a report file",
	Args:  cobra.ExactArgs(1),
	RunE:  exportRun,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteRun,
}

var runsRemoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "List jobs on the optimization service",
	Long:  `List the jobs the service knows about, including ones submitted from other machines`,
	RunE:  listRemoteJobs,
}

func init() {
	runsListCmd.Flags().IntP("limit", "n", 20, "maximum number of runs to list (0 for all)")
	runsExportCmd.Flags().StringP("format", "f", report.FormatXLSX, "report format (json, csv or xlsx)")
	runsExportCmd.Flags().StringP("output", "o", ".", "directory to write the report into")
	runsDeleteCmd.Flags().BoolP("yes", "y", false, "delete without confirmation")
	runsRemoteCmd.Flags().Int("page", 0, "result page to fetch")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	runsCmd.AddCommand(runsRemoteCmd)
}

func openHistory() (*runs.Store, error) {
	path, err := runs.DefaultPath()
	if err != nil {
		return nil, err
	}
	store, err := runs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, nil
}

func closeHistory(store *runs.Store) {
	if err := store.Close(); err != nil {
		logger.Errorf("Failed to close run store: %v", err)
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(store)

	records, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPROTOCOL\tENGINE\tSTATUS\tSUBMITTED")
	_, _ = fmt.Fprintln(w, "--\t----\t--------\t------\t------\t---------")

	for _, rec := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(rec.ID),
			rec.Name,
			rec.Protocol,
			rec.Engine,
			rec.Status,
			rec.SubmittedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(store)

	rec, err := store.Get(args[0])
	if err != nil {
		return err
	}

	if rec.Status != runs.StatusCompleted {
		logger.Section(rec.Name)
		logger.KeyValue("Run ID", rec.ID)
		logger.KeyValue("Status", string(rec.Status))
		logger.KeyValue("Engine", rec.Engine)
		logger.KeyValue("Submitted", rec.SubmittedAt.Local().Format("2006-01-02 15:04:05"))
		if rec.Error != "" {
			logger.KeyValue("Error", rec.Error)
		}
		return nil
	}

	report.PrintSummary(os.Stdout, report.FromRecord(rec))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(store)

	rec, err := store.Get(args[0])
	if err != nil {
		return err
	}

	if rec.Status != runs.StatusCompleted {
		return fmt.Errorf("run %s did not complete (status %s)", shortID(rec.ID), rec.Status)
	}

	format, _ := cmd.Flags().GetString("format")
	outputDir, _ := cmd.Flags().GetString("output")

	if _, err := report.Export(report.FromRecord(rec), outputDir, format); err != nil {
		return fmt.Errorf("failed to export run: %w", err)
	}
	return nil
}

func deleteRun(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(store)

	rec, err := store.Get(args[0])
	if err != nil {
		return err
	}

	if skip, _ := cmd.Flags().GetBool("yes"); !skip {
		var confirm bool
		confirmPrompt := &survey.Confirm{
			Message: fmt.Sprintf("Are you sure you want to delete run %s (%s)?", shortID(rec.ID), rec.Name),
			Default: false,
		}
		if err := survey.AskOne(confirmPrompt, &confirm); err != nil {
			return err
		}
		if !confirm {
			fmt.Println("Deletion cancelled")
			return nil
		}
	}

	if err := store.Delete(rec.ID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	logger.Successf("Run %s deleted", shortID(rec.ID))
	return nil
}

func listRemoteJobs(cmd *cobra.Command, args []string) error {
	engineCfg, apiKey, err := selectEngine()
	if err != nil {
		return fmt.Errorf("failed to select engine: %w", err)
	}
	if engineCfg.Type != config.EngineTypeRemote {
		return fmt.Errorf("engine %s is local; job listing needs an optimization service", engineCfg.Name)
	}

	eng, err := buildEngine(engineCfg, apiKey)
	if err != nil {
		return err
	}
	remote, ok := eng.(*engine.RemoteEngine)
	if !ok {
		return fmt.Errorf("engine %s does not expose a service client", engineCfg.Name)
	}

	page, _ := cmd.Flags().GetInt("page")
	listing, err := remote.Client().ListJobs(context.Background(), page)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if len(listing.Results) == 0 {
		fmt.Println("No jobs on the service")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSUBMITTED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t---------")

	for _, job := range listing.Results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			shortID(job.ID.String()),
			job.Name,
			job.Status,
			job.SubmittedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if listing.Paging.Next != nil {
		fmt.Printf("\n%d jobs total, next page: --page %d\n", listing.TotalCount, *listing.Paging.Next)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
