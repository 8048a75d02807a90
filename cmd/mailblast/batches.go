package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleanearth/mailblast/internal/batch"
	"github.com/cleanearth/mailblast/internal/config"
)

var (
	batchesLimit int
	batchesDir   string
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect stored campaign batch records",
}

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaign batches, newest first",
	RunE:  runBatchesList,
}

var batchesShowCmd = &cobra.Command{
	Use:   "show <campaign-id>",
	Short: "Show one campaign batch summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchesShow,
}

var batchesLogCmd = &cobra.Command{
	Use:   "log <campaign-id>",
	Short: "Print the send log of one campaign batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchesLog,
}

func init() {
	batchesCmd.PersistentFlags().StringVarP(&batchesDir, "dir", "d", "", "batch directory (overrides config)")
	batchesListCmd.Flags().IntVar(&batchesLimit, "limit", 20, "maximum number of batches to list (0 = all)")
	batchesCmd.AddCommand(batchesListCmd, batchesShowCmd, batchesLogCmd)
}

func openBatchStore() (*batch.Store, error) {
	if batchesDir != "" {
		return batch.NewStore(batchesDir)
	}
	if cfgFile == "" {
		return nil, fmt.Errorf("config file or batch directory is required (use -c or -d)")
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return batch.NewStore(cfg.Storage.BatchDir)
}

func runBatchesList(cmd *cobra.Command, args []string) error {
	store, err := openBatchStore()
	if err != nil {
		return err
	}

	summaries, err := store.List(batchesLimit)
	if err != nil {
		return fmt.Errorf("failed to list batches: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Println("No campaign batches found")
		return nil
	}

	fmt.Printf("%-36s  %-19s  %6s  %7s  %7s  %s\n",
		"CAMPAIGN ID", "STARTED", "TOTAL", "OK", "FAILED", "SUBJECT")
	for _, s := range summaries {
		fmt.Printf("%-36s  %-19s  %6d  %7d  %7d  %s\n",
			s.CampaignID,
			s.StartTime.Format("2006-01-02 15:04:05"),
			s.TotalEmails,
			s.SuccessfulEmails,
			s.FailedEmails,
			s.Subject,
		)
	}
	return nil
}

func runBatchesShow(cmd *cobra.Command, args []string) error {
	store, err := openBatchStore()
	if err != nil {
		return err
	}

	sum, err := store.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get batch: %w", err)
	}
	if sum == nil {
		return fmt.Errorf("campaign %s not found", args[0])
	}

	fmt.Printf("Campaign:     %s\n", sum.CampaignID)
	fmt.Printf("Subject:      %s\n", sum.Subject)
	fmt.Printf("Template:     %s\n", sum.Template)
	fmt.Printf("Source:       %s\n", sum.Source)
	if sum.FileName != "" {
		fmt.Printf("File:         %s\n", sum.FileName)
	}
	fmt.Printf("From:         %s\n", sum.FromEmail)
	fmt.Printf("Started:      %s\n", sum.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("Finished:     %s\n", sum.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration:     %s\n", sum.ProcessingTime)
	fmt.Printf("Total:        %d\n", sum.TotalEmails)
	fmt.Printf("Successful:   %d\n", sum.SuccessfulEmails)
	fmt.Printf("Failed:       %d\n", sum.FailedEmails)
	fmt.Printf("Success rate: %s\n", sum.SuccessRate)

	if sum.FailedEmails > 0 {
		fmt.Println("\nFailures:")
		for _, rec := range sum.Recipients {
			if rec.Status == batch.StatusFailed {
				fmt.Printf("  %-40s %s\n", rec.Email, rec.Error)
			}
		}
	}
	return nil
}

func runBatchesLog(cmd *cobra.Command, args []string) error {
	store, err := openBatchStore()
	if err != nil {
		return err
	}

	logText, err := store.ReadLog(args[0])
	if err != nil {
		return fmt.Errorf("failed to read batch log: %w", err)
	}
	if logText == "" {
		return fmt.Errorf("no log found for campaign %s", args[0])
	}

	fmt.Print(logText)
	return nil
}
