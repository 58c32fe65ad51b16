package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a one-shot drain pass over the outbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := mustApp(ctx)
			defer a.close()

			if err := a.syncSvc.RecoverInFlight(ctx); err != nil {
				return fmt.Errorf("recover in-flight mutations: %w", err)
			}
			if err := a.syncSvc.RunOnce(ctx); err != nil {
				return fmt.Errorf("drain pass: %w", err)
			}

			stats, err := a.outbox.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("pending=%d in_progress=%d completed=%d failed=%d\n",
				stats.Pending, stats.InProgress, stats.Completed, stats.Failed)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print outbox queue depth per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := mustApp(ctx)
			defer a.close()

			stats, err := a.outbox.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("pending=%d in_progress=%d completed=%d failed=%d\n",
				stats.Pending, stats.InProgress, stats.Completed, stats.Failed)
			return nil
		},
	}
}

func newImportSurveyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-survey <file>",
		Short: "Import a YAML survey definition into the local schema store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := mustApp(ctx)
			defer a.close()

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			survey, err := a.surveySvc.ImportFromYAML(ctx, file)
			if err != nil {
				return err
			}
			fmt.Printf("imported survey %s (%d jobs)\n", survey.ID, len(survey.Jobs))
			return nil
		},
	}
}
