package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title FieldSync Agent API
// @version 0.1.0
// @description Offline-first field data sync agent
// @BasePath /
// @schemes http

func main() {
	root := &cobra.Command{
		Use:           "fieldsync",
		Short:         "Offline-first field data sync agent",
		Long:          "fieldsync records local survey data changes in a durable outbox and replays them against the remote document store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newImportSurveyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
