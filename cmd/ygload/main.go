package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ygload",
		Short: "ygload - load Moroccan wheat yield-gap data into the store",
		Long: `ygload reads boundary shapefiles, parcel and yield workbooks and statistics
sheets, and writes them to the database named by DATABASE_URL.

Input paths default to the layout under DATA_DIR (default: data).`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("db", "", "database URL (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "list every skipped and failed record")

	rootCmd.AddCommand(boundariesCmd())
	rootCmd.AddCommand(parcelsCmd())
	rootCmd.AddCommand(varietiesCmd())
	rootCmd.AddCommand(yieldsCmd())
	rootCmd.AddCommand(statisticsCmd())
	rootCmd.AddCommand(importCSVCmd())
	rootCmd.AddCommand(bootstrapCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
