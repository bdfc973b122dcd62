package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yieldgap-ma/yg-backend/internal/ingest"
)

var (
	green  = color.New(color.FgGreen)
	blue   = color.New(color.FgBlue)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
)

func printReport(cmd *cobra.Command, rep *ingest.Report) {
	if rep == nil {
		return
	}
	fmt.Printf("%s %s\n", cyan.Sprint(rep.Step), rep.Source)
	fmt.Printf("  %s %d  %s %d  %s %d  %s %d  (%dms)\n",
		green.Sprint("created"), rep.Count(ingest.Created),
		blue.Sprint("updated"), rep.Count(ingest.Updated),
		yellow.Sprint("skipped"), rep.Count(ingest.Skipped),
		red.Sprint("failed"), rep.Count(ingest.Failed),
		rep.Duration.Milliseconds())

	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return
	}
	for _, r := range rep.Results {
		switch r.Outcome {
		case ingest.Skipped:
			fmt.Printf("    %s %s: %s\n", yellow.Sprint("SKIP"), r.Key, r.Reason)
		case ingest.Failed:
			fmt.Printf("    %s %s: %s\n", red.Sprint("FAIL"), r.Key, r.Reason)
		}
	}
}

func stepMarker(s ingest.StepStatus) string {
	switch s {
	case ingest.StepOK:
		return green.Sprint("✓")
	case ingest.StepSkipped:
		return yellow.Sprint("-")
	default:
		return red.Sprint("✗")
	}
}
