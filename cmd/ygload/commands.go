package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yieldgap-ma/yg-backend/internal/config"
	"github.com/yieldgap-ma/yg-backend/internal/geo"
	"github.com/yieldgap-ma/yg-backend/internal/ingest"
	"github.com/yieldgap-ma/yg-backend/internal/tasks"
)

func boundariesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boundaries",
		Short: "Load administrative boundaries from a shapefile",
		Long: `Load administrative boundaries from a shapefile.

Features are matched by code: new codes are created, known codes get their
geometry replaced. Geometries are reprojected to WGS84 when a .prj file is
present and simplified before storage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, d, err := openStore(cmd)
			if err != nil {
				return err
			}
			level, _ := cmd.Flags().GetString("level")
			nameField, _ := cmd.Flags().GetString("name-field")
			codeField, _ := cmd.Flags().GetString("code-field")
			tolerance, _ := cmd.Flags().GetFloat64("tolerance")

			rep, err := ingest.LoadBoundaries(cmd.Context(), d, ingest.BoundaryOptions{
				Path:      inputPath(cmd, "file", cfg, ingest.ProvinceShapefile),
				Level:     level,
				NameField: nameField,
				CodeField: codeField,
				Tolerance: tolerance,
			})
			printReport(cmd, rep)
			return err
		},
	}

	cmd.Flags().StringP("file", "f", "", "shapefile path (default: DATA_DIR/"+ingest.ProvinceShapefile+")")
	cmd.Flags().String("level", ingest.DefaultBoundaryLevel, "boundary level: country, region, province or commune")
	cmd.Flags().String("name-field", ingest.DefaultBoundaryNameField, "attribute holding the boundary name")
	cmd.Flags().String("code-field", ingest.DefaultBoundaryCodeField, "attribute holding the boundary code")
	cmd.Flags().Float64("tolerance", ingest.DefaultBoundaryTolerance, "simplification tolerance in degrees")

	return cmd
}

func parcelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parcels",
		Short: "Replace parcel points from a field survey workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, d, err := openStore(cmd)
			if err != nil {
				return err
			}
			tr, err := geo.NewMoroccoTransformer()
			if err != nil {
				return err
			}

			rep, err := ingest.LoadParcelSheet(cmd.Context(), d, inputPath(cmd, "file", cfg, ingest.ParcelWorkbook), tr)
			printReport(cmd, rep)
			return err
		},
	}

	cmd.Flags().StringP("file", "f", "", "workbook path (default: DATA_DIR/"+ingest.ParcelWorkbook+")")

	return cmd
}

func varietiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "varieties",
		Short: "Replace parcel points with variety shapefile centroids",
		Long: `Replace parcel points with one point per variety polygon centroid and year.

Each variety is read from <dir>/<Variety>.shp or <dir>/*/<Variety>.shp. A
missing variety file only skips that variety.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, d, err := openStore(cmd)
			if err != nil {
				return err
			}
			varieties, _ := cmd.Flags().GetStringSlice("variety")
			years, _ := cmd.Flags().GetIntSlice("year")

			rep, err := ingest.LoadVarietyShapefiles(cmd.Context(), d, ingest.VarietyOptions{
				Dir:       inputPath(cmd, "dir", cfg, ingest.VarietyDir),
				Varieties: varieties,
				Years:     years,
			})
			printReport(cmd, rep)
			return err
		},
	}

	cmd.Flags().String("dir", "", "variety shapefile directory (default: DATA_DIR/"+ingest.VarietyDir+")")
	cmd.Flags().StringSlice("variety", ingest.DefaultVarieties, "varieties to load")
	cmd.Flags().IntSlice("year", ingest.DefaultParcelYears, "years each centroid is recorded for")

	return cmd
}

func yieldsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "yields",
		Short: "Recompute yield gaps from the scenario workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, d, err := openStore(cmd)
			if err != nil {
				return err
			}
			provinces, err := config.LoadProvinceMap(cfg.ProvinceMapFile)
			if err != nil {
				return err
			}
			crop, _ := cmd.Flags().GetString("crop")

			rep, err := ingest.LoadYieldGaps(cmd.Context(), d, inputPath(cmd, "file", cfg, ingest.YieldWorkbook), ingest.YieldOptions{
				ProvinceMap: provinces,
				Crop:        crop,
			})
			printReport(cmd, rep)
			return err
		},
	}

	cmd.Flags().StringP("file", "f", "", "workbook path (default: DATA_DIR/"+ingest.YieldWorkbook+")")
	cmd.Flags().String("crop", "wheat", "crop the rows are stored under")

	return cmd
}

func statisticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statistics",
		Short: "Replace yield and gap statistics",
		Long: `Replace yield and gap statistics from the Yield_Statistics and
Gap_Statistics sheets of a workbook.

With --from-parcels, Observed statistics are instead derived from the stored
parcel points, per variety, province and year.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, d, err := openStore(cmd)
			if err != nil {
				return err
			}

			var rep *ingest.Report
			if fromParcels, _ := cmd.Flags().GetBool("from-parcels"); fromParcels {
				rep, err = ingest.ComputeParcelStatistics(cmd.Context(), d)
			} else {
				rep, err = ingest.LoadStatistics(cmd.Context(), d, inputPath(cmd, "file", cfg, ingest.YieldWorkbook))
			}
			printReport(cmd, rep)
			return err
		},
	}

	cmd.Flags().StringP("file", "f", "", "workbook path (default: DATA_DIR/"+ingest.YieldWorkbook+")")
	cmd.Flags().Bool("from-parcels", false, "derive statistics from parcel points")

	return cmd
}

func importCSVCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-csv <path>",
		Short: "Get-or-create yield rows from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, d, err := openStore(cmd)
			if err != nil {
				return err
			}
			n, err := tasks.ProcessYieldCSV(cmd.Context(), d, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %d records from %s\n", green.Sprint("Processed"), n, args[0])
			return nil
		},
	}
}

func bootstrapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Load every input when the store is empty",
		Long: `Load the country outline, the provinces, the variety shapefiles and the
yield workbook, in that order, when the store has no boundaries or no yields.

Usage:
  ygload bootstrap           # load only if data is missing
  ygload bootstrap --force   # load regardless`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, d, err := openStore(cmd)
			if err != nil {
				return err
			}
			provinces, err := config.LoadProvinceMap(cfg.ProvinceMapFile)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")

			res, err := ingest.Bootstrap(cmd.Context(), d, ingest.BootstrapOptions{
				DataDir:     cfg.DataDir,
				ProvinceMap: provinces,
				Force:       force,
			})
			if err != nil {
				return err
			}
			if !res.Ran {
				fmt.Printf("%s %d boundaries, %d yield records\n", green.Sprint("Data already loaded:"), res.Boundaries, res.Yields)
				return nil
			}

			for i, s := range res.Steps {
				fmt.Printf("[%d/%d] %s %s\n", i+1, len(res.Steps), stepMarker(s.Status), s.Name)
				if s.Err != nil {
					fmt.Printf("      %s\n", s.Err)
				}
				printReport(cmd, s.Report)
			}
			fmt.Printf("Final data: %d boundaries, %d yield records\n", res.Boundaries, res.Yields)
			fmt.Printf("Successfully loaded: %d/%d\n", res.Succeeded(), len(res.Steps))
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "load even when data is present")

	return cmd
}
