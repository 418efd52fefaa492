package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mktbiz-byte/cnec-platform/internal/aggregate"
	"github.com/mktbiz-byte/cnec-platform/internal/export"
	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

var creatorsCmd = &cobra.Command{
	Use:   "creators",
	Short: "Work with the aggregated creator directory",
}

var creatorsListCmd = &cobra.Command{
	Use:   "list [region]",
	Short: "List creators, aggregated across regions or for one region",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agg, clients, aggCache, err := initAggregator(cmd.Context())
		if err != nil {
			return err
		}
		defer clients.Close()
		if aggCache != nil {
			defer aggCache.Close()
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "REGION\tID\tNAME\tINSTAGRAM\tFOLLOWERS")

		if len(args) == 1 {
			r, err := model.ParseRegion(args[0])
			if err != nil {
				return err
			}
			for _, c := range agg.CreatorsByRegion(cmd.Context(), r) {
				printCreatorRow(w, c)
			}
			return nil
		}

		result, err := agg.AggregateCreators(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range result.All() {
			printCreatorRow(w, c)
		}
		return nil
	},
}

var creatorsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-region and per-platform creator counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		agg, clients, aggCache, err := initAggregator(cmd.Context())
		if err != nil {
			return err
		}
		defer clients.Close()
		if aggCache != nil {
			defer aggCache.Close()
		}

		result, err := agg.AggregateCreators(cmd.Context())
		if err != nil {
			return err
		}
		stats := aggregate.Stats(result)

		fmt.Printf("total: %d\n", stats.Total)
		for _, r := range model.AllRegions {
			fmt.Printf("  %-8s %d\n", r, stats.ByRegion[r])
		}
		for _, platform := range []string{"instagram", "youtube", "tiktok"} {
			fmt.Printf("  %-8s %d linked\n", platform, stats.ByPlatform[platform])
		}
		return nil
	},
}

var exportOutPath string

var creatorsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the creator directory to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		agg, clients, aggCache, err := initAggregator(cmd.Context())
		if err != nil {
			return err
		}
		defer clients.Close()
		if aggCache != nil {
			defer aggCache.Close()
		}

		result, err := agg.AggregateCreators(cmd.Context())
		if err != nil {
			return err
		}

		f, err := os.Create(exportOutPath)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := export.WriteCreatorsXLSX(f, result); err != nil {
			return err
		}
		fmt.Printf("wrote %d creators to %s\n", result.Total, exportOutPath)
		return nil
	},
}

var creatorsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the central creator snapshot table from the regions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		agg, clients, aggCache, err := initAggregator(ctx)
		if err != nil {
			return err
		}
		defer clients.Close()

		result, err := agg.AggregateCreators(ctx)
		if err != nil {
			return err
		}

		n, err := st.UpsertCreators(ctx, result.All())
		if err != nil {
			return err
		}

		// The snapshot changed; the next dashboard load should refetch.
		if aggCache != nil {
			aggCache.Invalidate(ctx)
			aggCache.Close()
		}

		zap.L().Info("creator snapshot sync complete",
			zap.Int("fetched", result.Total),
			zap.Int("upserted", n),
		)
		fmt.Printf("synced %d of %d creators\n", n, result.Total)
		return nil
	},
}

func printCreatorRow(w *tabwriter.Writer, c model.Creator) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
		c.Region, c.ID, c.Name, c.InstagramURL, c.TotalFollowers())
}

func init() {
	creatorsExportCmd.Flags().StringVarP(&exportOutPath, "out", "o", "creators.xlsx", "output file path")
	creatorsCmd.AddCommand(creatorsListCmd, creatorsStatsCmd, creatorsExportCmd, creatorsSyncCmd)
	rootCmd.AddCommand(creatorsCmd)
}
