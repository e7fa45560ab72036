package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-forge/internal/connection"
	"db-forge/internal/engine"
	"db-forge/internal/schema"
)

var (
	count  int
	clean  bool
	dryRun bool
	tables []string
	seed   int64
)

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Fill the database with random data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := openConnection(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		targetCount := viper.GetInt("settings.default_count")
		if count > 0 {
			targetCount = count
		}
		locale, err := engine.ParseLocale(viper.GetString("settings.locale"))
		if err != nil {
			return err
		}

		log.Info("Analyzing schema...")
		targetTables, err := liveTableSelection(ctx, conn)
		if err != nil {
			return err
		}

		if dryRun {
			log.Info("[SIMULATION] Dry-Run Mode Active: No data will be written.")
			sorted, _ := schema.SortTablesByFKCount(targetTables)
			fmt.Printf("Fill order:\n")
			for i, t := range sorted {
				fmt.Printf("[%02d] %s (Dependencies: %v)\n", i+1, t.Name(), dependencies(t))
			}
			return nil
		}

		if clean {
			if _, err := cleanDatabase(ctx, conn, targetTables); err != nil {
				return err
			}
		}

		log.With().Int("count", targetCount).Str("locale", string(locale)).Logger().Info("Starting fill")
		start := time.Now()

		uiprogress.Start()
		bar := uiprogress.AddBar(targetCount * len(targetTables)).AppendCompleted().PrependElapsed()
		var current string
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return fmt.Sprintf("%-20s", current)
		})

		genOpts := []engine.GeneratorOption{engine.WithLocale(locale)}
		if seed != 0 {
			genOpts = append(genOpts, engine.WithSeed(seed))
		}
		seeder := engine.NewSeeder(conn,
			engine.WithGenerator(engine.NewGenerator(genOpts...)),
			engine.WithSeedLogger(log),
			engine.WithFillProgress(func(t *schema.Table, _, _ int) {
				current = t.Name()
				bar.Incr()
			}))

		results, err := seeder.Fill(ctx, targetTables, targetCount)
		uiprogress.Stop()
		if err != nil {
			return err
		}

		verified := seeder.Verify(ctx, targetTables, results)
		printFillReport(verified)
		log.Infof("Fill Done! Time Elapsed: %s", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// liveTableSelection reads the live tables and applies --tables.
func liveTableSelection(ctx context.Context, conn *connection.DB) ([]*schema.Table, error) {
	ds, err := loadStructure(ctx, liveSource, conn)
	if err != nil {
		return nil, err
	}
	return selectTables(ds.Tables(), tables)
}

func dependencies(t *schema.Table) []string {
	var out []string
	for _, fk := range t.ForeignKeys() {
		if target := fk.Target(); target != nil && target != t {
			out = append(out, target.Name())
		}
	}
	return out
}

func printFillReport(results []engine.FillResult) {
	fmt.Println("\nSummary Report (Dependency Order):")
	total := 0
	for i, r := range results {
		icon, paint := "✓", green
		if r.Status != engine.StatusOK {
			icon, paint = "!", red
		}
		paint.Printf("[%s] ", icon)
		fmt.Printf("[%02d/%02d] %-20s : %d rows (Target: %d) - %s\n",
			i+1, len(results), r.Table, r.Actual, r.Target, r.Status)
		if r.Message != "" {
			fmt.Printf("    └ %s\n", r.Message)
		}
		total += r.Actual
	}
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Total Rows: %d\n", total)
}

func init() {
	RootCmd.AddCommand(fillCmd)

	fillCmd.Flags().IntVar(&count, "count", 0, "Number of records to generate per table (overrides config)")
	fillCmd.Flags().BoolVar(&clean, "clean", false, "Clean tables before filling")
	fillCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Simulate the process without writing to DB")
	fillCmd.Flags().StringSliceVarP(&tables, "tables", "t", []string{}, "Specific tables to fill (comma-separated)")
	fillCmd.Flags().String("locale", "", "language of generated text: ko or en")
	fillCmd.Flags().Int64Var(&seed, "seed", 0, "seed for repeatable data (0 picks a random one)")

	_ = viper.BindPFlag("settings.locale", fillCmd.Flags().Lookup("locale"))
	viper.SetDefault("settings.default_count", 100)
	viper.SetDefault("settings.locale", string(engine.LocaleKorean))
}
