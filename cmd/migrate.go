package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-forge/internal/builder"
	"db-forge/internal/engine"
	"db-forge/internal/planner"
)

var (
	migrateTo     string
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the live database to schema.xml",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := openConnection(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		ref, tgt, err := loadPair(ctx, liveSource, migrateTo, conn)
		if err != nil {
			return err
		}
		p, plan, err := buildPlan(ctx, conn.Dialect(), conn, ref, tgt)
		if err != nil {
			return err
		}
		if plan.Empty() {
			green.Println("Database already matches", migrateTo)
			return nil
		}

		fmt.Println("Planned operations:")
		for i, op := range plan.Operations {
			operationColor(op.Type).Printf("%3d. %s\n", i+1, op)
		}
		if migrateDryRun {
			fmt.Println("[SIMULATION] Dry-Run Mode Active: nothing was executed.")
			return nil
		}

		start := time.Now()
		var bar *uiprogress.Bar
		var current string
		opts := []engine.ExecutorOption{
			engine.WithLogger(log),
			engine.WithProgress(func(op *planner.Operation, _ *builder.Compiled, done, total int) {
				if bar == nil {
					uiprogress.Start()
					bar = uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
					bar.PrependFunc(func(b *uiprogress.Bar) string { return current })
				}
				current = op.Type.String()
				bar.Incr()
			}),
		}
		if viper.GetBool("settings.continue_on_error") {
			opts = append(opts, engine.ContinueOnError())
		}

		report, err := engine.NewExecutor(p, opts...).Execute(ctx, conn, plan)
		if bar != nil {
			uiprogress.Stop()
		}
		if report != nil {
			fmt.Printf("\nExecuted %d statements in %s\n", report.Executed, time.Since(start).Round(time.Millisecond))
			for _, f := range report.Failed {
				red.Fprintf(os.Stderr, "  ! %s: %v\n", f.Op, f.Err)
			}
		}
		if err != nil {
			return err
		}
		if report.Err() != nil {
			return fmt.Errorf("%d operations failed", len(report.Failed))
		}
		green.Println("Migration complete")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "target structure file")
	migrateCmd.Flags().Bool("continue-on-error", false, "keep going after an operation fails")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "list the operations without executing them")
	_ = migrateCmd.MarkFlagRequired("to")

	_ = viper.BindPFlag("settings.continue_on_error", migrateCmd.Flags().Lookup("continue-on-error"))
}
