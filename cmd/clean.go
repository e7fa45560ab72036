package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"db-forge/internal/connection"
	"db-forge/internal/engine"
	"db-forge/internal/schema"
)

var cleanTables []string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean all data from tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := openConnection(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		log.Info("Analyzing schema...")
		ds, err := loadStructure(ctx, liveSource, conn)
		if err != nil {
			return err
		}
		targets, err := selectTables(ds.Tables(), cleanTables)
		if err != nil {
			return err
		}
		results, err := cleanDatabase(ctx, conn, targets)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Err != nil {
				red.Printf("[!] %-20s : %v\n", r.Table, r.Err)
				continue
			}
			fmt.Printf("[✓] %-20s : %d rows deleted\n", r.Table, r.Deleted)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringSliceVarP(&cleanTables, "tables", "t", []string{}, "Specific tables to clean (comma-separated)")
}

// cleanDatabase deletes the rows of tables, children first.
func cleanDatabase(ctx context.Context, conn connection.Connection, tables []*schema.Table) ([]engine.CleanResult, error) {
	results, err := engine.NewCleaner(conn, log).Clean(ctx, tables)
	if err != nil {
		return results, fmt.Errorf("failed to clean database: %w", err)
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		log.Warnf("Cleaned with %d failures", failed)
	} else {
		log.Info("Database Cleaned Successfully!")
	}
	return results, nil
}
