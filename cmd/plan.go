package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-forge/internal/builder"
	"db-forge/internal/connection"
	"db-forge/internal/dialect"
	"db-forge/internal/planner"
	"db-forge/internal/schema"
)

var (
	planFrom    string
	planTo      string
	planDialect string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the SQL that migrates a structure to schema.xml",
	Long: `Plan the operations that turn the reference structure into the target
and print them as SQL. Nothing is executed.

Examples:
  db-forge plan --to schema.xml
  db-forge plan --from old.xml --to schema.xml --dialect postgres
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var conn *connection.DB
		if planFrom == liveSource {
			c, err := openConnection(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			conn = c
		}

		d, err := planDialectFor(conn)
		if err != nil {
			return err
		}
		ref, tgt, err := loadPair(ctx, planFrom, planTo, conn)
		if err != nil {
			return err
		}
		p, plan, err := buildPlan(ctx, d, conn, ref, tgt)
		if err != nil {
			return err
		}
		return writeScript(os.Stdout, p, plan)
	},
}

// planDialectFor picks --dialect, then the connection, then the active profile.
func planDialectFor(conn *connection.DB) (dialect.Dialect, error) {
	if planDialect != "" {
		return dialect.Get(planDialect)
	}
	if conn != nil {
		return conn.Dialect(), nil
	}
	cfg, err := activeConfig()
	if err != nil {
		return nil, fmt.Errorf("planning between files needs --dialect or an active database: %w", err)
	}
	name, err := cfg.dialectName()
	if err != nil {
		return nil, err
	}
	return dialect.Get(name)
}

// buildPlan plans ref to tgt. With a connection, data checks ask the
// database instead of the structure.
func buildPlan(ctx context.Context, d dialect.Dialect, conn *connection.DB, ref, tgt *schema.Datasource) (*planner.Planner, *planner.Plan, error) {
	bopts := []builder.Option{builder.WithLogger(log)}
	if viper.GetBool("settings.literal_params") {
		bopts = append(bopts, builder.WithLiteralParams())
	}
	opts := []planner.Option{
		planner.WithLogger(log),
		planner.WithBuilder(builder.New(d, bopts...)),
	}
	if conn != nil {
		opts = append(opts, planner.WithProbe(planner.LiveProbe{Rows: conn}))
	}
	p := planner.New(d, opts...)
	plan, err := p.Plan(ctx, ref, tgt)
	if err != nil {
		return nil, nil, err
	}
	for _, op := range plan.Cyclic {
		log.With().Str("operation", op.String()).Logger().Warn("placed to break a dependency cycle")
	}
	return p, plan, nil
}

func init() {
	RootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planFrom, "from", liveSource, `reference structure: a file or "live"`)
	planCmd.Flags().StringVar(&planTo, "to", "", "target structure file")
	planCmd.Flags().StringVar(&planDialect, "dialect", "", "dialect of the generated SQL (sqlite, mysql, postgres, mssql, oracle)")
	_ = planCmd.MarkFlagRequired("to")
}
