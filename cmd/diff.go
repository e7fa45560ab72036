package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"db-forge/internal/compare"
	"db-forge/internal/connection"
	"db-forge/internal/schema"
)

var (
	diffFrom   string
	diffTo     string
	diffFormat string
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show differences between two structures",
	Long: `Compare a structure file, or the live database, with a target structure file.

Examples:
  db-forge diff --to schema.xml                 # live database against schema.xml
  db-forge diff --from old.xml --to new.xml     # two files, no connection needed
  db-forge diff --to schema.xml --format yaml
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var conn *connection.DB
		if diffFrom == liveSource {
			c, err := openConnection(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			conn = c
		}

		from, to, err := loadPair(ctx, diffFrom, diffTo, conn)
		if err != nil {
			return err
		}
		root, err := compare.New(compare.WithLogger(log)).Compare(from, to)
		if err != nil {
			return err
		}
		return writeDiff(os.Stdout, root, diffFormat)
	},
}

// loadPair reads the reference and the target structure.
func loadPair(ctx context.Context, from, to string, conn *connection.DB) (ref, tgt *schema.Datasource, err error) {
	var c connection.Connection
	if conn != nil {
		c = conn
	}
	if ref, err = loadStructure(ctx, from, c); err != nil {
		return nil, nil, err
	}
	if tgt, err = loadStructure(ctx, to, c); err != nil {
		return nil, nil, err
	}
	return ref, tgt, nil
}

func init() {
	RootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVar(&diffFrom, "from", liveSource, `reference structure: a file or "live"`)
	diffCmd.Flags().StringVar(&diffTo, "to", "", "target structure file")
	diffCmd.Flags().StringVar(&diffFormat, "format", "text", "output format: text, json or yaml")
	_ = diffCmd.MarkFlagRequired("to")
}
