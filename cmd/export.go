package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"db-forge/internal/schemafile"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the live structure to a structure file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := openConnection(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		ds, err := loadStructure(ctx, liveSource, conn)
		if err != nil {
			return err
		}
		if exportOut == "" || exportOut == "-" {
			return schemafile.Write(os.Stdout, ds)
		}
		if err := schemafile.Save(exportOut, ds); err != nil {
			return err
		}
		green.Fprintf(os.Stderr, "Wrote %d tables to %s\n", len(ds.Tables()), exportOut)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "schema.xml", `structure file to write, "-" for stdout`)
}
