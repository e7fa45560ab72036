package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-forge/internal/connection"
	"db-forge/internal/logger"
	"db-forge/internal/schema"
	"db-forge/internal/schemafile"
)

var (
	cfgFile string
	dsn     string
	driver  string

	// log is built from the log: section before any command runs.
	log = logger.Nop()
)

var RootCmd = &cobra.Command{
	Use:   "db-forge",
	Short: "Diff, migrate and seed database structures",
	Long: `
  ____  ____    _____ ___  ____   ____ _____
 |  _ \| __ )  |  ___/ _ \|  _ \ / ___| ____|
 | | | |  _ \  | |_ | | | | |_) | |  _|  _|
 | |_| | |_) | |  _|| |_| |  _ <| |_| | |___
 |____/|____/  |_|   \___/|_| \_\\____|_____|

DB FORGE - structure diff, migration planner and data seeder
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log = logger.New(loggerConfig())
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-forge.yaml)")
	RootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database Source Name, bypasses the databases: profiles")
	RootCmd.PersistentFlags().StringVar(&driver, "driver", "", "driver for --dsn ("+strings.Join(connection.Drivers(), ", ")+")")
	RootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error")

	_ = viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("settings.connect_timeout", 10*time.Second)
}

// initConfig reads .env, the config file and DB_FORGE_* environment variables.
func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "cannot read .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("db-forge")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DB_FORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// openConnection connects to the --dsn database or the active profile.
func openConnection(ctx context.Context) (*connection.DB, error) {
	cfg, err := activeConfig()
	if err != nil {
		return nil, err
	}
	conn, err := connection.Open(ctx, cfg.connection(),
		connection.WithLogger(log),
		connection.WithNamespace(cfg.Namespace),
		connection.WithConnectTimeout(viper.GetDuration("settings.connect_timeout")))
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Connected to %s (%s)\n", cfg.Name, cfg.Driver)
	return conn, nil
}

// liveSource is the --from value that reads the connected database.
const liveSource = "live"

// loadStructure reads src, which is either liveSource or a structure file.
func loadStructure(ctx context.Context, src string, conn connection.Connection) (*schema.Datasource, error) {
	if src != liveSource {
		return schemafile.Load(src)
	}
	if conn == nil {
		return nil, fmt.Errorf("reading the live structure needs a connection")
	}
	ds, err := conn.Explorer().Explore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read live structure: %w", err)
	}
	return ds, nil
}

// selectTables filters tables by name, case-insensitively. The --tables flag
// wins over settings.tables; both empty selects everything.
func selectTables(all []*schema.Table, names []string) ([]*schema.Table, error) {
	if len(names) == 0 {
		names = viper.GetStringSlice("settings.tables")
	}
	if len(names) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[schema.Fold(strings.TrimSpace(n))] = true
	}
	var out []*schema.Table
	for _, t := range all {
		if wanted[schema.Fold(t.Name())] {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no matching tables found for inputs: %v", names)
	}
	return out, nil
}
