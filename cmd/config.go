package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"db-forge/internal/connection"
	"db-forge/internal/logger"
)

// DBConfig is one entry of the databases: list.
type DBConfig struct {
	Name      string `mapstructure:"name"`
	Driver    string `mapstructure:"driver"`
	DSN       string `mapstructure:"dsn"`
	Dialect   string `mapstructure:"dialect"`
	Namespace string `mapstructure:"namespace"`
	Active    bool   `mapstructure:"active"`
}

func (c *DBConfig) connection() connection.Config {
	return connection.Config{Name: c.Name, Driver: c.Driver, DSN: c.DSN, Dialect: c.Dialect}
}

// dialectName is the dialect of c without connecting.
func (c *DBConfig) dialectName() (string, error) {
	if c.Dialect != "" {
		return c.Dialect, nil
	}
	return connection.DialectFor(c.Driver)
}

// GetActiveDBConfig returns the currently active database configuration.
func GetActiveDBConfig() (*DBConfig, error) {
	var configs []DBConfig

	if err := viper.UnmarshalKey("databases", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse databases config: %w", err)
	}

	var active *DBConfig
	count := 0
	for i := range configs {
		if configs[i].Active {
			active = &configs[i]
			count++
		}
	}

	if count == 0 {
		return nil, fmt.Errorf("no active database found in config (set active: true)")
	}
	if count > 1 {
		return nil, fmt.Errorf("multiple active databases found (only one can be active)")
	}
	if active.Name == "" {
		active.Name = active.Driver
	}
	return active, nil
}

// activeConfig prefers --dsn/--driver over the profiles.
func activeConfig() (*DBConfig, error) {
	if dsn == "" {
		return GetActiveDBConfig()
	}
	if driver == "" {
		return nil, fmt.Errorf("--dsn needs --driver")
	}
	return &DBConfig{Name: "cli", Driver: driver, DSN: dsn, Active: true}, nil
}

func loggerConfig() *logger.Config {
	return &logger.Config{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
		Output: os.Stderr,
	}
}
