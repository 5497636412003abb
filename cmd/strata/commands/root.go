package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/strataorm/strata/pkg/driver"
	"github.com/strataorm/strata/pkg/orm"
	"github.com/strataorm/strata/pkg/settings"
)

var (
	// Global flags
	dbURL        string
	manifestPath string
	settingsPath string
	verbose      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Strata ORM - model definitions, identity caching and queries over SQL engines",
	Long: `Strata maps named models onto SQL tables through pluggable engine adapters.

The CLI manages the physical schema derived from a YAML model manifest:
  - schema create   create model tables and association join tables
  - schema drop     drop them again
  - ping            verify the engine connection

Engines are selected by the --db URL scheme: postgres://, mysql://,
sqlite://, or memory:// for the in-process engine.`,
	Version: "0.9.2",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Engine connection URL (required for most commands)")
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "./models.yaml", "Path to the model manifest")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Optional YAML settings file merged over the defaults")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (logs every statement)")
}

// openDriver picks the adapter from the URL scheme.
func openDriver(ctx context.Context, url string) (driver.Driver, error) {
	switch {
	case url == "":
		return nil, fmt.Errorf("--db flag is required")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return driver.ConnectPostgres(ctx, url)
	case strings.HasPrefix(url, "mysql://"):
		return driver.OpenMySQL(strings.TrimPrefix(url, "mysql://"))
	case strings.HasPrefix(url, "sqlite://"):
		return driver.OpenSQLite(strings.TrimPrefix(url, "sqlite://"))
	case strings.HasPrefix(url, "memory://"):
		return driver.NewMemoryDriver(), nil
	}
	return nil, fmt.Errorf("unsupported engine URL: %s", url)
}

// openConnection opens the driver and wraps it with the CLI's logger and
// settings.
func openConnection(ctx context.Context) (*orm.Connection, error) {
	drv, err := openDriver(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	s := settings.New()
	if settingsPath != "" {
		if err := s.LoadFile(settingsPath); err != nil {
			drv.Close()
			return nil, err
		}
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	return orm.Connect(drv, orm.WithSettings(s), orm.WithLogger(logger)), nil
}
