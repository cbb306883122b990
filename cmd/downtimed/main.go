package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"machine-downtime-backend/config"
	"machine-downtime-backend/internal/db"
	"machine-downtime-backend/internal/store"
	"machine-downtime-backend/internal/tracker"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
)

var (
	cfgFile  string
	logLevel string
	log      *logrus.Logger
)

func main() {
	log = logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("Failed to execute command")
	}
}

var rootCmd = &cobra.Command{
	Use:   "downtimed",
	Short: "Machine downtime tracker",
	Long: `downtimed records operator status reports for production machines,
derives per-event intervals and aggregates daily downtime per machine.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("downtimed %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default $CONFIG_PATH or ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level, overrides the config file ("+strings.Join(logLevels(), ", ")+")")

	rootCmd.AddCommand(versionCmd, serveCmd, rebuildCmd, aggregateCmd)
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config/config.yaml"
}

// app bundles what every subcommand needs.
type app struct {
	cfg   *config.Config
	db    *gorm.DB
	store store.Store
}

// bootstrap loads config, applies the log level and opens the database.
// The machine registry is seeded from the config file.
func bootstrap(ctx context.Context) (*app, error) {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}

	levelName := cfg.Log.Level
	if logLevel != "" {
		levelName = logLevel
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	log.SetLevel(level)
	log.WithField("path", path).Info("Configuration loaded")

	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &app{cfg: cfg, db: gormDB, store: store.NewGormStore(gormDB, log)}

	if len(cfg.Machines) > 0 {
		n, err := a.service(nil).RegisterMachines(ctx, cfg.Machines)
		if err != nil {
			return nil, fmt.Errorf("failed to seed machines: %w", err)
		}
		log.WithField("machines", n).Info("Machine registry seeded")
	}

	return a, nil
}

func (a *app) service(alerts tracker.Alerter) *tracker.Service {
	return tracker.NewService(a.store, a.cfg.Tracker, alerts, log)
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
