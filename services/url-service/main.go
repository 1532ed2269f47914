// Command url-service manages the Postgres schema of the link store.
//
//	url-service [-config file] up|down|version
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"shortlink/pkg/config"
	"shortlink/pkg/logging"
	"shortlink/services/url-service/repository"
)

func main() {
	configPath := flag.String("config", os.Getenv("SHORTLINK_CONFIG"), "path to YAML config")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, flag.Arg(0)); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, command string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	if cfg.Storage.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations apply to the postgres driver, configured driver is %q", cfg.Storage.Driver)
	}

	m, err := repository.NewMigrator(cfg.Storage.DSN, logging.Component(logger, "db"))
	if err != nil {
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		return m.Up()
	case "down":
		if err := m.Down(); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("schema version", "version", version, "dirty", dirty)
	return nil
}
