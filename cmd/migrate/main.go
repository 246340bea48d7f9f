// Command migrate applies the pix key schema migrations.
//
//	migrate up
//	migrate down [steps]
//	migrate version
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"pixkeys/internal/pixkey/store/postgres"
	"pixkeys/internal/platform/config"
	pgplatform "pixkeys/internal/platform/postgres"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: migrate up | down [steps] | version")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := pgplatform.Open(context.Background(), cfg.Database)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("PIXKEYS_DATABASE_DSN is not set")
	}
	defer db.Close()

	switch args[0] {
	case "up":
		return postgres.MigrateUp(db)
	case "down":
		steps := 0
		if len(args) > 1 {
			if steps, err = strconv.Atoi(args[1]); err != nil || steps < 0 {
				return fmt.Errorf("invalid steps %q", args[1])
			}
		}
		return postgres.MigrateDown(db, steps)
	case "version":
		version, dirty, err := postgres.SchemaVersion(db)
		if err != nil {
			return err
		}
		fmt.Printf("version %d dirty=%t\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
