// migrate применяет SQL-миграции из internal/db/migrate: go run ./cmd/migrate
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"opshq/internal/config"
	"opshq/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg := config.LoadConfig()
	if cfg.Database.DSN == "" {
		fmt.Fprintln(os.Stderr, "database url is not set; fill config/config.yaml or set DATABASE_URL")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.Database.DSN, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// уже на нужной версии
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
