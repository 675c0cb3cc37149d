// migrate applies or rolls back the embedded SQL migrations.
package main

import (
	"flag"
	"fmt"
	"os"

	"fieldbook/backend/internal/config"
	"fieldbook/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of migrations to apply; 0 applies all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := migrate.Run(cfg.DatabaseURL, migrate.Options{Direction: *direction, Steps: *steps}); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
