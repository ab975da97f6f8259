// Command migrate applies, rolls back or inspects the database schema.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"cybrsens.io/internal/database"
)

func main() {
	var dsn string
	flag.StringVar(&dsn, "dsn", os.Getenv("CYBRSENS_PG_DSN"), "PostgreSQL connection URL")
	flag.Parse()

	if dsn == "" {
		log.Fatal("database DSN is required (flag -dsn or CYBRSENS_PG_DSN)")
	}

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	m, err := database.NewMigrator(dsn)
	if err != nil {
		log.Fatalf("migrator: %v", err)
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("up: %v", err)
		}
		log.Println("schema is up to date")
	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatalf("down: %v", err)
		}
		log.Println("rolled back one migration")
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("no migrations applied")
				return
			}
			log.Fatalf("version: %v", err)
		}
		fmt.Printf("version=%d dirty=%v\n", v, dirty)
	default:
		log.Fatalf("unknown command %q (want up, down or version)", command)
	}
}
