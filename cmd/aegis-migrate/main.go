package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/halcyonsec/aegis/pkg/authz"
)

func main() {
	dbURL := flag.String("db-url", os.Getenv("AEGIS_POSTGRES_URL"), "PostgreSQL connection URL")
	flag.Parse()

	if *dbURL == "" {
		log.Fatal("database URL is required (-db-url or AEGIS_POSTGRES_URL)")
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	if err := authz.ApplyMigrations(context.Background(), db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations applied successfully")
}
