package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"tokenart/internal/sqlinline"
)

func main() {
	_ = godotenv.Load()

	var (
		dbURLFlag   string
		printFlag   bool
		timeoutFlag time.Duration
	)
	flag.StringVar(&dbURLFlag, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (defaults to $DATABASE_URL)")
	flag.BoolVar(&printFlag, "print", false, "print the schema instead of applying it")
	flag.DurationVar(&timeoutFlag, "timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	if printFlag {
		fmt.Print(sqlinline.PostgresSchema)
		return
	}

	dbURL := strings.TrimSpace(dbURLFlag)
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL or -database-url is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	if err := migrate(ctx, db); err != nil {
		exitWithError(err)
	}

	var rows int64
	if err := db.QueryRowContext(ctx, sqlinline.QCountLedgerEntries).Scan(&rows); err != nil {
		exitWithError(fmt.Errorf("verify schema: %w", err))
	}
	fmt.Printf("ledger schema is up to date (%d entries)\n", rows)
}

// migrate applies the schema in one transaction. Every statement is
// idempotent, so running it again is a no-op.
func migrate(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqlinline.PostgresSchema); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply schema: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
