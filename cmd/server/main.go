// Package main is the entry point for the datawipe server: it loads
// configuration, runs migrations, wires the deletion engine and serves
// the operator API until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	migrationsDir := flag.String("migrations-dir", "migrations", "path to the goose migration files")
	skipMigrations := flag.Bool("skip-migrations", false, "start without applying pending migrations")
	siteProfiles := flag.String("site-profiles", "site_profiles.json", "path to the local site profiles file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, options{
		migrationsDir:  *migrationsDir,
		skipMigrations: *skipMigrations,
		siteProfiles:   *siteProfiles,
	})
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}
