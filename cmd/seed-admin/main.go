// seed-admin runs the migrations, then creates the admin user or resets its
// name, password and role.
//
// Usage (from backend directory):
//
//	SEED_ADMIN_PASSWORD=... DB_DRIVER=... DB_USER=... DB_HOST=... DB_NAME=... go run ./cmd/seed-admin
//
// SEED_ADMIN_EMAIL defaults to admin@maruti.com and SEED_ADMIN_NAME to "Admin".
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/models"
)

const (
	defaultAdminEmail = "admin@maruti.com"
	defaultAdminName  = "Admin"
	minPasswordLength = 6
)

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	ctx := context.Background()
	email := envOr("SEED_ADMIN_EMAIL", defaultAdminEmail)
	name := envOr("SEED_ADMIN_NAME", defaultAdminName)
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if len(password) < minPasswordLength {
		fmt.Fprintf(os.Stderr, "SEED_ADMIN_PASSWORD must be at least %d characters\n", minPasswordLength)
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	user, created, err := models.UpsertAdmin(ctx, email, name, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin: %v\n", err)
		os.Exit(1)
	}
	if created {
		fmt.Printf("created admin user %s (id=%s)\n", user.Email, user.ID)
		return
	}
	fmt.Printf("updated admin user %s (id=%s)\n", user.Email, user.ID)
}
