// Command createadmin creates a verified admin account, or promotes an existing user.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"proptools/internal/config"
	"proptools/internal/db"
	"proptools/internal/store"
	"proptools/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	username := flag.String("username", "", "admin username")
	email := flag.String("email", "", "admin email (defaults to <username>@localhost)")
	password := flag.String("password", "", "admin password, at least 6 characters")
	flag.Parse()

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	utils.InitLogger(cfg.LogLevel)
	if cfg.DatabaseDriver != config.DriverPostgres {
		fmt.Fprintln(os.Stderr, "createadmin needs the postgres driver")
		os.Exit(1)
	}

	gdb, err := db.Open(cfg.DatabaseURL, db.OptionsFromConfig(cfg))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := db.Migrate(gdb); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	st := store.NewGormStore(gdb)
	defer st.Close()

	admin := config.AdminConfig{Username: *username, Email: *email, Password: *password}
	if err := db.EnsureAdmin(context.Background(), st, admin); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("admin %q is ready\n", *username)
}
