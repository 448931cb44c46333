// serf-cli provisions the Serf root directory: creating databases, creating
// users and granting per-database access. The server itself never creates
// resources.
//
// Usage:
//
//	serf-cli create database -db <name>
//	serf-cli create user -u <username> -p <password>
//	serf-cli modify user access -u <username> -db <name> -a <1-3>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rikardbq/serf/config"
	"github.com/rikardbq/serf/internal/cli"
	"github.com/rikardbq/serf/internal/logger"
)

var customLog = logger.NewLogger()

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		customLog.Fatalf("Failed to load configuration: %v", err)
	}

	manager := cli.NewManager(cfg.RootDir)
	ctx := context.Background()

	if err := manager.Init(ctx); err != nil {
		customLog.Fatalf("Failed to initialize root directory: %v", err)
	}

	args := os.Args[1:]
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "create":
		runCreate(ctx, manager, args[1], args[2:])
	case "modify":
		runModify(ctx, manager, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q, supported commands are [create, modify]\n", args[0])
		os.Exit(2)
	}
}

func runCreate(ctx context.Context, manager *cli.Manager, target string, args []string) {
	switch target {
	case "database":
		fs := flag.NewFlagSet("create database", flag.ExitOnError)
		db := fs.String("db", "", "database name")
		_ = fs.Parse(args)

		if err := manager.CreateDatabase(ctx, *db); err != nil {
			customLog.Fatalf("Failed to create database %s: %v", *db, err)
		}
		fmt.Printf("Created database %s\n", *db)
	case "user":
		fs := flag.NewFlagSet("create user", flag.ExitOnError)
		username := fs.String("u", "", "username")
		password := fs.String("p", "", "password")
		_ = fs.Parse(args)

		if err := manager.CreateUser(ctx, *username, *password); err != nil {
			customLog.Fatalf("Failed to create user %s: %v", *username, err)
		}
		fmt.Printf("Created user %s\n", *username)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q, supported commands are [database, user]\n", target)
		os.Exit(2)
	}
}

func runModify(ctx context.Context, manager *cli.Manager, args []string) {
	if len(args) < 2 || args[0] != "user" || args[1] != "access" {
		fmt.Fprintln(os.Stderr, "unknown command, supported commands are [user access]")
		os.Exit(2)
	}

	fs := flag.NewFlagSet("modify user access", flag.ExitOnError)
	username := fs.String("u", "", "username")
	db := fs.String("db", "", "database name")
	access := fs.Uint("a", 0, "access right (1 = read, 2 = read+write, 3 = read+write+migrate)")
	_ = fs.Parse(args[2:])

	if *access > 3 {
		fmt.Fprintln(os.Stderr, "access right must be between 1 and 3")
		os.Exit(2)
	}

	if err := manager.ModifyUserAccess(ctx, *username, *db, uint8(*access)); err != nil {
		customLog.Fatalf("Failed to modify access for user %s: %v", *username, err)
	}
	fmt.Printf("Set access %d on database %s for user %s\n", *access, *db, *username)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  serf-cli create database -db <name>
  serf-cli create user -u <username> -p <password>
  serf-cli modify user access -u <username> -db <name> -a <1-3>`)
}
